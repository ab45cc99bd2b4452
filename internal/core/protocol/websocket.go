package protocol

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"xiaozhi-vision-go/internal/platform/config"
	xerr "xiaozhi-vision-go/internal/platform/errors"
	"xiaozhi-vision-go/internal/platform/logging"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	outboundBuffer   = 256
	inboundBuffer    = 64
)

// outboundFrame 出站帧，Data 与 Binary 二选一
type outboundFrame struct {
	Data   []byte
	Binary bool
}

// WebSocketClient 基于 gorilla/websocket 的 Client 实现。
// 所有出站写入经由单一 writeLoop，保证音频块顺序。
type WebSocketClient struct {
	cfg    config.ServerConfig
	audio  config.AudioConfig
	logger *logging.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	connected bool
	outbound  chan outboundFrame
	done      chan struct{}

	events chan Inbound
}

func NewWebSocketClient(cfg config.ServerConfig, audio config.AudioConfig, logger *logging.Logger) *WebSocketClient {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	return &WebSocketClient{
		cfg:    cfg,
		audio:  audio,
		logger: logger,
		events: make(chan Inbound, inboundBuffer),
	}
}

func (c *WebSocketClient) Events() <-chan Inbound { return c.events }

func (c *WebSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect 建立连接并完成 hello 握手，只做单次拨号序列；
// 重试与重连策略由会话层驱动。
func (c *WebSocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.dialOnce(ctx); err != nil {
		return xerr.WrapCode(xerr.KindTransport, xerr.CodeConnectionLost, "protocol.Connect", "连接失败", err)
	}
	return nil
}

func (c *WebSocketClient) dialOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Device-Id", c.cfg.DeviceID)
	header.Set("Client-Id", c.cfg.ClientID)
	header.Set("Protocol-Version", "1")
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("拨号 %s: %w", c.cfg.URL, err)
	}

	hello := helloMessage{
		Type:      "hello",
		Version:   1,
		Transport: "websocket",
		AudioParams: audioParams{
			Format:        "opus",
			SampleRate:    c.audio.SampleRate,
			Channels:      c.audio.Channels,
			FrameDuration: c.audio.FrameDuration,
		},
	}
	payload, err := sonic.Marshal(hello)
	if err != nil {
		conn.Close()
		return fmt.Errorf("编码 hello: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return fmt.Errorf("发送 hello: %w", err)
	}

	// 等服务端 hello 回执，拿 session_id
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, ack, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("等待 hello 回执: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	var msg serverMessage
	if err := sonic.Unmarshal(ack, &msg); err != nil || msg.Type != "hello" {
		conn.Close()
		return fmt.Errorf("非法 hello 回执: %s", string(ack))
	}

	c.mu.Lock()
	c.conn = conn
	c.sessionID = msg.SessionID
	c.connected = true
	c.outbound = make(chan outboundFrame, outboundBuffer)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.writeLoop(conn, c.outbound, c.done)
	go c.readLoop(conn)

	c.logger.InfoTag("协议", "已连接 %s，会话 %s", c.cfg.URL, msg.SessionID)
	c.emit(Inbound{Kind: InboundConnected})
	return nil
}

func (c *WebSocketClient) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	done := c.done
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	close(done)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	c.logger.InfoTag("协议", "连接已关闭")
	c.emit(Inbound{Kind: InboundDisconnected})
	return err
}

// SendText 将一段文本按 listen detect 语义送往远端
func (c *WebSocketClient) SendText(text string) error {
	msg := listenMessage{Type: "listen", SessionID: c.currentSession(), State: "detect", Text: text}
	return c.sendJSON(msg)
}

func (c *WebSocketClient) SendAudioChunk(chunk []byte) error {
	return c.enqueue(outboundFrame{Data: chunk, Binary: true})
}

func (c *WebSocketClient) SendControl(signal ControlSignal) error {
	switch signal {
	case ControlStartListening:
		return c.sendJSON(listenMessage{Type: "listen", SessionID: c.currentSession(), State: "start", Mode: "auto"})
	case ControlStopListening:
		return c.sendJSON(listenMessage{Type: "listen", SessionID: c.currentSession(), State: "stop"})
	case ControlAbort:
		return c.sendJSON(abortMessage{Type: "abort", SessionID: c.currentSession(), Reason: "user_interrupt"})
	default:
		return xerr.New(xerr.KindTransport, "protocol.SendControl", fmt.Sprintf("未知控制信号 %q", signal))
	}
}

func (c *WebSocketClient) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *WebSocketClient) sendJSON(v any) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return xerr.Wrap(xerr.KindTransport, "protocol.sendJSON", "编码报文失败", err)
	}
	return c.enqueue(outboundFrame{Data: payload})
}

func (c *WebSocketClient) enqueue(frame outboundFrame) error {
	c.mu.Lock()
	connected := c.connected
	outbound := c.outbound
	c.mu.Unlock()
	if !connected {
		return xerr.NewCode(xerr.KindTransport, xerr.CodeConnectionLost, "protocol.enqueue", "连接未建立")
	}
	select {
	case outbound <- frame:
		return nil
	default:
		return xerr.NewCode(xerr.KindTransport, xerr.CodeConnectionLost, "protocol.enqueue", "出站队列已满")
	}
}

// writeLoop 唯一的出站写者
func (c *WebSocketClient) writeLoop(conn *websocket.Conn, outbound <-chan outboundFrame, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame := <-outbound:
			msgType := websocket.TextMessage
			if frame.Binary {
				msgType = websocket.BinaryMessage
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(msgType, frame.Data); err != nil {
				c.logger.ErrorTag("协议", "写入失败: %v", err)
				c.onConnectionLost()
				return
			}
		}
	}
}

func (c *WebSocketClient) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected
			c.mu.Unlock()
			if wasConnected {
				c.logger.WarnTag("协议", "读取失败: %v", err)
				c.onConnectionLost()
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			c.emit(Inbound{Kind: InboundAudio, Audio: data})
			continue
		}
		c.dispatchText(data)
	}
}

func (c *WebSocketClient) dispatchText(data []byte) {
	var msg serverMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		c.logger.WarnTag("协议", "无法解析入站报文: %s", string(data))
		return
	}
	switch msg.Type {
	case "tts":
		switch msg.State {
		case "start":
			c.emit(Inbound{Kind: InboundTTSStart})
		case "stop":
			c.emit(Inbound{Kind: InboundTTSStop})
		case "sentence_start":
			c.emit(Inbound{Kind: InboundTTSSentence, Text: msg.Text})
		}
	case "stt":
		c.emit(Inbound{Kind: InboundSTTResult, Text: msg.Text})
	case "llm":
		c.emit(Inbound{Kind: InboundEmotion, Text: msg.Text, Emotion: msg.Emotion})
	case "hello":
		// 握手阶段已消费，迟到的回执忽略
	default:
		c.logger.DebugTag("协议", "忽略未知报文类型 %q", msg.Type)
	}
}

func (c *WebSocketClient) onConnectionLost() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	done := c.done
	c.conn = nil
	c.mu.Unlock()

	select {
	case <-done:
	default:
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
	c.emit(Inbound{Kind: InboundDisconnected})
}

func (c *WebSocketClient) emit(in Inbound) {
	select {
	case c.events <- in:
	default:
		c.logger.WarnTag("协议", "入站事件队列已满，丢弃 %s", in.Kind)
	}
}
