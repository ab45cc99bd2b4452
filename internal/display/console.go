package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/asaskevich/EventBus"

	"xiaozhi-vision-go/internal/domain/session"
	"xiaozhi-vision-go/internal/platform/logging"
)

const tagDisplay = "显示"

// stateLabels 状态的中文展示名
var stateLabels = map[session.DeviceState]string{
	session.StateIdle:       "空闲",
	session.StateConnecting: "连接中",
	session.StateListening:  "聆听中",
	session.StateSpeaking:   "播报中",
	session.StateVisionBusy: "识图中",
}

// Console 命令行状态显示：订阅总线上的状态与聊天消息，
// 同时读取标准输入把文本话语送回会话。
type Console struct {
	bus     EventBus.Bus
	sess    *session.Session
	logger  *logging.Logger
	in      io.Reader
	out     io.Writer
	onState func(prev, next session.DeviceState)
	onChat  func(role, text string)
}

func NewConsole(bus EventBus.Bus, sess *session.Session, logger *logging.Logger) *Console {
	c := &Console{
		bus:    bus,
		sess:   sess,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
	}
	c.onState = c.printState
	c.onChat = c.printChat
	return c
}

// Start 订阅总线主题
func (c *Console) Start() error {
	if err := c.bus.Subscribe(session.TopicStateChanged, c.onState); err != nil {
		return err
	}
	if err := c.bus.Subscribe(session.TopicChatMessage, c.onChat); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "输入文本与助手对话；/interrupt 打断播报，/exit 退出")
	return nil
}

// Stop 取消订阅
func (c *Console) Stop() {
	c.bus.Unsubscribe(session.TopicStateChanged, c.onState)
	c.bus.Unsubscribe(session.TopicChatMessage, c.onChat)
}

func (c *Console) printState(prev, next session.DeviceState) {
	fmt.Fprintf(c.out, "[状态] %s → %s\n", labelOf(prev), labelOf(next))
}

func (c *Console) printChat(role, text string) {
	switch role {
	case "user":
		fmt.Fprintf(c.out, "我: %s\n", text)
	default:
		fmt.Fprintf(c.out, "小智: %s\n", text)
	}
}

// ReadInput 阻塞读取标准输入，每行一条话语，直到 ctx 取消或输入关闭。
// /exit 返回 io.EOF 由调用方终止整个运行组。
func (c *Console) ReadInput(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
			case "/exit", "/quit":
				c.logger.InfoTag(tagDisplay, "收到退出命令")
				return io.EOF
			case "/interrupt":
				c.sess.Interrupt()
			default:
				c.sess.HandleRecognizedText(strings.TrimSpace(line))
			}
		}
	}
}

func labelOf(s session.DeviceState) string {
	if label, ok := stateLabels[s]; ok {
		return label
	}
	return s.String()
}
