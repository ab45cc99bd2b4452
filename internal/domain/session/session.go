package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"

	"xiaozhi-vision-go/internal/core/protocol"
	xerr "xiaozhi-vision-go/internal/platform/errors"
	"xiaozhi-vision-go/internal/platform/logging"
)

// 显示层订阅的总线主题
const (
	TopicStateChanged = "session.state_changed"
	TopicChatMessage  = "session.chat_message"
	TopicEmotion      = "session.emotion"
)

var (
	activeMu sync.Mutex
	active   *Session
)

// ReconnectPolicy 连接与掉线重连的重试预算，由会话层执行，
// 传输层只负责单次拨号。
type ReconnectPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Session 进程级单例：持有状态机、调度器、协议连接与关键词表。
// 由 bootstrap 构建一次，Shutdown 负责完整拆除。
type Session struct {
	client  protocol.Client
	machine *Machine
	sched   *Scheduler
	bus     EventBus.Bus
	logger  *logging.Logger

	reconnect    ReconnectPolicy
	reconnecting atomic.Bool

	ordinal atomic.Uint64
	runCtx  context.Context
	cancel  context.CancelFunc
}

// New 创建会话单例，进程内第二次调用会报错
func New(client protocol.Client, deps Deps, bus EventBus.Bus, logger *logging.Logger) (*Session, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return nil, xerr.New(xerr.KindSession, "session.New", "会话已存在，进程内只允许一个会话")
	}

	if deps.Transport == nil {
		deps.Transport = client
	}
	machine := NewMachine(deps)
	s := &Session{
		client:    client,
		machine:   machine,
		sched:     NewScheduler(machine, logger),
		bus:       bus,
		logger:    logger,
		reconnect: deps.Reconnect,
	}
	machine.SetSubmit(s.sched.Submit)
	if bus != nil {
		machine.SetNotify(func(prev, next DeviceState) {
			bus.Publish(TopicStateChanged, prev, next)
		})
	}

	active = s
	return s, nil
}

// Run 启动调度循环与入站泵，连接远端后阻塞直到 ctx 取消
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.machine.SetRunContext(runCtx)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return s.sched.Run(gctx)
	})
	g.Go(func() error {
		s.pumpInbound(gctx)
		return nil
	})

	if err := s.connectWithRetry(gctx); err != nil {
		s.logger.ErrorTag(tagSession, "连接远端失败: %v", err)
		cancel()
		g.Wait()
		return err
	}

	return g.Wait()
}

// connectWithRetry 按重连预算反复拨号，全部耗尽后返回最后一次错误
func (s *Session) connectWithRetry(ctx context.Context) error {
	attempts := s.reconnect.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.reconnect.Interval):
			}
		}
		s.machine.setState(StateConnecting)
		if err := s.client.Connect(ctx); err != nil {
			lastErr = err
			s.logger.WarnTag(tagSession, "连接失败（第 %d/%d 次）: %v", attempt, attempts, err)
			continue
		}
		return nil
	}
	return lastErr
}

// scheduleReconnect 掉线后由会话层发起后台重连；同一时刻只允许一路重连，
// 会话关闭（runCtx 取消）时立即放弃。
func (s *Session) scheduleReconnect() {
	ctx := s.runCtx
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !s.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.reconnecting.Store(false)
		if err := s.connectWithRetry(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.ErrorTag(tagSession, "重连次数耗尽，会话保持离线: %v", err)
			s.machine.setState(StateIdle)
		}
	}()
}

// pumpInbound 把协议入站消息翻译成调度事件；聊天类消息转发到总线
func (s *Session) pumpInbound(ctx context.Context) {
	events := s.client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-events:
			if !ok {
				return
			}
			s.dispatchInbound(in)
		}
	}
}

func (s *Session) dispatchInbound(in protocol.Inbound) {
	switch in.Kind {
	case protocol.InboundConnected:
		s.sched.Submit(Event{Kind: EventConnected}, PriorityNormal)
	case protocol.InboundDisconnected:
		s.sched.Submit(Event{Kind: EventDisconnected}, PriorityNormal)
		s.scheduleReconnect()
	case protocol.InboundSTTResult:
		s.HandleRecognizedText(in.Text)
	case protocol.InboundTTSSentence:
		if s.bus != nil {
			s.bus.Publish(TopicChatMessage, "assistant", in.Text)
		}
	case protocol.InboundEmotion:
		if s.bus != nil && in.Emotion != "" {
			s.bus.Publish(TopicEmotion, in.Emotion)
		}
	default:
		// 远端音频与 tts start/stop 不影响会话状态
	}
}

// HandleRecognizedText 一段识别出的用户话语进入决策循环
func (s *Session) HandleRecognizedText(text string) {
	if text == "" {
		return
	}
	if s.bus != nil {
		s.bus.Publish(TopicChatMessage, "user", text)
	}
	s.sched.Submit(Event{
		Kind: EventSpeechRecognized,
		Utterance: Utterance{
			Text:    text,
			Origin:  OriginUserSpeech,
			Ordinal: s.ordinal.Add(1),
		},
	}, PriorityNormal)
}

// Interrupt 用户打断，优先于一切排队中的普通事件
func (s *Session) Interrupt() {
	s.sched.Submit(Event{Kind: EventUserInterrupt}, PriorityInterrupt)
}

// State 当前设备状态
func (s *Session) State() DeviceState {
	return s.machine.State()
}

// Shutdown 拆除会话：停调度、断连接、等工作者退出，并释放单例
func (s *Session) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.sched.Stop()
	if err := s.client.Disconnect(); err != nil {
		s.logger.WarnTag(tagSession, "断开连接出错: %v", err)
	}
	s.machine.WaitWorkers()
	s.logger.InfoTag(tagSession, "会话已关闭")

	activeMu.Lock()
	if active == s {
		active = nil
	}
	activeMu.Unlock()
}
