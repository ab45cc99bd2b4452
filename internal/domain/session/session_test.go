package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xiaozhi-vision-go/internal/core/protocol"
	"xiaozhi-vision-go/internal/domain/keyword"
	"xiaozhi-vision-go/internal/platform/config"
)

// fakeClient 同时扮演协议客户端与出站传输
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	connects  int
	failNext  int
	texts     []string
	events    chan protocol.Inbound
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan protocol.Inbound, 16)}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	if f.failNext > 0 {
		f.failNext--
		f.mu.Unlock()
		return errors.New("拨号失败")
	}
	f.connected = true
	f.mu.Unlock()
	f.events <- protocol.Inbound{Kind: protocol.InboundConnected}
	return nil
}

func (f *fakeClient) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeClient) SendAudioChunk(chunk []byte) error        { return nil }
func (f *fakeClient) SendControl(protocol.ControlSignal) error { return nil }
func (f *fakeClient) Events() <-chan protocol.Inbound          { return f.events }

func (f *fakeClient) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func newSessionDeps(t *testing.T) Deps {
	t.Helper()
	return Deps{
		Matcher: keyword.NewMatcher(config.VisionConfig{
			Enabled:  true,
			Keywords: []string{"看看"},
		}),
		Camera:      &fakeCamera{},
		Synthesizer: &fakeSynthesizer{},
		Player:      &fakePlayer{},
		Logger:      testLogger(t),
	}
}

func TestSessionSingleton(t *testing.T) {
	s1, err := New(newFakeClient(), newSessionDeps(t), nil, testLogger(t))
	require.NoError(t, err)

	_, err = New(newFakeClient(), newSessionDeps(t), nil, testLogger(t))
	assert.Error(t, err, "进程内不允许第二个会话")

	s1.Shutdown()

	s2, err := New(newFakeClient(), newSessionDeps(t), nil, testLogger(t))
	require.NoError(t, err)
	s2.Shutdown()
}

func TestSessionRunLifecycle(t *testing.T) {
	client := newFakeClient()
	bus := EventBus.New()

	var chatMu sync.Mutex
	var chat []string
	require.NoError(t, bus.Subscribe(TopicChatMessage, func(role, text string) {
		chatMu.Lock()
		chat = append(chat, role+":"+text)
		chatMu.Unlock()
	}))

	sess, err := New(client, newSessionDeps(t), bus, testLogger(t))
	require.NoError(t, err)
	defer sess.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sess.State() == StateListening
	}, 2*time.Second, 10*time.Millisecond, "连接后应进入聆听")

	sess.HandleRecognizedText("今天天气怎么样")
	require.Eventually(t, func() bool {
		texts := client.sentTexts()
		return len(texts) == 1 && texts[0] == "今天天气怎么样"
	}, 2*time.Second, 10*time.Millisecond)

	chatMu.Lock()
	assert.Contains(t, chat, "user:今天天气怎么样")
	chatMu.Unlock()

	cancel()
	select {
	case <-runErr:
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未随 ctx 取消退出")
	}
}

// 服务端 stt 消息作为用户话语进入决策循环
func TestSessionSTTBecomesUtterance(t *testing.T) {
	client := newFakeClient()
	sess, err := New(client, newSessionDeps(t), nil, testLogger(t))
	require.NoError(t, err)
	defer sess.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	require.Eventually(t, func() bool {
		return sess.State() == StateListening
	}, 2*time.Second, 10*time.Millisecond)

	client.events <- protocol.Inbound{Kind: protocol.InboundSTTResult, Text: "你好"}
	require.Eventually(t, func() bool {
		return len(client.sentTexts()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "你好", client.sentTexts()[0])
}

// 掉线后由会话层发起重连，成功后回到聆听
func TestSessionReconnectsAfterDisconnect(t *testing.T) {
	client := newFakeClient()
	deps := newSessionDeps(t)
	deps.Reconnect = ReconnectPolicy{MaxAttempts: 3, Interval: 10 * time.Millisecond}

	sess, err := New(client, deps, nil, testLogger(t))
	require.NoError(t, err)
	defer sess.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	require.Eventually(t, func() bool {
		return sess.State() == StateListening
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, client.connectCount())

	client.mu.Lock()
	client.connected = false
	client.mu.Unlock()
	client.events <- protocol.Inbound{Kind: protocol.InboundDisconnected}

	require.Eventually(t, func() bool {
		return client.connectCount() >= 2 && sess.State() == StateListening
	}, 2*time.Second, 10*time.Millisecond, "掉线后应发起重连并回到聆听")
}

// 重连在预算内重试：前两次拨号失败，第三次成功
func TestSessionReconnectRetriesWithinBudget(t *testing.T) {
	client := newFakeClient()
	deps := newSessionDeps(t)
	deps.Reconnect = ReconnectPolicy{MaxAttempts: 3, Interval: 5 * time.Millisecond}

	sess, err := New(client, deps, nil, testLogger(t))
	require.NoError(t, err)
	defer sess.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	require.Eventually(t, func() bool {
		return sess.State() == StateListening
	}, 2*time.Second, 10*time.Millisecond)

	client.mu.Lock()
	client.connected = false
	client.failNext = 2
	client.mu.Unlock()
	client.events <- protocol.Inbound{Kind: protocol.InboundDisconnected}

	require.Eventually(t, func() bool {
		return sess.State() == StateListening && client.connectCount() == 4
	}, 2*time.Second, 10*time.Millisecond, "前两次重连失败后第三次应成功")
}

// 重连预算耗尽后停在 Idle，不再继续拨号
func TestSessionReconnectExhaustedStaysIdle(t *testing.T) {
	client := newFakeClient()
	deps := newSessionDeps(t)
	deps.Reconnect = ReconnectPolicy{MaxAttempts: 2, Interval: 5 * time.Millisecond}

	sess, err := New(client, deps, nil, testLogger(t))
	require.NoError(t, err)
	defer sess.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	require.Eventually(t, func() bool {
		return sess.State() == StateListening
	}, 2*time.Second, 10*time.Millisecond)

	client.mu.Lock()
	client.connected = false
	client.failNext = 10
	client.mu.Unlock()
	client.events <- protocol.Inbound{Kind: protocol.InboundDisconnected}

	require.Eventually(t, func() bool {
		return client.connectCount() == 3 && sess.State() == StateIdle
	}, 2*time.Second, 10*time.Millisecond, "预算耗尽后应停在空闲")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, client.connectCount(), "耗尽后不应再拨号")
}
