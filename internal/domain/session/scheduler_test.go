package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	kinds  []EventKind
	texts  []string
	notify chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{notify: make(chan struct{}, 64)}
}

func (h *recordingHandler) Handle(ev Event) {
	h.mu.Lock()
	h.kinds = append(h.kinds, ev.Kind)
	h.texts = append(h.texts, ev.Utterance.Text)
	h.mu.Unlock()
	h.notify <- struct{}{}
}

func (h *recordingHandler) await(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("等待第 %d 个事件超时", i+1)
		}
	}
}

func (h *recordingHandler) handled() ([]EventKind, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]EventKind(nil), h.kinds...), append([]string(nil), h.texts...)
}

// 打断事件先于所有已排队的普通事件被派发
func TestSchedulerInterruptPriority(t *testing.T) {
	handler := newRecordingHandler()
	sched := NewScheduler(handler, testLogger(t))

	sched.Submit(Event{Kind: EventSpeechRecognized, Utterance: Utterance{Text: "a"}}, PriorityNormal)
	sched.Submit(Event{Kind: EventSpeechRecognized, Utterance: Utterance{Text: "b"}}, PriorityNormal)
	sched.Submit(Event{Kind: EventUserInterrupt}, PriorityInterrupt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	handler.await(t, 3)
	kinds, texts := handler.handled()
	require.Equal(t, []EventKind{EventUserInterrupt, EventSpeechRecognized, EventSpeechRecognized}, kinds)
	assert.Equal(t, []string{"", "a", "b"}, texts, "同优先级保持投递顺序")
}

func TestSchedulerFIFOWithinPriority(t *testing.T) {
	handler := newRecordingHandler()
	sched := NewScheduler(handler, testLogger(t))

	for _, text := range []string{"1", "2", "3", "4"} {
		sched.Submit(Event{Kind: EventSpeechRecognized, Utterance: Utterance{Text: text}}, PriorityNormal)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	handler.await(t, 4)
	_, texts := handler.handled()
	assert.Equal(t, []string{"1", "2", "3", "4"}, texts)
}

func TestSchedulerStopEndsRun(t *testing.T) {
	handler := newRecordingHandler()
	sched := NewScheduler(handler, testLogger(t))

	done := make(chan error, 1)
	go func() {
		done <- sched.Run(context.Background())
	}()

	sched.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop 后 Run 未退出")
	}

	// 关闭后的投递被安静丢弃
	sched.Submit(Event{Kind: EventUserInterrupt}, PriorityInterrupt)
}

func TestSchedulerContextCancelEndsRun(t *testing.T) {
	handler := newRecordingHandler()
	sched := NewScheduler(handler, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ctx 取消后 Run 未退出")
	}
}
