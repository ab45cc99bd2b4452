package speech

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xiaozhi-vision-go/internal/platform/logging"
)

type countingSink struct {
	mu     sync.Mutex
	frames int
}

func (s *countingSink) Play(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *countingSink) Close() error { return nil }

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func testAudio(frames int) *Audio {
	out := &Audio{SampleRate: 24000, FrameDuration: 5}
	for i := 0; i < frames; i++ {
		out.Frames = append(out.Frames, []byte{byte(i)})
	}
	return out
}

func newTestPlayer(t *testing.T, sink Sink) *Player {
	t.Helper()
	logger, err := logging.New(logging.Config{Level: "ERROR"})
	require.NoError(t, err)
	return NewPlayer(sink, logger)
}

func TestPlayAllFrames(t *testing.T) {
	sink := &countingSink{}
	p := newTestPlayer(t, sink)

	require.NoError(t, p.Play(context.Background(), testAudio(5)))
	assert.Equal(t, 5, sink.count())
}

// 取消后立即停止，已取消的上下文不得再写出任何帧
func TestPlayCancelledEmitsNoFrames(t *testing.T) {
	sink := &countingSink{}
	p := newTestPlayer(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Play(ctx, testAudio(100))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sink.count())
}

func TestPlayNilAudio(t *testing.T) {
	p := newTestPlayer(t, nil)
	assert.NoError(t, p.Play(context.Background(), nil))
	assert.NoError(t, p.Play(context.Background(), &Audio{FrameDuration: 60}))
}
