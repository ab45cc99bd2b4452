package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	pq := NewPriorityQueue[string]()
	require.NoError(t, pq.PushItem("low", 0))
	require.NoError(t, pq.PushItem("high", 10))
	require.NoError(t, pq.PushItem("mid", 5))

	want := []string{"high", "mid", "low"}
	for _, expected := range want {
		got, err := pq.TryPopItem()
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
	assert.True(t, pq.IsEmpty())
}

// 同优先级按入队顺序出队（稳定性）
func TestFIFOWithinPriority(t *testing.T) {
	pq := NewPriorityQueue[int]()
	for i := 0; i < 10; i++ {
		require.NoError(t, pq.PushItem(i, 1))
	}
	for i := 0; i < 10; i++ {
		got, err := pq.TryPopItem()
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestTryPopEmpty(t *testing.T) {
	pq := NewPriorityQueue[int]()
	_, err := pq.TryPopItem()
	assert.ErrorIs(t, err, ErrPriorityQueueEmpty)
}

func TestPopBlocksUntilPush(t *testing.T) {
	pq := NewPriorityQueue[string]()

	done := make(chan string, 1)
	go func() {
		v, err := pq.PopItem(context.Background())
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pq.PushItem("wake", 0))

	select {
	case v := <-done:
		assert.Equal(t, "wake", v)
	case <-time.After(2 * time.Second):
		t.Fatal("PopItem 未被 Push 唤醒")
	}
}

func TestPopCancelled(t *testing.T) {
	pq := NewPriorityQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pq.PopItem(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseWakesConsumer(t *testing.T) {
	pq := NewPriorityQueue[int]()

	errCh := make(chan error, 1)
	go func() {
		_, err := pq.PopItem(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	pq.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPriorityQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Close 未唤醒消费者")
	}

	assert.ErrorIs(t, pq.PushItem(1, 0), ErrPriorityQueueClosed)
}
