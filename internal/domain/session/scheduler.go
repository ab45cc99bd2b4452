package session

import (
	"context"
	"errors"

	"xiaozhi-vision-go/internal/platform/logging"
	"xiaozhi-vision-go/internal/util"
)

// Handler 事件消费方，生产环境即状态机
type Handler interface {
	Handle(ev Event)
}

// Scheduler 事件调度器。所有异步来源只向队列投递，Handle
// 只在 Run 的 goroutine 上执行，从结构上消除对状态的竞争。
type Scheduler struct {
	queue   *util.PriorityQueue[Event]
	handler Handler
	logger  *logging.Logger
}

func NewScheduler(handler Handler, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		queue:   util.NewPriorityQueue[Event](),
		handler: handler,
		logger:  logger,
	}
}

// Submit 投递一个事件。打断事件用 PriorityInterrupt，
// 其余用 PriorityNormal；同优先级按投递顺序派发。
func (s *Scheduler) Submit(ev Event, priority int) {
	if err := s.queue.PushItem(ev, priority); err != nil {
		s.logger.DebugTag(tagSession, "调度器已关闭，丢弃事件 %s", ev.Kind)
	}
}

// Run 派发循环，阻塞直到 ctx 取消或 Stop 被调用。
// 关闭时不补发排队事件，状态机停在最后一次派发后的状态。
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		ev, err := s.queue.PopItem(ctx)
		if err != nil {
			if errors.Is(err, util.ErrPriorityQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.handler.Handle(ev)
	}
}

// Stop 停止派发并唤醒阻塞中的 Run
func (s *Scheduler) Stop() {
	s.queue.Close()
}
