// Package worker consumes due-notification triggers and runs delivery
// attempts, feeding retry outcomes back to the job registry.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/pushcore/notifier/internal/executor"
	"github.com/pushcore/notifier/internal/rabbitmq/queue"
)

type triggerQueue interface {
	Consume(out chan<- queue.TriggerMessage, strategy retry.Strategy) error
}

type attempter interface {
	Attempt(ctx context.Context, id uuid.UUID) executor.Outcome
}

type retryScheduler interface {
	ScheduleRetry(id uuid.UUID, attempt int, after time.Duration) error
}

// Pool runs a fixed set of workers over the trigger queue. Each worker
// performs one delivery attempt per message and schedules a retry job
// when the attempt says so.
type Pool struct {
	queue     triggerQueue
	executor  attempter
	scheduler retryScheduler
}

func NewPool(q triggerQueue, e attempter, s retryScheduler) *Pool {
	return &Pool{
		queue:     q,
		executor:  e,
		scheduler: s,
	}
}

func (p *Pool) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	msgChan := make(chan queue.TriggerMessage)

	go func() {
		// A consume failure must not take the process down with it: the
		// HTTP API and registered jobs keep working, and delivery resumes
		// on the next restart.
		if err := p.queue.Consume(msgChan, strategy); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to consume messages")
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(id int) {
			zlog.Logger.Printf("worker-%d started", id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("worker-%d shutting down", id)
					return
				case msg := <-msgChan:
					p.handle(ctx, msg.NotificationID)
				}
			}
		}(i)
	}

	<-ctx.Done()
	zlog.Logger.Print("worker pool stopped")
}

func (p *Pool) handle(ctx context.Context, id uuid.UUID) {
	out := p.executor.Attempt(ctx, id)

	if out.Code != executor.CodeRetry {
		return
	}

	if err := p.scheduler.ScheduleRetry(id, out.Attempt, out.RetryIn); err != nil {
		zlog.Logger.Error().Err(err).
			Str("notification_id", id.String()).
			Int("attempt", out.Attempt).
			Msg("failed to schedule retry")
	}
}
