// Package notification implements the notification use cases: creation
// with immediate or deferred triggering, cached status reads, listing,
// and cancellation.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/pushcore/notifier/internal/model"
	"github.com/pushcore/notifier/internal/rabbitmq/queue"
)

type notifRepo interface {
	Create(ctx context.Context, n model.Notification) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	GetStatusByID(ctx context.Context, id uuid.UUID) (model.Status, error)
	GetAll(ctx context.Context) ([]model.Notification, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type jobLifecycle interface {
	Recompute(n model.Notification, sched *model.Schedule)
	CancelNotification(notificationID uuid.UUID)
}

type triggerPublisher interface {
	Publish(msg queue.TriggerMessage, strategy retry.Strategy) error
}

type statusCache interface {
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
}

type Service struct {
	repo      notifRepo
	lifecycle jobLifecycle
	queue     triggerPublisher
	cache     statusCache
	now       func() time.Time
}

func NewService(repo notifRepo, lifecycle jobLifecycle, q triggerPublisher, cache statusCache) *Service {
	return &Service{
		repo:      repo,
		lifecycle: lifecycle,
		queue:     q,
		cache:     cache,
		now:       time.Now,
	}
}

// Create persists the notification and arms its trigger. A future
// schedule_at defers the trigger to a one-time job; otherwise the
// notification is queued for delivery right away.
func (s *Service) Create(ctx context.Context, strategy retry.Strategy, n model.Notification) (uuid.UUID, error) {
	n.Status = model.StatusPending

	id, err := s.repo.Create(ctx, n)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create notification: %w", err)
	}
	n.ID = id

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(n.Status)); err != nil {
		zlog.Logger.Printf("failed to cache notification %s: %v", id, err)
	}

	if n.ScheduleAt != nil && n.ScheduleAt.After(s.now()) {
		s.lifecycle.Recompute(n, nil)
		return id, nil
	}

	if err := s.queue.Publish(queue.TriggerMessage{NotificationID: id}, strategy); err != nil {
		return uuid.Nil, fmt.Errorf("publish trigger: %w", err)
	}

	return id, nil
}

// GetByID returns the notification row, excluding soft-deleted ones.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Notification{}, fmt.Errorf("get notification: %w", err)
	}

	return n, nil
}

// GetStatusByID reads the status cache-aside: a cache miss falls back to
// the store and repopulates the key.
func (s *Service) GetStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error) {
	cached, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err == nil {
		return model.Status(cached), nil
	}
	if !errors.Is(err, redis.Nil) {
		zlog.Logger.Printf("failed to get notification status from cache %s: %v", id, err)
	}

	status, err := s.repo.GetStatusByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get notification status: %w", err)
	}

	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Printf("failed to cache notification %s: %v", id, err)
	}

	return status, nil
}

// GetAll lists notifications, newest first.
func (s *Service) GetAll(ctx context.Context) ([]model.Notification, error) {
	notifications, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}

	return notifications, nil
}

// Delete cancels every job of the notification and soft-deletes the row.
// Cancelled jobs stop firing immediately; in-flight attempts finish on
// their own.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	s.lifecycle.CancelNotification(id)

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	return nil
}
