// Package schedule implements recurrence management: upserting a
// notification's schedule and keeping the job registry in sync with it.
package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pushcore/notifier/internal/model"
)

type scheduleRepo interface {
	Upsert(ctx context.Context, s model.Schedule) (model.Schedule, error)
	GetByNotificationID(ctx context.Context, notificationID uuid.UUID) (model.Schedule, error)
	DeleteByNotificationID(ctx context.Context, notificationID uuid.UUID) error
}

type notifRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
}

type jobLifecycle interface {
	Recompute(n model.Notification, sched *model.Schedule)
	CancelNotification(notificationID uuid.UUID)
}

type Service struct {
	repo          scheduleRepo
	notifications notifRepo
	lifecycle     jobLifecycle
}

func NewService(repo scheduleRepo, notifications notifRepo, lifecycle jobLifecycle) *Service {
	return &Service{
		repo:          repo,
		notifications: notifications,
		lifecycle:     lifecycle,
	}
}

// Upsert persists the schedule and rebuilds the notification's jobs from
// scratch, so stale per-day jobs from a previous version never survive.
func (s *Service) Upsert(ctx context.Context, sched model.Schedule) (model.Schedule, error) {
	n, err := s.notifications.GetByID(ctx, sched.NotificationID)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("get notification: %w", err)
	}

	saved, err := s.repo.Upsert(ctx, sched)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("upsert schedule: %w", err)
	}

	s.lifecycle.Recompute(n, &saved)

	return saved, nil
}

// GetByNotificationID returns the schedule bound to a notification.
func (s *Service) GetByNotificationID(ctx context.Context, notificationID uuid.UUID) (model.Schedule, error) {
	sched, err := s.repo.GetByNotificationID(ctx, notificationID)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("get schedule: %w", err)
	}

	return sched, nil
}

// Delete removes the schedule and cancels the notification's jobs.
func (s *Service) Delete(ctx context.Context, notificationID uuid.UUID) error {
	s.lifecycle.CancelNotification(notificationID)

	if err := s.repo.DeleteByNotificationID(ctx, notificationID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}

	return nil
}
