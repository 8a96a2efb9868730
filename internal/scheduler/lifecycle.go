package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/pushcore/notifier/internal/model"
)

var allDays = []int{0, 1, 2, 3, 4, 5, 6}

const defaultTimeOfDay = "09:00"

type scheduleStore interface {
	ListActive(ctx context.Context) ([]model.Schedule, error)
}

type notificationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	ListDeferredPending(ctx context.Context) ([]model.Notification, error)
	ReclaimInFlight(ctx context.Context) ([]model.Notification, error)
}

// Lifecycle reacts to schedule create/update/delete events by recomputing
// the live jobs for the affected notification, and rebuilds the registry
// from persisted rows at startup.
type Lifecycle struct {
	registry      Registry
	schedules     scheduleStore
	notifications notificationStore
	fire          func(uuid.UUID)
	now           func() time.Time
}

// NewLifecycle creates a lifecycle manager. fire is invoked with the
// notification id whenever a job triggers; it must hand off and return
// quickly.
func NewLifecycle(registry Registry, schedules scheduleStore, notifications notificationStore, fire func(uuid.UUID)) *Lifecycle {
	return &Lifecycle{
		registry:      registry,
		schedules:     schedules,
		notifications: notifications,
		fire:          fire,
		now:           time.Now,
	}
}

// Recompute replaces every live job of the notification with the set
// implied by its current state. Replacement is always cancel-then-
// reschedule: no partial diffing, so a day-set update can never leave
// stale-day orphans.
//
// A one-time schedule_at still in the future takes precedence over a
// recurring schedule: only the one-time job is registered.
func (l *Lifecycle) Recompute(n model.Notification, sched *model.Schedule) {
	l.registry.CancelByPrefix(JobPrefix(n.ID))

	if n.ScheduleAt != nil && n.ScheduleAt.After(l.now()) {
		jobID := OneTimeJobID(n.ID)
		if err := l.registry.ScheduleOneTime(jobID, *n.ScheduleAt, l.fireFunc(n.ID)); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", jobID).Msg("failed to register one-time job")
		}
		return
	}

	if sched == nil || !sched.Repeat {
		return
	}

	days := sched.DaysOfWeek
	if len(days) == 0 {
		days = allDays
	}

	timeOfDay := sched.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = defaultTimeOfDay
	}

	var start, end time.Time
	if sched.StartDate != nil {
		start = *sched.StartDate
	}
	if sched.EndDate != nil {
		end = *sched.EndDate
	}

	// One invalid day must not prevent the remaining days from being
	// registered.
	for _, day := range days {
		jobID := DayJobID(n.ID, day)
		if err := l.registry.ScheduleWeekly(jobID, day, timeOfDay, start, end, l.fireFunc(n.ID)); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", jobID).Msg("failed to register recurring job")
		}
	}
}

// CancelNotification removes every live job of the notification. It must
// run before re-registering on update and on schedule or notification
// deletion. Cancellation is best-effort against in-flight attempts: an
// attempt already past its status check completes, and the terminal
// status then blocks any later fire.
func (l *Lifecycle) CancelNotification(notificationID uuid.UUID) {
	removed := l.registry.CancelByPrefix(JobPrefix(notificationID))
	if removed > 0 {
		zlog.Logger.Info().
			Str("notification_id", notificationID.String()).
			Int("jobs", removed).
			Msg("cancelled notification jobs")
	}
}

// ScheduleRetry registers a one-time job that re-fires a delivery
// attempt after the backoff delay.
func (l *Lifecycle) ScheduleRetry(notificationID uuid.UUID, attempt int, after time.Duration) error {
	jobID := RetryJobID(notificationID, attempt)
	if err := l.registry.ScheduleOneTime(jobID, l.now().Add(after), l.fireFunc(notificationID)); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// Rebuild reconstructs the registry from persisted rows. The registry is
// a derived cache with no independent authority, so after a process
// restart this scan restores every live job the previous process held.
func (l *Lifecycle) Rebuild(ctx context.Context) error {
	// Rows left in_flight by a crashed attempt would otherwise never be
	// retried: no status transition targets them and the deferred scan
	// below selects pending only.
	reclaimed, err := l.notifications.ReclaimInFlight(ctx)
	if err != nil {
		return fmt.Errorf("reclaim in-flight notifications: %w", err)
	}

	for _, n := range reclaimed {
		// A future one-time send is re-registered by the deferred scan
		// below; anything else was already due when the previous process
		// died, so trigger it now.
		if n.ScheduleAt != nil && n.ScheduleAt.After(l.now()) {
			continue
		}
		l.fire(n.ID)
	}

	if len(reclaimed) > 0 {
		zlog.Logger.Info().Int("notifications", len(reclaimed)).Msg("reclaimed in-flight notifications")
	}

	deferred, err := l.notifications.ListDeferredPending(ctx)
	if err != nil {
		return fmt.Errorf("list deferred notifications: %w", err)
	}

	for _, n := range deferred {
		l.Recompute(n, nil)
	}

	schedules, err := l.schedules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active schedules: %w", err)
	}

	rebuilt := len(deferred)
	for _, s := range schedules {
		n, err := l.notifications.GetByID(ctx, s.NotificationID)
		if err != nil {
			// The notification may have been deleted; its schedule row
			// produces no jobs.
			zlog.Logger.Warn().Err(err).
				Str("notification_id", s.NotificationID.String()).
				Msg("skipping schedule without notification")
			continue
		}

		if n.Status.Terminal() || n.DeletedAt != nil {
			continue
		}

		sched := s
		l.Recompute(n, &sched)
		rebuilt++
	}

	zlog.Logger.Info().Int("notifications", rebuilt).Msg("job registry rebuilt from storage")
	return nil
}

func (l *Lifecycle) fireFunc(notificationID uuid.UUID) func() {
	return func() {
		l.fire(notificationID)
	}
}
