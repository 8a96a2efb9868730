package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushcore/notifier/internal/model"
)

// fakeRegistry records registrations without running timers.
type fakeRegistry struct {
	mu   sync.Mutex
	jobs map[string]func()
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{jobs: make(map[string]func())}
}

func (f *fakeRegistry) ScheduleOneTime(jobID string, fireAt time.Time, run func()) error {
	if !fireAt.After(time.Now()) {
		return fmt.Errorf("job %s: fire time in the past", jobID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = run
	return nil
}

func (f *fakeRegistry) ScheduleWeekly(jobID string, day int, timeOfDay string, _, _ time.Time, run func()) error {
	if day < 0 || day > 6 {
		return fmt.Errorf("job %s: day index %d out of range", jobID, day)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = run
	return nil
}

func (f *fakeRegistry) Cancel(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[jobID]
	delete(f.jobs, jobID)
	return ok
}

func (f *fakeRegistry) CancelByPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for id := range f.jobs {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			delete(f.jobs, id)
			removed++
		}
	}
	return removed
}

func (f *fakeRegistry) JobIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fakeScheduleStore struct {
	active []model.Schedule
}

func (f *fakeScheduleStore) ListActive(context.Context) ([]model.Schedule, error) {
	return f.active, nil
}

type fakeNotificationStore struct {
	byID      map[uuid.UUID]model.Notification
	deferred  []model.Notification
	stranded  []model.Notification
	reclaimed bool
}

func (f *fakeNotificationStore) GetByID(_ context.Context, id uuid.UUID) (model.Notification, error) {
	n, ok := f.byID[id]
	if !ok {
		return model.Notification{}, errors.New("notification not found")
	}
	return n, nil
}

func (f *fakeNotificationStore) ListDeferredPending(context.Context) ([]model.Notification, error) {
	return f.deferred, nil
}

func (f *fakeNotificationStore) ReclaimInFlight(context.Context) ([]model.Notification, error) {
	f.reclaimed = true
	out := make([]model.Notification, len(f.stranded))
	for i, n := range f.stranded {
		n.Status = model.StatusPending
		out[i] = n
	}
	return out, nil
}

func newTestLifecycle(reg Registry, schedules *fakeScheduleStore, notifications *fakeNotificationStore) *Lifecycle {
	if schedules == nil {
		schedules = &fakeScheduleStore{}
	}
	if notifications == nil {
		notifications = &fakeNotificationStore{byID: map[uuid.UUID]model.Notification{}}
	}
	return NewLifecycle(reg, schedules, notifications, func(uuid.UUID) {})
}

func TestRecompute_RecurringDays(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	n := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sched := model.Schedule{
		NotificationID: n.ID,
		DaysOfWeek:     []int{1, 3, 5},
		TimeOfDay:      "08:00",
		Repeat:         true,
	}

	l.Recompute(n, &sched)

	assert.Equal(t, []string{
		DayJobID(n.ID, 1),
		DayJobID(n.ID, 3),
		DayJobID(n.ID, 5),
	}, reg.JobIDs())
}

func TestRecompute_UpdateLeavesNoOrphans(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	n := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sched := model.Schedule{NotificationID: n.ID, DaysOfWeek: []int{1, 3, 5}, TimeOfDay: "08:00", Repeat: true}
	l.Recompute(n, &sched)
	require.Len(t, reg.JobIDs(), 3)

	sched.DaysOfWeek = []int{2, 4}
	l.Recompute(n, &sched)

	assert.Equal(t, []string{
		DayJobID(n.ID, 2),
		DayJobID(n.ID, 4),
	}, reg.JobIDs())
}

func TestRecompute_OneTimePrecedence(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	at := time.Now().Add(time.Hour)
	n := model.Notification{ID: uuid.New(), Status: model.StatusPending, ScheduleAt: &at}
	sched := model.Schedule{NotificationID: n.ID, DaysOfWeek: []int{1, 3, 5}, TimeOfDay: "08:00", Repeat: true}

	l.Recompute(n, &sched)

	assert.Equal(t, []string{OneTimeJobID(n.ID)}, reg.JobIDs())
}

func TestRecompute_PastScheduleAtFallsThrough(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	at := time.Now().Add(-time.Hour)
	n := model.Notification{ID: uuid.New(), Status: model.StatusPending, ScheduleAt: &at}
	sched := model.Schedule{NotificationID: n.ID, DaysOfWeek: []int{2}, TimeOfDay: "08:00", Repeat: true}

	l.Recompute(n, &sched)

	assert.Equal(t, []string{DayJobID(n.ID, 2)}, reg.JobIDs())
}

func TestRecompute_NonRepeatingRegistersNothing(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	n := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sched := model.Schedule{NotificationID: n.ID, DaysOfWeek: []int{1}, TimeOfDay: "08:00", Repeat: false}

	l.Recompute(n, &sched)
	assert.Empty(t, reg.JobIDs())
}

func TestRecompute_EmptyDaysMeansAllDays(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	n := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sched := model.Schedule{NotificationID: n.ID, TimeOfDay: "08:00", Repeat: true}

	l.Recompute(n, &sched)
	assert.Len(t, reg.JobIDs(), 7)
}

func TestRecompute_InvalidDayDoesNotBlockOthers(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	n := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sched := model.Schedule{NotificationID: n.ID, DaysOfWeek: []int{1, 9, 5}, TimeOfDay: "08:00", Repeat: true}

	l.Recompute(n, &sched)

	assert.Equal(t, []string{
		DayJobID(n.ID, 1),
		DayJobID(n.ID, 5),
	}, reg.JobIDs())
}

func TestCancelNotification(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	n := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	other := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sched := model.Schedule{NotificationID: n.ID, DaysOfWeek: []int{1, 2}, TimeOfDay: "08:00", Repeat: true}
	otherSched := model.Schedule{NotificationID: other.ID, DaysOfWeek: []int{1}, TimeOfDay: "08:00", Repeat: true}

	l.Recompute(n, &sched)
	l.Recompute(other, &otherSched)

	l.CancelNotification(n.ID)

	assert.Equal(t, []string{DayJobID(other.ID, 1)}, reg.JobIDs())
}

func TestScheduleRetry(t *testing.T) {
	reg := newFakeRegistry()
	l := newTestLifecycle(reg, nil, nil)

	id := uuid.New()
	require.NoError(t, l.ScheduleRetry(id, 3, time.Minute))
	assert.Equal(t, []string{RetryJobID(id, 3)}, reg.JobIDs())
}

func TestRebuild(t *testing.T) {
	reg := newFakeRegistry()

	at := time.Now().Add(time.Hour)
	deferred := model.Notification{ID: uuid.New(), Status: model.StatusPending, ScheduleAt: &at}
	recurring := model.Notification{ID: uuid.New(), Status: model.StatusPending}
	sent := model.Notification{ID: uuid.New(), Status: model.StatusSent}
	missing := uuid.New()

	notifications := &fakeNotificationStore{
		byID: map[uuid.UUID]model.Notification{
			recurring.ID: recurring,
			sent.ID:      sent,
		},
		deferred: []model.Notification{deferred},
	}
	schedules := &fakeScheduleStore{
		active: []model.Schedule{
			{NotificationID: recurring.ID, DaysOfWeek: []int{2, 4}, TimeOfDay: "10:00", Repeat: true},
			{NotificationID: sent.ID, DaysOfWeek: []int{1}, TimeOfDay: "10:00", Repeat: true},
			{NotificationID: missing, DaysOfWeek: []int{1}, TimeOfDay: "10:00", Repeat: true},
		},
	}

	l := newTestLifecycle(reg, schedules, notifications)
	require.NoError(t, l.Rebuild(context.Background()))

	assert.True(t, notifications.reclaimed)
	assert.ElementsMatch(t, []string{
		DayJobID(recurring.ID, 2),
		DayJobID(recurring.ID, 4),
		OneTimeJobID(deferred.ID),
	}, reg.JobIDs())
}

func TestRebuild_FiresStrandedInFlight(t *testing.T) {
	reg := newFakeRegistry()

	stranded := model.Notification{ID: uuid.New(), Status: model.StatusInFlight}
	notifications := &fakeNotificationStore{
		byID:     map[uuid.UUID]model.Notification{},
		stranded: []model.Notification{stranded},
	}

	var fired []uuid.UUID
	l := NewLifecycle(reg, &fakeScheduleStore{}, notifications, func(id uuid.UUID) {
		fired = append(fired, id)
	})

	require.NoError(t, l.Rebuild(context.Background()))

	assert.Equal(t, []uuid.UUID{stranded.ID}, fired, "a send interrupted by a crash must be retriggered at boot")
	assert.Empty(t, reg.JobIDs())
}

func TestRebuild_StrandedDeferredIsRegisteredNotFired(t *testing.T) {
	reg := newFakeRegistry()

	at := time.Now().Add(time.Hour)
	stranded := model.Notification{ID: uuid.New(), Status: model.StatusInFlight, ScheduleAt: &at}
	notifications := &fakeNotificationStore{
		byID:     map[uuid.UUID]model.Notification{},
		stranded: []model.Notification{stranded},
	}
	// After reclaiming, the row is pending again and shows up in the
	// deferred scan.
	reclaimedRow := stranded
	reclaimedRow.Status = model.StatusPending
	notifications.deferred = []model.Notification{reclaimedRow}

	var fired []uuid.UUID
	l := NewLifecycle(reg, &fakeScheduleStore{}, notifications, func(id uuid.UUID) {
		fired = append(fired, id)
	})

	require.NoError(t, l.Rebuild(context.Background()))

	assert.Empty(t, fired, "a deferred send must wait for its schedule_at, not fire at boot")
	assert.Equal(t, []string{OneTimeJobID(stranded.ID)}, reg.JobIDs())
}
