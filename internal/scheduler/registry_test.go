package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *CronRegistry {
	t.Helper()
	r := NewCronRegistry(time.UTC)
	t.Cleanup(r.Stop)
	return r
}

func TestScheduleOneTime_PastFireTime(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ScheduleOneTime("notification_x_one_time", time.Now().Add(-time.Minute), func() {})
	assert.Error(t, err)
	assert.Empty(t, r.JobIDs())
}

func TestScheduleOneTime_FiresAndRemovesItself(t *testing.T) {
	r := newTestRegistry(t)

	var fired atomic.Int32
	err := r.ScheduleOneTime("notification_x_one_time", time.Now().Add(50*time.Millisecond), func() {
		fired.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"notification_x_one_time"}, r.JobIDs())

	assert.Eventually(t, func() bool {
		return fired.Load() == 1 && len(r.JobIDs()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduleWeekly_RegistersPerDay(t *testing.T) {
	r := newTestRegistry(t)
	id := uuid.New()

	for _, day := range []int{1, 3, 5} {
		err := r.ScheduleWeekly(DayJobID(id, day), day, "09:30", time.Time{}, time.Time{}, func() {})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		DayJobID(id, 1),
		DayJobID(id, 3),
		DayJobID(id, 5),
	}, r.JobIDs())
}

func TestScheduleWeekly_InvalidDay(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ScheduleWeekly("notification_x_day_7", 7, "09:30", time.Time{}, time.Time{}, func() {})
	assert.Error(t, err)

	err = r.ScheduleWeekly("notification_x_day_-1", -1, "09:30", time.Time{}, time.Time{}, func() {})
	assert.Error(t, err)
}

func TestScheduleWeekly_InvalidTimeOfDay(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ScheduleWeekly("notification_x_day_1", 1, "25:99", time.Time{}, time.Time{}, func() {})
	assert.Error(t, err)
}

func TestCancelByPrefix(t *testing.T) {
	r := newTestRegistry(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, r.ScheduleWeekly(DayJobID(a, 1), 1, "09:00", time.Time{}, time.Time{}, func() {}))
	require.NoError(t, r.ScheduleWeekly(DayJobID(a, 2), 2, "09:00", time.Time{}, time.Time{}, func() {}))
	require.NoError(t, r.ScheduleWeekly(DayJobID(b, 1), 1, "09:00", time.Time{}, time.Time{}, func() {}))

	removed := r.CancelByPrefix(JobPrefix(a))
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{DayJobID(b, 1)}, r.JobIDs())
}

func TestCancel(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.ScheduleOneTime("job", time.Now().Add(time.Hour), func() {}))
	assert.True(t, r.Cancel("job"))
	assert.False(t, r.Cancel("job"))
	assert.Empty(t, r.JobIDs())
}

func TestScheduleOneTime_ReplacesExisting(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.ScheduleOneTime("job", time.Now().Add(time.Hour), func() {}))
	require.NoError(t, r.ScheduleOneTime("job", time.Now().Add(2*time.Hour), func() {}))
	assert.Equal(t, []string{"job"}, r.JobIDs())
}

func TestOnceAt_Next(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s := onceAt{at: at}

	assert.Equal(t, at, s.Next(at.Add(-time.Hour)))
	assert.True(t, s.Next(at).IsZero())
	assert.True(t, s.Next(at.Add(time.Hour)).IsZero())
}

func TestBounded_Next(t *testing.T) {
	inner, err := cron.ParseStandard("0 9 * * 1") // Mondays 09:00
	require.NoError(t, err)

	start := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) // a Monday
	end := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	s := bounded{inner: inner, start: start, end: end}

	// Before the window: first firing is the first Monday on or after start.
	next := s.Next(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next)

	// Inside the window.
	next = s.Next(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), next)

	// Past the end date: deactivated.
	assert.True(t, s.Next(time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)).IsZero())
}

func TestBounded_Unbounded(t *testing.T) {
	inner, err := cron.ParseStandard("0 9 * * 1")
	require.NoError(t, err)

	s := bounded{inner: inner}
	assert.False(t, s.Next(time.Now()).IsZero())
}
