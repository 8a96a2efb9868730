// Package scheduler owns the live job registry and the schedule
// lifecycle: translating persisted schedule records into timed triggers.
package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Registry is the process-wide set of live timed jobs, keyed by the
// deterministic job-id scheme. It is a derived cache: persisted
// notification and schedule rows stay authoritative, and the registry
// can be rebuilt from them at any time.
type Registry interface {
	// ScheduleOneTime registers a single trigger. It fails if fireAt is
	// not in the future. An existing job with the same id is replaced.
	ScheduleOneTime(jobID string, fireAt time.Time, run func()) error

	// ScheduleWeekly registers a weekly-recurring trigger on the given
	// weekday index (0-6, Sunday = 0) at timeOfDay ("HH:MM"), bounded by
	// [start, end]. A zero end means unbounded.
	ScheduleWeekly(jobID string, day int, timeOfDay string, start, end time.Time, run func()) error

	// Cancel removes the job with the given id, reporting whether it existed.
	Cancel(jobID string) bool

	// CancelByPrefix removes every job whose id starts with prefix and
	// returns how many were removed.
	CancelByPrefix(prefix string) int

	// JobIDs returns the ids of all registered jobs, sorted.
	JobIDs() []string
}

// CronRegistry implements Registry on top of a single robfig/cron
// runner. All timers live in one cron instance; triggers hand off work
// and return immediately, so the runner never blocks on I/O.
type CronRegistry struct {
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewCronRegistry(loc *time.Location) *CronRegistry {
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	c.Start()

	return &CronRegistry{
		cron:    c,
		now:     time.Now,
		entries: make(map[string]cron.EntryID),
	}
}

// Stop halts the cron runner. Running jobs complete; no new ones fire.
func (r *CronRegistry) Stop() {
	r.cron.Stop()
}

func (r *CronRegistry) ScheduleOneTime(jobID string, fireAt time.Time, run func()) error {
	if !fireAt.After(r.now()) {
		return fmt.Errorf("job %s: fire time %s is in the past", jobID, fireAt)
	}

	// One-time entries remove themselves once fired so the registry
	// does not accumulate dead ids.
	wrapped := func() {
		run()
		r.Cancel(jobID)
	}

	r.add(jobID, onceAt{at: fireAt}, wrapped)
	return nil
}

func (r *CronRegistry) ScheduleWeekly(jobID string, day int, timeOfDay string, start, end time.Time, run func()) error {
	if day < 0 || day > 6 {
		return fmt.Errorf("job %s: day index %d out of range 0-6", jobID, day)
	}

	tod, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return fmt.Errorf("job %s: invalid time of day %q: %w", jobID, timeOfDay, err)
	}

	spec := fmt.Sprintf("%d %d * * %d", tod.Minute(), tod.Hour(), day)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("job %s: parse cron spec %q: %w", jobID, spec, err)
	}

	r.add(jobID, bounded{inner: sched, start: start, end: end}, run)
	return nil
}

func (r *CronRegistry) add(jobID string, sched cron.Schedule, run func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[jobID]; ok {
		r.cron.Remove(old)
	}

	r.entries[jobID] = r.cron.Schedule(sched, cron.FuncJob(run))
}

func (r *CronRegistry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[jobID]
	if !ok {
		return false
	}

	r.cron.Remove(id)
	delete(r.entries, jobID)
	return true
}

func (r *CronRegistry) CancelByPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for jobID, id := range r.entries {
		if strings.HasPrefix(jobID, prefix) {
			r.cron.Remove(id)
			delete(r.entries, jobID)
			removed++
		}
	}

	return removed
}

func (r *CronRegistry) JobIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for jobID := range r.entries {
		ids = append(ids, jobID)
	}

	sort.Strings(ids)
	return ids
}

// onceAt fires exactly once at the given instant.
type onceAt struct {
	at time.Time
}

func (s onceAt) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

// bounded clips an inner schedule to [start, end]. A zero end means
// unbounded; a zero next time deactivates the entry.
type bounded struct {
	inner cron.Schedule
	start time.Time
	end   time.Time
}

func (s bounded) Next(t time.Time) time.Time {
	if !s.start.IsZero() && t.Before(s.start) {
		t = s.start.Add(-time.Second)
	}

	n := s.inner.Next(t)
	if !s.end.IsZero() && n.After(s.end) {
		return time.Time{}
	}

	return n
}
