package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/pushcore/notifier/internal/model"
)

var ErrScheduleNotFound = errors.New("schedule not found")

// Repository provides methods to interact with the schedules table. A
// schedule is bound 1:1 to a notification, so the notification id is the
// upsert key.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new schedule repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the schedule for its notification or updates the
// existing one, returning the persisted row.
func (r *Repository) Upsert(ctx context.Context, s model.Schedule) (model.Schedule, error) {
	query := `
		INSERT INTO schedules (
		    notification_id, frequency, days_of_week, time_of_day, start_date, end_date, "repeat"
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (notification_id) DO UPDATE SET
		    frequency = EXCLUDED.frequency,
		    days_of_week = EXCLUDED.days_of_week,
		    time_of_day = EXCLUDED.time_of_day,
		    start_date = EXCLUDED.start_date,
		    end_date = EXCLUDED.end_date,
		    "repeat" = EXCLUDED."repeat",
		    updated_at = NOW()
		RETURNING id, created_at, updated_at;
    `

	err := r.db.QueryRowContext(
		ctx, query,
		s.NotificationID, s.Frequency, daysToArray(s.DaysOfWeek), s.TimeOfDay,
		s.StartDate, s.EndDate, s.Repeat,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("failed to upsert schedule: %w", err)
	}

	return s, nil
}

const scheduleColumns = `
		id, notification_id, frequency, days_of_week, time_of_day,
		start_date, end_date, "repeat", created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (model.Schedule, error) {
	var (
		s         model.Schedule
		days      pq.Int64Array
		startDate sql.NullTime
		endDate   sql.NullTime
	)

	err := row.Scan(
		&s.ID, &s.NotificationID, &s.Frequency, &days, &s.TimeOfDay,
		&startDate, &endDate, &s.Repeat, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.Schedule{}, err
	}

	s.DaysOfWeek = arrayToDays(days)
	if startDate.Valid {
		s.StartDate = &startDate.Time
	}
	if endDate.Valid {
		s.EndDate = &endDate.Time
	}

	return s, nil
}

// GetByNotificationID retrieves the schedule bound to a notification.
func (r *Repository) GetByNotificationID(ctx context.Context, notificationID uuid.UUID) (model.Schedule, error) {
	query := `
		SELECT` + scheduleColumns + `
		FROM schedules
		WHERE notification_id = $1;
    `

	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, notificationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Schedule{}, ErrScheduleNotFound
		}

		return model.Schedule{}, fmt.Errorf("failed to get schedule: %w", err)
	}

	return s, nil
}

// ListActive retrieves recurring schedules whose window has not closed,
// used to rebuild the job registry at startup.
func (r *Repository) ListActive(ctx context.Context) ([]model.Schedule, error) {
	query := `
		SELECT` + scheduleColumns + `
		FROM schedules
		WHERE "repeat" = TRUE AND (end_date IS NULL OR end_date > NOW());
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}

		schedules = append(schedules, s)
	}

	return schedules, nil
}

// DeleteByNotificationID removes the schedule bound to a notification.
func (r *Repository) DeleteByNotificationID(ctx context.Context, notificationID uuid.UUID) error {
	query := `
		DELETE FROM schedules
		WHERE notification_id = $1;
    `

	res, err := r.db.ExecContext(ctx, query, notificationID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrScheduleNotFound
	}

	return nil
}

func daysToArray(days []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		arr = append(arr, int64(d))
	}
	return arr
}

func arrayToDays(arr pq.Int64Array) []int {
	if len(arr) == 0 {
		return nil
	}
	days := make([]int, 0, len(arr))
	for _, d := range arr {
		days = append(days, int(d))
	}
	return days
}
