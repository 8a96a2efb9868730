package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/pushcore/notifier/internal/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNoNotificationsFound = errors.New("no notifications found")
)

// Repository provides methods to interact with the notifications table.
// The table is the single source of truth for notification status; every
// status mutation goes through a guarded UPDATE so concurrent attempts
// for the same notification serialize on the row state.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification in pending status and returns its ID.
func (r *Repository) Create(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
		    user_id, channel_id, type_id, title, message, status, retries, schedule_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
    `

	err := r.db.QueryRowContext(
		ctx, query,
		n.UserID, n.ChannelID, n.TypeID, n.Title, n.Message,
		string(model.StatusPending), n.Retries, n.ScheduleAt,
	).Scan(&n.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n.ID, nil
}

const notificationColumns = `
		id, user_id, channel_id, type_id, title, message, status, retries,
		COALESCE(error_message, ''), schedule_at, sent_at, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (model.Notification, error) {
	var (
		n          model.Notification
		scheduleAt sql.NullTime
		sentAt     sql.NullTime
		deletedAt  sql.NullTime
	)

	err := row.Scan(
		&n.ID, &n.UserID, &n.ChannelID, &n.TypeID, &n.Title, &n.Message,
		&n.Status, &n.Retries, &n.ErrorMessage,
		&scheduleAt, &sentAt, &n.CreatedAt, &n.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return model.Notification{}, err
	}

	if scheduleAt.Valid {
		n.ScheduleAt = &scheduleAt.Time
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.Time
	}

	return n, nil
}

// GetByID retrieves a notification by its ID, excluding soft-deleted rows.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE id = $1 AND deleted_at IS NULL;
    `

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// GetStatusByID retrieves the status of a notification by its ID.
func (r *Repository) GetStatusByID(ctx context.Context, id uuid.UUID) (model.Status, error) {
	query := `
		SELECT status
		FROM notifications
		WHERE id = $1;
    `

	var status model.Status
	err := r.db.QueryRowContext(ctx, query, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotificationNotFound
		}

		return "", fmt.Errorf("failed to get notification status: %w", err)
	}

	return status, nil
}

// MarkInFlight atomically moves a pending notification into in_flight and
// reports whether this call won the transition. A false result means the
// notification is terminal, deleted, or already claimed by another
// attempt, and the caller must skip without side effects.
func (r *Repository) MarkInFlight(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL;
    `

	res, err := r.db.ExecContext(ctx, query, string(model.StatusInFlight), id, string(model.StatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to mark notification in flight: %w", err)
	}

	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// MarkPending returns an in-flight notification to pending with the given
// retry count, keeping it eligible for the next attempt.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, retries int) error {
	query := `
		UPDATE notifications
		SET status = $1, retries = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4;
    `

	res, err := r.db.ExecContext(ctx, query, string(model.StatusPending), retries, id, string(model.StatusInFlight))
	if err != nil {
		return fmt.Errorf("failed to mark notification pending: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkSent finalizes a successful attempt: terminal sent status, sent_at
// stamped, error cleared.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4;
    `

	res, err := r.db.ExecContext(ctx, query, string(model.StatusSent), sentAt, id, string(model.StatusInFlight))
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkFailed finalizes an exhausted or permanently failed attempt with
// the last error captured.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retries int) error {
	query := `
		UPDATE notifications
		SET status = $1, error_message = $2, retries = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5;
    `

	res, err := r.db.ExecContext(ctx, query, string(model.StatusFailed), errMsg, retries, id, string(model.StatusInFlight))
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// ReclaimInFlight returns every notification stranded in in_flight back
// to pending and reports the reclaimed rows. Only a dead process leaves
// in_flight rows behind at startup, so this runs once during the boot
// rebuild, before any worker can claim a row.
func (r *Repository) ReclaimInFlight(ctx context.Context) ([]model.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND deleted_at IS NULL
		RETURNING` + notificationColumns + `;
    `

	rows, err := r.db.QueryContext(ctx, query, string(model.StatusPending), string(model.StatusInFlight))
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim in-flight notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, nil
}

// GetAll retrieves all notifications ordered by creation time descending.
func (r *Repository) GetAll(ctx context.Context) ([]model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	if len(notifications) == 0 {
		return nil, ErrNoNotificationsFound
	}

	return notifications, nil
}

// ListDeferredPending retrieves pending notifications with a one-time
// send still in the future, used to rebuild the job registry at startup.
func (r *Repository) ListDeferredPending(ctx context.Context) ([]model.Notification, error) {
	query := `
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND schedule_at > NOW() AND deleted_at IS NULL;
    `

	rows, err := r.db.QueryContext(ctx, query, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, nil
}

// SoftDelete marks a pending notification as deleted without removing
// the row. Terminal and in-flight rows are left alone: their outcome is
// already decided or being decided.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL;
    `

	res, err := r.db.ExecContext(ctx, query, id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}
