package notification

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"

	"github.com/pushcore/notifier/internal/model"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

func notificationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "channel_id", "type_id", "title", "message", "status", "retries",
		"error_message", "schedule_at", "sent_at", "created_at", "updated_at", "deleted_at",
	})
}

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)

	notificationID := uuid.New()
	n := model.Notification{
		UserID:    uuid.New(),
		ChannelID: uuid.New(),
		TypeID:    uuid.New(),
		Title:     "Daily digest",
		Message:   "Your summary is ready",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO notifications (
		    user_id, channel_id, type_id, title, message, status, retries, schedule_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
    `)).
		WithArgs(n.UserID, n.ChannelID, n.TypeID, n.Title, n.Message, "pending", n.Retries, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(notificationID))

	id, err := repo.Create(context.Background(), n)
	assert.NoError(t, err)
	assert.Equal(t, notificationID, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	scheduleAt := time.Now().Add(time.Hour)
	now := time.Now()

	query := regexp.QuoteMeta(`
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE id = $1 AND deleted_at IS NULL;
    `)

	mock.ExpectQuery(query).
		WithArgs(id).
		WillReturnRows(notificationRows().AddRow(
			id, uuid.New(), uuid.New(), uuid.New(), "Daily digest", "body", "pending", 0,
			"", scheduleAt, nil, now, now, nil,
		))

	n, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, id, n.ID)
	assert.Equal(t, model.StatusPending, n.Status)
	assert.NotNil(t, n.ScheduleAt)
	assert.Nil(t, n.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(query).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkInFlight(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL;
    `)

	mock.ExpectExec(query).
		WithArgs("in_flight", id, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.MarkInFlight(context.Background(), id)
	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Lost race: another attempt already moved the row out of pending.
	mock.ExpectExec(query).
		WithArgs("in_flight", id, "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = repo.MarkInFlight(context.Background(), id)
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	sentAt := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, sent_at = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4;
    `)).
		WithArgs("sent", sentAt, id, "in_flight").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), id, sentAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, error_message = $2, retries = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5;
    `)

	mock.ExpectExec(query).
		WithArgs("failed", "gateway timeout", 10, id, "in_flight").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), id, "gateway timeout", 10)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(query).
		WithArgs("failed", "gateway timeout", 10, id, "in_flight").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkFailed(context.Background(), id, "gateway timeout", 10)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReclaimInFlight(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now()
	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND deleted_at IS NULL
		RETURNING` + notificationColumns + `;
    `)

	mock.ExpectQuery(query).
		WithArgs("pending", "in_flight").
		WillReturnRows(notificationRows().AddRow(
			uuid.New(), uuid.New(), uuid.New(), uuid.New(), "stranded", "msg", "pending", 2,
			"", nil, nil, now, now, nil,
		))

	reclaimed, err := repo.ReclaimInFlight(context.Background())
	assert.NoError(t, err)
	assert.Len(t, reclaimed, 1)
	assert.Equal(t, model.StatusPending, reclaimed[0].Status)
	assert.Equal(t, 2, reclaimed[0].Retries)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Nothing stranded: the common case.
	mock.ExpectQuery(query).
		WithArgs("pending", "in_flight").
		WillReturnRows(notificationRows())

	reclaimed, err = repo.ReclaimInFlight(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, reclaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAll(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now()
	query := regexp.QuoteMeta(`
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC;
    `)

	rows := notificationRows().
		AddRow(uuid.New(), uuid.New(), uuid.New(), uuid.New(), "first", "msg1", "sent", 0, "", nil, now, now, now, nil).
		AddRow(uuid.New(), uuid.New(), uuid.New(), uuid.New(), "second", "msg2", "failed", 10, "gateway timeout", nil, nil, now, now, nil)

	mock.ExpectQuery(query).WillReturnRows(rows)

	list, err := repo.GetAll(context.Background())
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "gateway timeout", list[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(query).WillReturnRows(notificationRows())

	_, err = repo.GetAll(context.Background())
	assert.ErrorIs(t, err, ErrNoNotificationsFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDeferredPending(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now()
	scheduleAt := now.Add(2 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND schedule_at > NOW() AND deleted_at IS NULL;
    `)).
		WithArgs("pending").
		WillReturnRows(notificationRows().AddRow(
			uuid.New(), uuid.New(), uuid.New(), uuid.New(), "deferred", "msg", "pending", 0,
			"", scheduleAt, nil, now, now, nil,
		))

	list, err := repo.ListDeferredPending(context.Background())
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NotNil(t, list[0].ScheduleAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	query := regexp.QuoteMeta(`
		UPDATE notifications
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL;
    `)

	mock.ExpectExec(query).
		WithArgs(id, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.SoftDelete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())

	// Terminal rows stay untouched.
	mock.ExpectExec(query).
		WithArgs(id, "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SoftDelete(context.Background(), id), ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
