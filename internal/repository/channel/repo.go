package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/pushcore/notifier/internal/model"
)

var ErrChannelNotFound = errors.New("channel not found")

// Repository provides read access to the channels table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new channel repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// GetByID retrieves a channel by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (model.Channel, error) {
	query := `
		SELECT id, code, name, COALESCE(description, ''), is_active, created_at, updated_at
		FROM channels
		WHERE id = $1;
    `

	var c model.Channel
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Code, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Channel{}, ErrChannelNotFound
		}

		return model.Channel{}, fmt.Errorf("failed to get channel: %w", err)
	}

	return c, nil
}
