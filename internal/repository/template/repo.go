package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/pushcore/notifier/internal/model"
)

var ErrNoTemplatesFound = errors.New("no templates found")

// Repository provides read access to the templates table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new template repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// ActiveByChannel retrieves the active templates for a channel in
// creation order; the first one is the template in effect.
func (r *Repository) ActiveByChannel(ctx context.Context, channelID uuid.UUID) ([]model.Template, error) {
	query := `
		SELECT id, channel_id, name, subject, body, is_active, created_at, updated_at
		FROM templates
		WHERE channel_id = $1 AND is_active = TRUE AND deleted_at IS NULL
		ORDER BY created_at, id;
    `

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get templates for channel: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.ChannelID, &t.Name, &t.Subject, &t.Body, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}

		templates = append(templates, t)
	}

	return templates, nil
}
