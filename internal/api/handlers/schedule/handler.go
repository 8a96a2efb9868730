// Package schedule contains the HTTP handlers for the schedule
// endpoints. Schedules are addressed by the notification they belong to.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/pushcore/notifier/internal/api/dto"
	"github.com/pushcore/notifier/internal/api/respond"
	"github.com/pushcore/notifier/internal/model"
	notifrepo "github.com/pushcore/notifier/internal/repository/notification"
	schedulerepo "github.com/pushcore/notifier/internal/repository/schedule"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/schedule/mock.go -package=mocks
type scheduleService interface {
	Upsert(ctx context.Context, sched model.Schedule) (model.Schedule, error)
	GetByNotificationID(ctx context.Context, notificationID uuid.UUID) (model.Schedule, error)
	Delete(ctx context.Context, notificationID uuid.UUID) error
}

// Handler handles HTTP requests related to schedules.
type Handler struct {
	service   scheduleService
	validator *validator.Validate
}

func NewHandler(s scheduleService, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

// Upsert handles PUT /api/schedules/:id, where id is the notification
// id. It replaces the notification's recurrence in full.
func (h *Handler) Upsert(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.UpsertScheduleRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	sched := model.Schedule{
		NotificationID: id,
		Frequency:      req.Frequency,
		DaysOfWeek:     req.DaysOfWeek,
		TimeOfDay:      req.TimeOfDay,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Repeat:         req.Repeat,
	}

	saved, err := h.service.Upsert(c.Request.Context(), sched)
	if err != nil {
		if errors.Is(err, notifrepo.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to upsert schedule")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, saved)
}

// Get handles GET /api/schedules/:id.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sched, err := h.service.GetByNotificationID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, schedulerepo.ErrScheduleNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("schedule not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to get schedule")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, sched)
}

// Delete handles DELETE /api/schedules/:id. It removes the recurrence
// and cancels the notification's registered jobs.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, schedulerepo.ErrScheduleNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("schedule not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to delete schedule")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "schedule deleted")
}

func parseID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("id", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}

	if id == uuid.Nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	return id, true
}
