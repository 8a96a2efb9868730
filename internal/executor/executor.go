// Package executor performs single delivery attempts: load, render,
// dispatch, and write the resulting status transition back to the store.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/pushcore/notifier/internal/model"
	"github.com/pushcore/notifier/internal/render"
	channelrepo "github.com/pushcore/notifier/internal/repository/channel"
	notifrepo "github.com/pushcore/notifier/internal/repository/notification"
	userrepo "github.com/pushcore/notifier/internal/repository/user"
	"github.com/pushcore/notifier/internal/sender"
)

// ErrNoTemplate marks an attempt skipped because the channel has no
// active template. The notification stays pending: once a template is
// configured, the next trigger delivers it.
var ErrNoTemplate = errors.New("no active template for channel")

// Code classifies the result of a delivery attempt.
type Code int

const (
	// CodeDelivered: the send succeeded and the notification is sent.
	CodeDelivered Code = iota
	// CodeSkipped: nothing was attempted (stale job, lost race, or
	// missing template); no status transition besides a possible revert.
	CodeSkipped
	// CodeRetry: a transient failure left retry budget; the caller
	// should schedule a retry job after RetryIn.
	CodeRetry
	// CodeFailed: the notification is terminally failed.
	CodeFailed
)

// Outcome is the explicit retry decision of one attempt. The caller
// interprets it; the executor itself never sleeps or blocks on backoff.
type Outcome struct {
	Code    Code
	Attempt int           // retry attempt number, for the retry job id
	RetryIn time.Duration // backoff before the retry job fires
	Err     error
}

type notificationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	MarkInFlight(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPending(ctx context.Context, id uuid.UUID, retries int) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retries int) error
}

type channelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Channel, error)
}

type templateStore interface {
	ActiveByChannel(ctx context.Context, channelID uuid.UUID) ([]model.Template, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, code, to string, content sender.Content) error
}

// Config bounds the retry behavior of delivery attempts.
type Config struct {
	MaxRetries int           // attempts allowed before terminal failure
	Backoff    time.Duration // delay before each retry job
}

// Executor orchestrates one delivery attempt per Attempt call.
type Executor struct {
	notifications notificationStore
	channels      channelStore
	templates     templateStore
	users         userStore
	dispatcher    dispatcher
	cfg           Config
	now           func() time.Time
}

func New(
	notifications notificationStore,
	channels channelStore,
	templates templateStore,
	users userStore,
	d dispatcher,
	cfg Config,
) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}

	return &Executor{
		notifications: notifications,
		channels:      channels,
		templates:     templates,
		users:         users,
		dispatcher:    d,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Attempt performs exactly one delivery attempt for the notification.
//
// A missing notification or one already past pending is a silent no-op:
// jobs may legitimately outlive the rows that created them. The
// pending -> in_flight compare-and-set claims the row before any side
// effect, so concurrent fires for the same notification serialize.
func (e *Executor) Attempt(ctx context.Context, id uuid.UUID) Outcome {
	n, err := e.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, notifrepo.ErrNotificationNotFound) {
			zlog.Logger.Debug().Str("notification_id", id.String()).Msg("stale job: notification gone")
			return Outcome{Code: CodeSkipped}
		}

		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to load notification")
		return Outcome{Code: CodeRetry, RetryIn: e.cfg.Backoff, Err: err}
	}

	if n.Status != model.StatusPending {
		// Duplicate-fire guard: terminal or already-claimed notifications
		// must never be resent.
		return Outcome{Code: CodeSkipped}
	}

	claimed, err := e.notifications.MarkInFlight(ctx, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to claim notification")
		return Outcome{Code: CodeRetry, RetryIn: e.cfg.Backoff, Err: err}
	}
	if !claimed {
		return Outcome{Code: CodeSkipped}
	}

	return e.deliver(ctx, n)
}

func (e *Executor) deliver(ctx context.Context, n model.Notification) Outcome {
	ch, err := e.channels.GetByID(ctx, n.ChannelID)
	if err != nil {
		if errors.Is(err, channelrepo.ErrChannelNotFound) {
			return e.permanent(ctx, n, fmt.Errorf("channel %s not found", n.ChannelID))
		}
		return e.transient(ctx, n, err)
	}

	templates, err := e.templates.ActiveByChannel(ctx, n.ChannelID)
	if err != nil {
		return e.transient(ctx, n, err)
	}
	if len(templates) == 0 {
		// Configuration gap, not a delivery failure: release the claim
		// and leave the notification pending for a later trigger.
		if err := e.notifications.MarkPending(ctx, n.ID, n.Retries); err != nil {
			zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to release claim")
		}
		zlog.Logger.Warn().
			Str("notification_id", n.ID.String()).
			Str("channel_id", n.ChannelID.String()).
			Msg("no active template for channel, skipping delivery")
		return Outcome{Code: CodeSkipped, Err: ErrNoTemplate}
	}
	tmpl := templates[0]

	u, err := e.users.GetByID(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return e.permanent(ctx, n, fmt.Errorf("user %s not found", n.UserID))
		}
		return e.transient(ctx, n, err)
	}

	body, err := render.Render(tmpl.Body, map[string]string{
		"username": u.Username,
		"title":    n.Title,
		"message":  n.Message,
	})
	if err != nil {
		// A template bug must not burn retry budget.
		return e.permanent(ctx, n, err)
	}

	to, err := destination(ch.Code, u)
	if err != nil {
		return e.permanent(ctx, n, err)
	}

	subject := tmpl.Subject
	if subject == "" {
		subject = n.Title
	}

	if err := e.dispatcher.Dispatch(ctx, ch.Code, to, sender.Content{Subject: subject, Body: body}); err != nil {
		if errors.Is(err, sender.ErrUnknownChannel) {
			return e.permanent(ctx, n, err)
		}
		return e.transient(ctx, n, err)
	}

	if err := e.notifications.MarkSent(ctx, n.ID, e.now()); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("sent but failed to record status")
		return Outcome{Code: CodeDelivered, Err: err}
	}

	zlog.Logger.Info().
		Str("notification_id", n.ID.String()).
		Str("channel", ch.Code).
		Msg("notification delivered")
	return Outcome{Code: CodeDelivered}
}

// permanent finalizes a non-retryable failure without touching the retry
// counter.
func (e *Executor) permanent(ctx context.Context, n model.Notification, cause error) Outcome {
	if err := e.notifications.MarkFailed(ctx, n.ID, cause.Error(), n.Retries); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to record permanent failure")
	}

	zlog.Logger.Warn().Err(cause).Str("notification_id", n.ID.String()).Msg("permanent delivery failure")
	return Outcome{Code: CodeFailed, Err: cause}
}

// transient consumes one unit of retry budget; once exhausted the
// notification fails terminally with the last error captured.
func (e *Executor) transient(ctx context.Context, n model.Notification, cause error) Outcome {
	next := n.Retries + 1

	if next < e.cfg.MaxRetries {
		if err := e.notifications.MarkPending(ctx, n.ID, next); err != nil {
			zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to record retry")
		}

		zlog.Logger.Warn().Err(cause).
			Str("notification_id", n.ID.String()).
			Int("attempt", next).
			Msg("transient delivery failure, retry scheduled")
		return Outcome{Code: CodeRetry, Attempt: next, RetryIn: e.cfg.Backoff, Err: cause}
	}

	if err := e.notifications.MarkFailed(ctx, n.ID, cause.Error(), next); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to record exhausted retries")
	}

	zlog.Logger.Error().Err(cause).
		Str("notification_id", n.ID.String()).
		Int("retries", next).
		Msg("retry budget exhausted, notification failed")
	return Outcome{Code: CodeFailed, Err: cause}
}

// destination builds the channel-specific address for a user. Email
// destinations are resolved by the sender itself, so the address passes
// through unchanged.
func destination(channelCode string, u model.User) (string, error) {
	switch channelCode {
	case sender.ChannelSMS, sender.ChannelWhatsApp:
		if u.Phone == "" {
			return "", fmt.Errorf("user %s has no phone number", u.ID)
		}
		return u.CountryCode + u.Phone, nil
	case sender.ChannelPush:
		return u.ID.String(), nil
	case sender.ChannelEmail:
		return u.Email, nil
	default:
		return "", fmt.Errorf("%w: %q", sender.ErrUnknownChannel, channelCode)
	}
}
