// Package sender routes rendered notifications to channel-specific
// transports.
package sender

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Channel codes known to the dispatcher.
const (
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelPush     = "push"
)

// ErrUnknownChannel marks dispatch to a channel code with no registered
// sender. It is permanent: retrying cannot fix a missing sender.
var ErrUnknownChannel = errors.New("unknown channel code")

// Content is the rendered message handed to a sender.
type Content struct {
	Subject string
	Body    string
}

// Sender delivers rendered content to a destination address. The call is
// synchronous; the transport behind it may be asynchronous internally.
type Sender interface {
	Send(ctx context.Context, to string, content Content) error
}

// Dispatcher maps channel codes to senders and bounds every send with a
// timeout so a hung transport cannot stall a delivery worker.
type Dispatcher struct {
	senders map[string]Sender
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		senders: make(map[string]Sender),
		timeout: timeout,
	}
}

// Register binds a sender to a channel code, replacing any previous one.
func (d *Dispatcher) Register(code string, s Sender) {
	d.senders[code] = s
}

// Dispatch routes to the sender registered for code and invokes it.
func (d *Dispatcher) Dispatch(ctx context.Context, code, to string, content Content) error {
	s, ok := d.senders[code]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, code)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := s.Send(ctx, to, content); err != nil {
		return fmt.Errorf("send via %s: %w", code, err)
	}

	return nil
}
