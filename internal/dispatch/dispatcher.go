// Package dispatch delivers outbound replies to customers over the channel
// their message arrived on.
//
// A Dispatcher maps channel names to Senders. It never retries on its own:
// a failed send is logged, reported through OnFailure and returned to the
// caller, which decides whether the thread needs a human.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoSender is returned when no sender is registered for a channel.
var ErrNoSender = errors.New("no sender for channel")

// Receipt is what a provider reports for an accepted message.
type Receipt struct {
	Provider  string `json:"provider"`
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Sender delivers one text message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, text string) (Receipt, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, text string) (Receipt, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, text string) (Receipt, error) { return f(ctx, to, text) }

// Result is the outcome of Dispatcher.Send.
type Result struct {
	Channel string
	To      string
	Receipt Receipt
	Err     error
	Elapsed time.Duration
}

// OK reports whether the provider accepted the message.
func (r Result) OK() bool { return r.Err == nil }

// Metadata renders the result for the stored outbound ThreadMessage.
func (r Result) Metadata() map[string]any {
	m := map[string]any{
		"provider":   r.Receipt.Provider,
		"elapsed_ms": r.Elapsed.Milliseconds(),
	}
	if r.Receipt.MessageID != "" {
		m["provider_message_id"] = r.Receipt.MessageID
	}
	if r.Receipt.Status != "" {
		m["delivery_status"] = r.Receipt.Status
	}
	if r.Err != nil {
		m["delivery_error"] = r.Err.Error()
	}
	return m
}

// Dispatcher routes replies by channel.
type Dispatcher struct {
	senders  map[string]Sender
	fallback Sender

	// OnFailure, when set, is called once per failed send.
	OnFailure func(channel string)
}

// NewDispatcher returns a dispatcher with no senders. Messages for
// unregistered channels go to fallback when it is non-nil.
func NewDispatcher(fallback Sender) *Dispatcher {
	return &Dispatcher{senders: map[string]Sender{}, fallback: fallback}
}

// Register binds s to channel and returns d for chaining.
func (d *Dispatcher) Register(channel string, s Sender) *Dispatcher {
	if s != nil {
		d.senders[channel] = s
	}
	return d
}

// Send delivers text to the recipient on channel.
func (d *Dispatcher) Send(ctx context.Context, channel, to, text string) Result {
	res := Result{Channel: channel, To: to}
	s, ok := d.senders[channel]
	if !ok {
		s = d.fallback
	}
	if s == nil {
		res.Err = fmt.Errorf("%w: %s", ErrNoSender, channel)
		d.failed(res)
		return res
	}

	start := time.Now()
	res.Receipt, res.Err = s.Send(ctx, to, text)
	res.Elapsed = time.Since(start)
	if res.Err != nil {
		d.failed(res)
	}
	return res
}

func (d *Dispatcher) failed(res Result) {
	log.Warn().
		Err(res.Err).
		Str("channel", res.Channel).
		Str("provider", res.Receipt.Provider).
		Msg("reply dispatch failed")
	if d.OnFailure != nil {
		d.OnFailure(res.Channel)
	}
}
