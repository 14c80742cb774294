// Package channel normalizes provider webhook payloads into InboundMessage
// values. Parsing is a pure transform: no I/O, no logging. Callers decide
// what to do with unrecognized payloads.
package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// ErrUnrecognizedPayload is returned when no known wire shape matches.
var ErrUnrecognizedPayload = errors.New("unrecognized payload")

// InboundMessage is a provider-independent inbound text message.
type InboundMessage struct {
	Provider          string    `json:"provider"`
	Channel           string    `json:"channel"`
	ExternalMessageID string    `json:"external_message_id"`
	FromAddress       string    `json:"from_address"`
	ToAddress         string    `json:"to_address"`
	Text              string    `json:"text"`
	ReceivedAt        time.Time `json:"received_at"`
	// Attachments lists attachment types (image, audio, ...) for social channels.
	Attachments []string `json:"attachments,omitempty"`
	// IDGenerated is true when the provider sent no message id and one was
	// synthesized; such messages cannot be deduplicated across retries.
	IDGenerated bool `json:"id_generated,omitempty"`
}

// shape is one provider wire format: a predicate on the decoded payload and
// the fields to read when it matches.
type shape struct {
	provider string
	fromKey  string
	textKey  string
	idKeys   []string
	toKeys   []string
}

// shapes are evaluated in order; the first match wins. A payload carrying
// the fields of several providers is attributed to the earliest one.
var shapes = []shape{
	{provider: "inmobile", fromKey: "msisdn", textKey: "text", idKeys: []string{"id", "messageId"}, toKeys: []string{"receiver", "shortcode"}},
	{provider: "twilio", fromKey: "From", textKey: "Body", idKeys: []string{"MessageSid", "SmsSid"}, toKeys: []string{"To"}},
	{provider: "messagebird", fromKey: "originator", textKey: "body", idKeys: []string{"id"}, toKeys: []string{"recipient"}},
	{provider: "generic", fromKey: "phone", textKey: "message", idKeys: []string{"id"}, toKeys: []string{"to"}},
}

func (s shape) matches(p map[string]any) bool {
	return field(p, s.fromKey) != "" && field(p, s.textKey) != ""
}

// Parser turns raw SMS webhook bodies into InboundMessage values.
type Parser struct {
	// CountryCode is used for 8-digit local numbers (default "45").
	CountryCode string
	// Now is the clock used for ReceivedAt and synthesized ids.
	Now func() time.Time
}

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Parse decodes a JSON or form-encoded body and applies ParseMap.
func (p Parser) Parse(raw []byte) (*InboundMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrUnrecognizedPayload
	}
	var payload map[string]any
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
		}
	} else {
		vals, err := url.ParseQuery(string(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
		}
		payload = FormToMap(vals)
	}
	return p.ParseMap(payload)
}

// ParseMap maps a decoded payload onto the first matching wire shape.
func (p Parser) ParseMap(payload map[string]any) (*InboundMessage, error) {
	for _, s := range shapes {
		if !s.matches(payload) {
			continue
		}
		now := p.now()
		msg := &InboundMessage{
			Provider:    s.provider,
			Channel:     domain.ChannelSMS,
			FromAddress: NormalizePhone(field(payload, s.fromKey), p.CountryCode),
			Text:        strings.TrimSpace(field(payload, s.textKey)),
			ReceivedAt:  now,
		}
		msg.ExternalMessageID = first(payload, s.idKeys)
		if msg.ExternalMessageID == "" {
			msg.ExternalMessageID = s.provider + "-" + strconv.FormatInt(now.UnixMilli(), 10)
			msg.IDGenerated = true
		}
		if to := first(payload, s.toKeys); to != "" {
			msg.ToAddress = NormalizeAddress(to, p.CountryCode)
		}
		if msg.FromAddress == "" || msg.Text == "" {
			return nil, ErrUnrecognizedPayload
		}
		return msg, nil
	}
	return nil, ErrUnrecognizedPayload
}

// FormToMap flattens form values, keeping the first value per key.
func FormToMap(vals url.Values) map[string]any {
	out := make(map[string]any, len(vals))
	for k, v := range vals {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func first(p map[string]any, keys []string) string {
	for _, k := range keys {
		if v := field(p, k); v != "" {
			return v
		}
	}
	return ""
}

// field reads a scalar as a string; numbers are formatted without exponent.
func field(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
