// Package dispatch – Meta Graph sender
//
// Sends Facebook Messenger and Instagram replies through the Graph API
// /me/messages endpoint with the page access token.

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultGraphURL is the Meta Graph API base used for Messenger and
// Instagram replies.
const DefaultGraphURL = "https://graph.facebook.com/v21.0"

// MetaSenderConfig configures MetaSender.
type MetaSenderConfig struct {
	BaseURL         string // Graph API root including the version
	PageAccessToken string
	// Provider labels receipts; "meta" unless one sender per platform
	// is configured.
	Provider        string
	Timeout         time.Duration
}

type metaRecipient struct {
	ID string `json:"id"`
}

type metaText struct {
	Text string `json:"text"`
}

type metaRequest struct {
	Recipient     metaRecipient `json:"recipient"`
	Message       metaText      `json:"message"`
	MessagingType string        `json:"messaging_type"`
}

type metaResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Error       *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// MetaSender replies to Messenger and Instagram users via the Send API.
type MetaSender struct {
	client   *resty.Client
	token    string
	provider string
}

// NewMetaSender builds a Graph API client.
func NewMetaSender(cfg MetaSenderConfig) *MetaSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Provider == "" {
		cfg.Provider = "meta"
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &MetaSender{client: client, token: cfg.PageAccessToken, provider: cfg.Provider}
}

// Send posts a RESPONSE-type text message to the page-scoped user id.
func (s *MetaSender) Send(ctx context.Context, to, text string) (Receipt, error) {
	rc := Receipt{Provider: s.provider}
	if s.token == "" {
		return rc, fmt.Errorf("%s: no page access token", s.provider)
	}
	var out metaResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", s.token).
		SetBody(metaRequest{
			Recipient:     metaRecipient{ID: to},
			Message:       metaText{Text: text},
			MessagingType: "RESPONSE",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/me/messages")
	if err != nil {
		return rc, fmt.Errorf("%s: %w", s.provider, err)
	}
	if out.Error != nil {
		return rc, fmt.Errorf("%s: %s (code %d)", s.provider, out.Error.Message, out.Error.Code)
	}
	if resp.IsError() {
		return rc, fmt.Errorf("%s: status %d", s.provider, resp.StatusCode())
	}
	rc.MessageID = out.MessageID
	rc.Status = "sent"
	return rc, nil
}
