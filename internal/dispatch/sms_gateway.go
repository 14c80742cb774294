// Package dispatch – SMS gateway sender
//
// Posts outbound SMS to the gateway's JSON API with resty. The client never
// retries; a failed send goes back to the pipeline.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSGatewayConfig configures an HTTP SMS gateway in the InMobile style:
// a bearer-authenticated JSON POST with a batch of messages.
type SMSGatewayConfig struct {
	BaseURL string
	Path    string // defaults to /v4/sms/send
	Token   string // bearer token
	// Sender is the originator shown to the customer (short code or name).
	Sender  string
	Timeout time.Duration
}

type smsMessage struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type smsRequest struct {
	Messages []smsMessage `json:"messages"`
}

type smsResponse struct {
	Results []struct {
		MessageID string `json:"messageId"`
		Status    string `json:"status"`
	} `json:"results"`
	ErrorMessage string `json:"errorMessage"`
}

// SMSGateway sends SMS replies through an HTTP gateway.
type SMSGateway struct {
	client *resty.Client
	path   string
	sender string
}

// NewSMSGateway builds the gateway client. Retries are disabled; the
// pipeline decides what a failed send means.
func NewSMSGateway(cfg SMSGatewayConfig) *SMSGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Path == "" {
		cfg.Path = "/v4/sms/send"
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &SMSGateway{client: client, path: cfg.Path, sender: cfg.Sender}
}

// Send posts one message.
func (g *SMSGateway) Send(ctx context.Context, to, text string) (Receipt, error) {
	rc := Receipt{Provider: "sms_gateway"}
	var out smsResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(smsRequest{Messages: []smsMessage{{From: g.sender, To: to, Text: text}}}).
		SetResult(&out).
		SetError(&out).
		Post(g.path)
	if err != nil {
		return rc, fmt.Errorf("sms gateway: %w", err)
	}
	if resp.IsError() {
		msg := out.ErrorMessage
		if msg == "" {
			msg = resp.Status()
		}
		return rc, fmt.Errorf("sms gateway: status %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Results) == 0 {
		return rc, errors.New("sms gateway: empty result")
	}
	rc.MessageID = out.Results[0].MessageID
	rc.Status = out.Results[0].Status
	return rc, nil
}
