// Package channel – Meta webhook payloads
//
// Parses Messenger and Instagram webhook bodies into InboundMessage values
// and verifies the X-Hub-Signature-256 header when an app secret is set.

package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// metaEnvelope is the Messenger / Instagram webhook body.
type metaEnvelope struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []metaEvent `json:"messaging"`
	// Instagram deliveries sometimes use "messages" instead of "messaging".
	Messages []metaEvent `json:"messages"`
}

type metaEvent struct {
	Sender    struct{ ID string } `json:"sender"`
	Recipient struct{ ID string } `json:"recipient"`
	Timestamp int64               `json:"timestamp"`
	Message   *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		IsEcho      bool   `json:"is_echo"`
		Attachments []struct {
			Type string `json:"type"`
		} `json:"attachments"`
	} `json:"message"`
}

// ParseMeta extracts text messages from a Messenger ("page") or Instagram
// webhook. Delivery and read receipts, echoes of the page's own messages
// and events without sender or message id are skipped. The ToAddress of
// each message is the page / account id, used for tenant resolution.
func ParseMeta(raw []byte) ([]InboundMessage, error) {
	var env metaEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	var ch string
	switch env.Object {
	case "page":
		ch = domain.ChannelFacebook
	case "instagram":
		ch = domain.ChannelInstagram
	default:
		return nil, ErrUnrecognizedPayload
	}

	var out []InboundMessage
	for _, e := range env.Entry {
		events := append(append([]metaEvent{}, e.Messaging...), e.Messages...)
		for _, ev := range events {
			if ev.Message == nil || ev.Message.IsEcho {
				continue
			}
			if ev.Sender.ID == "" || ev.Message.MID == "" {
				continue
			}
			types := make([]string, 0, len(ev.Message.Attachments))
			for _, a := range ev.Message.Attachments {
				types = append(types, a.Type)
			}
			text := strings.TrimSpace(ev.Message.Text)
			if len(types) > 0 {
				tag := "[" + strings.Join(types, ", ") + "]"
				if text == "" {
					text = tag
				} else {
					text += " " + tag
				}
			}
			received := time.Now().UTC()
			if ev.Timestamp > 0 {
				received = time.UnixMilli(ev.Timestamp).UTC()
			}
			out = append(out, InboundMessage{
				Provider:          "meta",
				Channel:           ch,
				ExternalMessageID: ev.Message.MID,
				FromAddress:       ev.Sender.ID,
				ToAddress:         e.ID,
				Text:              text,
				ReceivedAt:        received,
				Attachments:       types,
			})
		}
	}
	return out, nil
}

// VerifyMetaSignature checks the X-Hub-Signature-256 header
// ("sha256=<hex>") against an HMAC-SHA256 of body keyed by appSecret.
func VerifyMetaSignature(body []byte, header, appSecret string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || appSecret == "" {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
