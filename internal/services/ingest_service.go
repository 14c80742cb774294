// Package services – Ingestor
//
// Ingestor is the synchronous half of the webhook: it deduplicates the
// provider message, routes it to a tenant, registers the customer and
// thread, stores the inbound message and hands a Job to the worker. It never
// classifies or replies; that happens in ConversationService.
//
// Ingest reports an outcome for every message so the webhook can always
// answer 200 with a status body.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

// Webhook outcomes.
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
	StatusError     = "error"
)

// IngestResult is the outcome of one inbound message.
type IngestResult struct {
	Status    string `json:"status"`
	ThreadID  string `json:"thread_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Enqueuer accepts jobs without blocking.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// Ingestor stores inbound messages and schedules their processing.
type Ingestor struct {
	DB    *gorm.DB
	Queue Enqueuer

	// DefaultSMSReceiver routes SMS whose gateway omitted the receiver.
	DefaultSMSReceiver string
	CountryCode        string
	// ThreadIdleTTL closes idle open threads on next contact (0 disables).
	ThreadIdleTTL time.Duration

	Now func() time.Time
}

// Ingest runs the idempotency check, tenant resolution, registry lookups
// and storage for msg. A non-nil error always comes with StatusError.
func (s *Ingestor) Ingest(ctx context.Context, msg channel.InboundMessage) (res IngestResult, err error) {
	tr := otel.Tracer("services/Ingestor")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("channel", msg.Channel),
			attribute.String("provider", msg.Provider),
			attribute.String("message.external_id", msg.ExternalMessageID),
		),
	)
	defer func() {
		webhookMessages.WithLabelValues(msg.Channel, res.Status).Inc()
		span.SetAttributes(attribute.String("ingest.status", res.Status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if msg.Text == "" {
		return IngestResult{Status: StatusIgnored, Reason: ErrEmptyMessage.Error()}, nil
	}

	dup, err := repo.IsDuplicate(ctx, s.DB, msg.Channel, msg.ExternalMessageID)
	if err != nil {
		// Fail closed: without the ledger a retry could be answered twice.
		ledgerUnavailable.Inc()
		log.Error().Err(err).Str("channel", msg.Channel).Str("external_id", msg.ExternalMessageID).Msg("idempotency ledger unavailable")
		return IngestResult{Status: StatusError, Reason: "ledger unavailable"}, err
	}
	if dup {
		return IngestResult{Status: StatusDuplicate}, nil
	}

	receiver := msg.ToAddress
	if receiver == "" && msg.Channel == domain.ChannelSMS {
		receiver = channel.NormalizeAddress(s.DefaultSMSReceiver, s.CountryCode)
	}
	tenantID, err := repo.ResolveTenant(ctx, s.DB, receiver)
	if err != nil {
		return IngestResult{Status: StatusError, Reason: "tenant lookup failed"}, err
	}
	if tenantID == "" {
		log.Info().Str("channel", msg.Channel).Str("receiver", receiver).Msg("no tenant for receiver")
		return IngestResult{Status: StatusIgnored, Reason: "unknown receiver"}, nil
	}
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	info := repo.CustomerInfo{}
	if msg.Channel == domain.ChannelSMS {
		info.Phone = msg.FromAddress
	} else {
		info.ExternalID = msg.FromAddress
	}
	cust, err := repo.GetOrCreateCustomer(ctx, s.DB, tenantID, info)
	if err != nil {
		return IngestResult{Status: StatusError, Reason: "customer registry"}, err
	}

	th, err := repo.GetOrCreateThread(ctx, s.DB, repo.ThreadKey{
		TenantID:   tenantID,
		CustomerID: cust.ID,
		Channel:    msg.Channel,
	}, s.now(), s.ThreadIdleTTL)
	if err != nil {
		return IngestResult{Status: StatusError, Reason: "thread registry"}, err
	}

	var stored *domain.ThreadMessage
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta := map[string]any{"provider": msg.Provider}
		if len(msg.Attachments) > 0 {
			meta["attachments"] = msg.Attachments
		}
		if msg.IDGenerated {
			meta["id_generated"] = true
		}
		m, err := repo.AppendMessage(ctx, tx, th.ID, repo.NewMessage{
			Direction:         domain.DirectionInbound,
			SenderType:        domain.SenderCustomer,
			Content:           msg.Text,
			ExternalMessageID: msg.ExternalMessageID,
			Metadata:          meta,
		})
		if err != nil {
			return err
		}
		if _, err := repo.MarkProcessed(ctx, tx, msg.Channel, msg.ExternalMessageID, tenantID); err != nil {
			return err
		}
		stored = m
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent delivery of the same message won the ledger insert.
		return IngestResult{Status: StatusDuplicate, ThreadID: th.ID}, nil
	}
	if err != nil {
		return IngestResult{Status: StatusError, ThreadID: th.ID, Reason: "store message"}, err
	}

	res = IngestResult{Status: StatusSuccess, ThreadID: th.ID, MessageID: stored.ID}
	if s.Queue != nil {
		queued := s.Queue.Enqueue(Job{
			TenantID:   tenantID,
			ThreadID:   th.ID,
			CustomerID: cust.ID,
			Channel:    msg.Channel,
			From:       msg.FromAddress,
			MessageID:  stored.ID,
			Text:       msg.Text,
			ReceivedAt: msg.ReceivedAt,
		})
		if !queued {
			res.Reason = "queued for staff"
		}
	}
	return res, nil
}

func (s *Ingestor) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
