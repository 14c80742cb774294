// Package services – ConversationService
//
// ConversationService is the asynchronous half of the pipeline. For one
// stored inbound message it loads the thread's draft, runs the state machine
// over the tenant's menu, materializes the order on confirmation, persists
// the draft, replies on the originating channel and records the outbound
// message. Escalations flag the thread and publish an event.
//
// Work on one thread is serialized in-process by a KeyedMutex; across
// processes the draft's version column turns a lost race into a reload.
//
// Observability: Process is OpenTelemetry-instrumented and every failure is
// logged with the thread id.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/orderflow-agent/internal/assistant"
	"github.com/tbourn/orderflow-agent/internal/conversation"
	"github.com/tbourn/orderflow-agent/internal/dispatch"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/notify"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

// staleDraftAttempts bounds reloads after losing a draft version race.
const staleDraftAttempts = 3

// ConversationService processes jobs produced by the Ingestor.
type ConversationService struct {
	DB         *gorm.DB
	Catalogs   *CatalogService
	Orders     *OrderService
	Dispatcher *dispatch.Dispatcher
	Events     notify.Publisher
	// Assistant, when set, answers info questions in free text.
	Assistant assistant.Responder

	Policy         conversation.Policy
	MatchThreshold float64

	locks *KeyedMutex
}

// NewConversationService wires the service with the default policy.
func NewConversationService(db *gorm.DB, catalogs *CatalogService, orders *OrderService, d *dispatch.Dispatcher, events notify.Publisher) *ConversationService {
	if events == nil {
		events = notify.Nop{}
	}
	return &ConversationService{
		DB:         db,
		Catalogs:   catalogs,
		Orders:     orders,
		Dispatcher: d,
		Events:     events,
		Policy:     conversation.DefaultPolicy(),
		locks:      NewKeyedMutex(),
	}
}

// turn is the result of one machine step, ready to be delivered.
type turn struct {
	draft  domain.Draft
	out    conversation.Outcome
	order  *domain.Order
	sender string
}

// Process handles one job end to end. Errors are also handled here (the
// thread is flagged and a technical-error reply attempted); the returned
// error is for logging only.
func (s *ConversationService) Process(ctx context.Context, job Job) (err error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("tenant.id", job.TenantID),
			attribute.String("thread.id", job.ThreadID),
			attribute.String("channel", job.Channel),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := s.locks.Lock(job.ThreadID)
	defer unlock()

	tm, err := s.Catalogs.Load(ctx, job.TenantID)
	if err != nil {
		return s.fail(ctx, job, nil, fmt.Errorf("load catalog: %w", err))
	}
	machine := conversation.NewMachine(tm.Catalog,
		conversation.WithPolicy(s.Policy),
		conversation.WithCurrency(tm.Tenant.Currency),
		conversation.WithCountryCode(tm.Tenant.CountryCode),
		conversation.WithMatchThreshold(s.MatchThreshold),
	)

	var t turn
	for attempt := 0; ; attempt++ {
		t, err = s.step(ctx, machine, tm, job)
		if err == nil {
			break
		}
		if !errors.Is(err, repo.ErrStaleDraft) || attempt+1 >= staleDraftAttempts {
			return s.fail(ctx, job, &t.draft, err)
		}
		log.Warn().Str("thread_id", job.ThreadID).Int("attempt", attempt+1).Msg("draft changed concurrently, reloading")
	}

	intentsClassified.WithLabelValues(string(t.out.Intent)).Inc()
	span.SetAttributes(
		attribute.String("intent", string(t.out.Intent)),
		attribute.Float64("intent.confidence", t.out.Confidence),
		attribute.String("draft.state", string(t.draft.State)),
	)

	if t.out.Suppressed {
		log.Debug().Str("thread_id", job.ThreadID).Msg("thread awaits a human, no automated reply")
		return nil
	}

	if err := repo.RecordTurn(ctx, s.DB, job.ThreadID, t.out.Confidence); err != nil {
		log.Error().Err(err).Str("thread_id", job.ThreadID).Msg("record turn confidence")
	}
	if t.out.Escalated {
		s.escalate(ctx, job, t.out.EscalationReason, t.out.Confidence)
	}
	if t.order != nil {
		s.publish(ctx, notify.Event{
			Type:     notify.EventOrder,
			TenantID: job.TenantID,
			ThreadID: job.ThreadID,
			Channel:  job.Channel,
			OrderID:  t.order.ID,
		})
	}

	meta := map[string]any{
		"intent":     string(t.out.Intent),
		"confidence": t.out.Confidence,
		"state":      string(t.draft.State),
	}
	if t.out.Escalated {
		meta["escalation_reason"] = string(t.out.EscalationReason)
	}
	if t.order != nil {
		meta["order_number"] = t.order.OrderNumber
	}
	if ok := s.reply(ctx, job, t.out.Reply, t.sender, meta); !ok {
		// The customer did not get an answer; someone has to follow up.
		if err := repo.FlagAttention(ctx, s.DB, job.ThreadID, 0); err != nil {
			log.Error().Err(err).Str("thread_id", job.ThreadID).Msg("flag thread after failed dispatch")
		}
	}
	return nil
}

// step loads the draft, transitions it and persists the result. Order
// creation happens before the draft is saved; it is idempotent on the
// summary hash, so a reload after ErrStaleDraft cannot create a second order.
func (s *ConversationService) step(ctx context.Context, m *conversation.Machine, tm *TenantMenu, job Job) (turn, error) {
	var t turn
	d, err := repo.GetDraft(ctx, s.DB, job.ThreadID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		phone := ""
		if job.Channel == domain.ChannelSMS {
			phone = job.From
		}
		fresh := conversation.NewDraft(job.ThreadID, job.Channel, phone)
		if tm.Tenant.Language != "" {
			fresh.Language = tm.Tenant.Language
		}
		d = &fresh
	case err != nil:
		return t, fmt.Errorf("load draft: %w", err)
	}
	t.draft = *d

	next, out := m.Step(*d, job.Text)
	t.out = out
	t.sender = domain.SenderAI
	if out.Suppressed {
		t.draft = next
		return t, nil
	}
	if out.Escalated {
		t.sender = domain.SenderSystem
	}

	if out.Materialize {
		o, err := s.Orders.CreateOrder(ctx, job.TenantID, job.ThreadID, job.CustomerID, next)
		if err != nil {
			return t, fmt.Errorf("create order: %w", err)
		}
		next.OrderNumber = o.OrderNumber
		t.order = o
		t.out.Reply = conversation.Render(next.Language, conversation.MsgOrderPlaced, map[string]string{"order": o.OrderNumber})
	}

	if out.InfoRequest && s.Assistant != nil {
		if answer, ok := s.answer(ctx, tm, next.Language, job.Text); ok {
			t.out.Reply = answer
		}
	}

	if err := repo.SaveDraft(ctx, s.DB, &next); err != nil {
		return t, err
	}
	t.draft = next
	return t, nil
}

func (s *ConversationService) answer(ctx context.Context, tm *TenantMenu, lang, text string) (string, bool) {
	answer, err := s.Assistant.Answer(ctx, assistant.Question{
		TenantName: tm.Tenant.Name,
		Language:   lang,
		Menu:       tm.Catalog.Items(),
		Text:       text,
	})
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tm.Tenant.ID).Msg("assistant answer failed, using template")
		return "", false
	}
	return answer, true
}

// fail runs the failure path: the draft's retry counter grows, the thread is
// flagged with zero confidence and the customer gets a technical-error reply.
func (s *ConversationService) fail(ctx context.Context, job Job, d *domain.Draft, cause error) error {
	log.Error().Err(cause).Str("thread_id", job.ThreadID).Msg("conversation turn failed")

	draft := conversation.NewDraft(job.ThreadID, job.Channel, "")
	if d != nil && d.ThreadID != "" {
		draft = *d
	} else if stored, err := repo.GetDraft(ctx, s.DB, job.ThreadID); err == nil {
		draft = *stored
	}
	next, out := conversation.NewMachine(nil, conversation.WithPolicy(s.Policy)).RecordFailure(draft)
	if err := repo.SaveDraft(ctx, s.DB, &next); err != nil {
		log.Warn().Err(err).Str("thread_id", job.ThreadID).Msg("save draft after failure")
	}

	if err := repo.FlagAttention(ctx, s.DB, job.ThreadID, 0); err != nil {
		log.Error().Err(err).Str("thread_id", job.ThreadID).Msg("flag thread after failure")
	}
	if out.Escalated {
		if err := repo.SetDraftRequiresHuman(ctx, s.DB, job.ThreadID, true); err != nil {
			log.Warn().Err(err).Str("thread_id", job.ThreadID).Msg("mark draft for human")
		}
		escalations.WithLabelValues(string(out.EscalationReason)).Inc()
		s.publish(ctx, notify.Event{
			Type:     notify.EventEscalated,
			TenantID: job.TenantID,
			ThreadID: job.ThreadID,
			Channel:  job.Channel,
			Reason:   string(out.EscalationReason),
		})
	}
	s.reply(ctx, job, out.Reply, domain.SenderSystem, map[string]any{"error": cause.Error()})
	return cause
}

// Abandon answers the customer when the worker gives up on job before or
// while running it. The worker has already flagged the thread; this only
// sends and records the technical-error reply in the draft's language.
func (s *ConversationService) Abandon(ctx context.Context, job Job, reason string) {
	lang := conversation.DefaultLanguage
	if d, err := repo.GetDraft(ctx, s.DB, job.ThreadID); err == nil && d.Language != "" {
		lang = d.Language
	}
	s.reply(ctx, job, conversation.Render(lang, conversation.MsgTechnicalError, nil), domain.SenderSystem,
		map[string]any{"error": reason})
}

func (s *ConversationService) escalate(ctx context.Context, job Job, reason conversation.Reason, confidence float64) {
	escalations.WithLabelValues(string(reason)).Inc()
	if err := repo.FlagAttention(ctx, s.DB, job.ThreadID, confidence); err != nil {
		log.Error().Err(err).Str("thread_id", job.ThreadID).Msg("flag thread for escalation")
	}
	log.Info().
		Str("thread_id", job.ThreadID).
		Str("reason", string(reason)).
		Float64("confidence", confidence).
		Msg("thread escalated to staff")
	s.publish(ctx, notify.Event{
		Type:       notify.EventEscalated,
		TenantID:   job.TenantID,
		ThreadID:   job.ThreadID,
		Channel:    job.Channel,
		Reason:     string(reason),
		Confidence: confidence,
	})
}

// reply dispatches text and stores it as an outbound message. It reports
// whether the provider accepted the message.
func (s *ConversationService) reply(ctx context.Context, job Job, text, sender string, meta map[string]any) bool {
	if text == "" {
		return true
	}
	res := s.Dispatcher.Send(ctx, job.Channel, job.From, text)
	if meta == nil {
		meta = map[string]any{}
	}
	for k, v := range res.Metadata() {
		meta[k] = v
	}
	if _, err := repo.AppendMessage(ctx, s.DB, job.ThreadID, repo.NewMessage{
		Direction:  domain.DirectionOutbound,
		SenderType: sender,
		Content:    text,
		Metadata:   meta,
	}); err != nil {
		log.Error().Err(err).Str("thread_id", job.ThreadID).Msg("store outbound message")
	}
	return res.OK()
}

func (s *ConversationService) publish(ctx context.Context, ev notify.Event) {
	if s.Events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Str("thread_id", ev.ThreadID).Msg("publish event")
	}
}
