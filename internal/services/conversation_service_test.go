package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/orderflow-agent/internal/conversation"
	"github.com/tbourn/orderflow-agent/internal/dispatch"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/notify"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

func TestPipeline_OrderClarifyThenItem(t *testing.T) {
	p := newPipeline(t)

	r1 := p.say(t, "m1", "hej kan jeg bestille en pizza")
	if r1.Status != StatusSuccess || r1.ThreadID == "" {
		t.Fatalf("m1 result: %+v", r1)
	}
	d := p.draft(t, r1.ThreadID)
	if d.State != domain.StateCollectingItems || len(d.Items) != 0 {
		t.Fatalf("after m1: state=%s items=%+v", d.State, d.Items)
	}

	r2 := p.receive(t, `{"msisdn":"4512345678","text":"margherita","id":"m2"}`)
	if r2.ThreadID != r1.ThreadID {
		t.Fatalf("m2 should reuse the open thread: %s vs %s", r2.ThreadID, r1.ThreadID)
	}
	p.drain(t)

	d = p.draft(t, r1.ThreadID)
	if len(d.Items) != 1 || d.Items[0].Name != "Margherita Pizza" || d.Items[0].Quantity != 1 {
		t.Fatalf("draft items = %+v", d.Items)
	}
	if d.Phone != "+4512345678" {
		t.Fatalf("SMS drafts know the phone: %q", d.Phone)
	}

	sent := p.sender.messages()
	if len(sent) != 2 || sent[0].To != "+4512345678" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].Text, "Pepperoni Pizza") {
		t.Fatalf("first reply should ask which pizza: %q", sent[0].Text)
	}

	msgs, err := repo.ListMessages(context.Background(), p.db, r1.ThreadID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("want 2 inbound + 2 outbound, got %d", len(msgs))
	}
	var out domain.ThreadMessage
	for _, m := range msgs {
		if m.Direction == domain.DirectionOutbound {
			out = m
			break
		}
	}
	if out.Direction != domain.DirectionOutbound || out.SenderType != domain.SenderAI {
		t.Fatalf("outbound row = %+v", out)
	}
	if out.Metadata["intent"] != "order_food" || out.Metadata["provider"] != "fake" {
		t.Fatalf("outbound metadata = %+v", out.Metadata)
	}

	th := p.thread(t, r1.ThreadID)
	if th.RequiresAttention || th.AIConfidence <= 0 {
		t.Fatalf("thread = %+v", th)
	}
}

func TestPipeline_DoubleConfirmCreatesOneOrder(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	res := p.say(t, "a1", "Jeg vil gerne bestille 2 margherita")
	p.say(t, "a2", "det var det")
	p.say(t, "a3", "afhentning")

	d := p.draft(t, res.ThreadID)
	if d.State != domain.StateConfirming {
		t.Fatalf("state = %s", d.State)
	}
	p.say(t, "a4", "ja")
	p.say(t, "a5", "ja")

	n, err := repo.CountOrders(ctx, p.db, res.ThreadID)
	if err != nil || n != 1 {
		t.Fatalf("orders = %d err=%v", n, err)
	}
	d = p.draft(t, res.ThreadID)
	if d.State != domain.StateCompleted || !strings.HasPrefix(d.OrderNumber, "ORD-") {
		t.Fatalf("draft = %+v", d)
	}
	o, err := repo.FindOrderBySummary(ctx, p.db, res.ThreadID, d.SummaryHash)
	if err != nil {
		t.Fatalf("FindOrderBySummary: %v", err)
	}
	if o.Total != 178 || o.FulfillmentType != domain.FulfillmentPickup || len(o.Items) != 1 || o.Items[0].Quantity != 2 {
		t.Fatalf("order = %+v", o)
	}

	sent := p.sender.messages()
	placed, dup := sent[len(sent)-2].Text, sent[len(sent)-1].Text
	if !strings.Contains(placed, o.OrderNumber) || !strings.Contains(dup, o.OrderNumber) {
		t.Fatalf("replies should carry the order number: %q / %q", placed, dup)
	}
	if placed == dup {
		t.Fatalf("second confirm should say the order already exists")
	}
	if got := p.events.ofType(notify.EventOrder); len(got) != 1 || got[0].OrderID != o.ID {
		t.Fatalf("order events = %+v", got)
	}
}

func TestPipeline_ThreeComplaintsHandOff(t *testing.T) {
	p := newPipeline(t)
	res := p.say(t, "c1", "Jeg vil klage over min mad")
	p.say(t, "c2", "Jeg vil klage igen")
	p.say(t, "c3", "2 cola tak")

	th := p.thread(t, res.ThreadID)
	if !th.RequiresAttention {
		t.Fatalf("thread should require attention")
	}
	if d := p.draft(t, res.ThreadID); !d.RequiresHuman || len(d.Items) != 0 {
		t.Fatalf("draft = %+v", d)
	}
	sent := p.sender.messages()
	if len(sent) != 1 || sent[0].Text != conversation.Render("da", conversation.MsgEscalating, nil) {
		t.Fatalf("only the handoff message may be sent: %+v", sent)
	}
	evs := p.events.ofType(notify.EventEscalated)
	if len(evs) != 1 || evs[0].Reason != "complaint" || evs[0].TenantID != p.tenant.ID {
		t.Fatalf("escalation events = %+v", evs)
	}

	// inbound messages are still stored for the human
	n, _ := repo.CountMessages(context.Background(), p.db, res.ThreadID)
	if n != 4 {
		t.Fatalf("messages = %d", n)
	}
}

func TestPipeline_ResolveResumesAgent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	res := p.say(t, "h1", "Kan jeg tale med en medarbejder")
	if !p.thread(t, res.ThreadID).RequiresAttention {
		t.Fatalf("human request should flag the thread")
	}

	svc := NewThreadService(p.db, threadRepoFuncs{}, p.events)
	th, err := svc.Resolve(ctx, res.ThreadID)
	if err != nil || th.RequiresAttention {
		t.Fatalf("Resolve: %+v %v", th, err)
	}
	if got := p.events.ofType(notify.EventResolved); len(got) != 1 {
		t.Fatalf("resolved events = %+v", got)
	}

	p.say(t, "h2", "2 cola")
	d := p.draft(t, res.ThreadID)
	if d.RequiresHuman || len(d.Items) != 1 || d.Items[0].Quantity != 2 {
		t.Fatalf("agent should answer again: %+v", d)
	}
}

func TestPipeline_ResolveResetsEscalationCounters(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason string
	}{
		{"frustration", "hjælp", "frustration"},
		{"low confidence", "hmm", "low_confidence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(t)
			ctx := context.Background()

			res := p.say(t, "e1", tc.text)
			p.say(t, "e2", tc.text)
			evs := p.events.ofType(notify.EventEscalated)
			if len(evs) != 1 || evs[0].Reason != tc.reason {
				t.Fatalf("escalation events = %+v", evs)
			}

			svc := NewThreadService(p.db, threadRepoFuncs{}, p.events)
			if _, err := svc.Resolve(ctx, res.ThreadID); err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			d := p.draft(t, res.ThreadID)
			if d.FrustrationCount != 0 || d.LowConfidenceTurns != 0 || d.RetryCount != 0 {
				t.Fatalf("counters after resolve: %+v", d)
			}

			p.say(t, "e3", tc.text)
			if evs := p.events.ofType(notify.EventEscalated); len(evs) != 1 {
				t.Fatalf("one message after resolve must not escalate again: %+v", evs)
			}
			if d := p.draft(t, res.ThreadID); d.RequiresHuman {
				t.Fatalf("draft handed back to staff again: %+v", d)
			}
			sent := p.sender.messages()
			if last := sent[len(sent)-1].Text; last == conversation.Render("da", conversation.MsgEscalating, nil) {
				t.Fatalf("agent should answer after resolve, got handoff text")
			}
		})
	}
}

func TestPipeline_AllergyAnswersFromStoredMenu(t *testing.T) {
	p := newPipeline(t)
	res := p.say(t, "a1", "2 margherita")
	p.say(t, "a2", "er der gluten i den?")

	msgs := p.sender.messages()
	last := msgs[len(msgs)-1].Text
	want := conversation.Render("da", conversation.MsgAllergyWarning, map[string]string{
		"item": "Margherita Pizza", "allergens": "gluten og laktose",
	})
	if !strings.Contains(last, want) {
		t.Fatalf("reply=%q want %q", last, want)
	}
	if d := p.draft(t, res.ThreadID); len(d.Items) != 1 || d.Items[0].Quantity != 2 || d.RequiresHuman {
		t.Fatalf("draft=%+v", d)
	}

	p.say(t, "a3", "min datter har en alvorlig nøddeallergi")
	evs := p.events.ofType(notify.EventEscalated)
	if len(evs) != 1 || evs[0].Reason != string(conversation.ReasonAllergy) {
		t.Fatalf("escalation events = %+v", evs)
	}
	if !p.thread(t, res.ThreadID).RequiresAttention {
		t.Fatalf("thread not flagged for staff")
	}
}

func TestPipeline_ConcurrentSameThreadIsSerialized(t *testing.T) {
	p := newPipeline(t)
	first := p.receive(t, `{"msisdn":"4512345678","text":"2 cola","id":"k0"}`)
	for i := 1; i < 6; i++ {
		p.receive(t, `{"msisdn":"4512345678","text":"2 cola","id":"k`+string(rune('0'+i))+`"}`)
	}
	jobs := p.queue.take()
	if len(jobs) != 6 {
		t.Fatalf("jobs = %d", len(jobs))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(jobs))
	for _, job := range jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			errs <- p.conv.Process(context.Background(), j)
		}(job)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	d := p.draft(t, first.ThreadID)
	if len(d.Items) != 1 || d.Items[0].Quantity != 12 {
		t.Fatalf("every job must see the previous draft: %+v", d.Items)
	}
	if d.Version != 6 {
		t.Fatalf("version = %d", d.Version)
	}
	if p.thread(t, first.ThreadID).RequiresAttention {
		t.Fatalf("no job may fail")
	}
}

func TestProcess_DispatchFailureFlagsThread(t *testing.T) {
	p := newPipeline(t)
	p.sender.err = errBoom

	res := p.say(t, "d1", "hej")
	th := p.thread(t, res.ThreadID)
	if !th.RequiresAttention || th.AIConfidence != 0 {
		t.Fatalf("thread = %+v", th)
	}
	msgs, _ := repo.ListMessages(context.Background(), p.db, res.ThreadID, 0)
	var last domain.ThreadMessage
	for _, m := range msgs {
		if m.Direction == domain.DirectionOutbound {
			last = m
		}
	}
	if last.Metadata["delivery_error"] == nil {
		t.Fatalf("failed reply should be stored with its error: %+v", last)
	}
}

func TestProcess_FailureSendsTechnicalError(t *testing.T) {
	p := newPipeline(t)
	res := p.receive(t, `{"msisdn":"4512345678","text":"hej","id":"f1"}`)
	jobs := p.queue.take()
	job := jobs[0]
	job.TenantID = "no-such-tenant"

	if err := p.conv.Process(context.Background(), job); err == nil {
		t.Fatalf("expected error")
	}
	th := p.thread(t, res.ThreadID)
	if !th.RequiresAttention || th.AIConfidence != 0 {
		t.Fatalf("thread = %+v", th)
	}
	d := p.draft(t, res.ThreadID)
	if d.RetryCount != 1 || !d.RequiresHuman {
		t.Fatalf("draft = %+v", d)
	}
	sent := p.sender.messages()
	if len(sent) != 1 || sent[0].Text != conversation.Render("da", conversation.MsgTechnicalError, nil) {
		t.Fatalf("sent = %+v", sent)
	}
	if evs := p.events.ofType(notify.EventEscalated); len(evs) != 1 || evs[0].Reason != "technical" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestProcess_InfoQuestionUsesAssistant(t *testing.T) {
	p := newPipeline(t)
	ai := &fakeResponder{answer: "Vi har åbent 11-22 alle dage."}
	p.conv.Assistant = ai

	p.say(t, "i1", "Hvornår har I åbent?")
	sent := p.sender.messages()
	if ai.calls != 1 || len(sent) != 1 || sent[0].Text != ai.answer {
		t.Fatalf("calls=%d sent=%+v", ai.calls, sent)
	}

	ai.err = errBoom
	p.say(t, "i2", "Hvad er jeres åbningstider?")
	sent = p.sender.messages()
	if len(sent) != 2 || sent[1].Text == "" || sent[1].Text == ai.answer {
		t.Fatalf("a failed answer falls back to the template: %+v", sent)
	}
}

func TestProcess_UnknownChannelUsesFallback(t *testing.T) {
	p := newPipeline(t)
	fb := &fakeSender{}
	p.conv.Dispatcher = dispatch.NewDispatcher(fb)

	p.say(t, "u1", "hej")
	if len(fb.messages()) != 1 || len(p.sender.messages()) != 0 {
		t.Fatalf("fallback should take unregistered channels")
	}
}
