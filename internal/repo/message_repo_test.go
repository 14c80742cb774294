package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

func TestMessages_AppendListAndStats(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	th := seedThread(t, db)

	if n, last, err := MessagesStats(ctx, db, th.ID); err != nil || n != 0 || last != nil {
		t.Fatalf("empty stats = %d, %v, %v", n, last, err)
	}

	in, err := AppendMessage(ctx, db, th.ID, NewMessage{
		Direction: domain.DirectionInbound, SenderType: domain.SenderCustomer,
		Content: "hej", ExternalMessageID: "m1",
	})
	if err != nil {
		t.Fatalf("append inbound: %v", err)
	}
	if in.ExternalMessageID == nil || *in.ExternalMessageID != "m1" {
		t.Fatalf("external id not stored: %+v", in)
	}
	time.Sleep(2 * time.Millisecond)
	out, err := AppendMessage(ctx, db, th.ID, NewMessage{
		Direction: domain.DirectionOutbound, SenderType: domain.SenderAI,
		Content: "Hej! Hvad vil du bestille?", Metadata: map[string]any{"intent": "greeting"},
	})
	if err != nil {
		t.Fatalf("append outbound: %v", err)
	}
	if out.ExternalMessageID != nil {
		t.Fatalf("outbound should have no external id")
	}

	all, err := ListMessages(ctx, db, th.ID, 0)
	if err != nil || len(all) != 2 || all[0].ID != in.ID || all[1].ID != out.ID {
		t.Fatalf("ListMessages order wrong: %+v, %v", all, err)
	}
	recent, err := RecentMessages(ctx, db, th.ID, 1)
	if err != nil || len(recent) != 1 || recent[0].ID != out.ID {
		t.Fatalf("RecentMessages = %+v, %v", recent, err)
	}
	page, err := ListMessagesPage(ctx, db, th.ID, 1, 10)
	if err != nil || len(page) != 1 || page[0].ID != out.ID {
		t.Fatalf("ListMessagesPage = %+v, %v", page, err)
	}
	if n, err := CountMessages(ctx, db, th.ID); err != nil || n != 2 {
		t.Fatalf("CountMessages = %d, %v", n, err)
	}
	n, last, err := MessagesStats(ctx, db, th.ID)
	if err != nil || n != 2 || last == nil {
		t.Fatalf("MessagesStats = %d, %v, %v", n, last, err)
	}
}

func TestThreadsStats(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	th := seedThread(t, db)

	n, ts, err := ThreadsStats(ctx, db, ThreadFilter{AttentionOnly: true})
	if err != nil || n != 0 || ts != nil {
		t.Fatalf("no flagged threads: %d %v %v", n, ts, err)
	}
	_ = FlagAttention(ctx, db, th.ID, 0)
	n, ts, err = ThreadsStats(ctx, db, ThreadFilter{AttentionOnly: true, TenantID: th.TenantID})
	if err != nil || n != 1 || ts == nil {
		t.Fatalf("flagged thread stats: %d %v %v", n, ts, err)
	}
}

func TestCountMessages_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	if _, err := CountMessages(context.Background(), db, "x"); err == nil {
		t.Fatalf("expected error due to missing table")
	}
}
