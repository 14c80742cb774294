package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

func TestSaveDraft_InsertThenVersionedUpdate(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	th := seedThread(t, db)

	if _, err := GetDraft(ctx, db, th.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound before first save, got %v", err)
	}

	d := &domain.Draft{ThreadID: th.ID, Channel: domain.ChannelSMS, State: domain.StateCollectingItems, Language: "da"}
	d.Items = []domain.DraftItem{{MenuItemID: "p1", Name: "Margherita Pizza", Quantity: 1, UnitPrice: 89}}
	if err := SaveDraft(ctx, db, d); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if d.Version != 1 {
		t.Fatalf("version after insert = %d; want 1", d.Version)
	}

	loaded, err := GetDraft(ctx, db, th.ID)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].Name != "Margherita Pizza" || loaded.State != domain.StateCollectingItems {
		t.Fatalf("draft not round-tripped: %+v", loaded)
	}

	loaded.Fulfillment = domain.FulfillmentPickup
	loaded.State = domain.StateConfirming
	if err := SaveDraft(ctx, db, loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	if loaded.Version != 2 {
		t.Fatalf("version after update = %d; want 2", loaded.Version)
	}

	// The first copy is now stale.
	d.Notes = "extra cheese"
	if err := SaveDraft(ctx, db, d); !errors.Is(err, ErrStaleDraft) {
		t.Fatalf("want ErrStaleDraft, got %v", err)
	}

	// A second "new" draft for the same thread loses too.
	fresh := &domain.Draft{ThreadID: th.ID, Channel: domain.ChannelSMS, State: domain.StateGreeting}
	if err := SaveDraft(ctx, db, fresh); !errors.Is(err, ErrStaleDraft) {
		t.Fatalf("want ErrStaleDraft for concurrent insert, got %v", err)
	}
}

func TestSetDraftRequiresHuman(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	th := seedThread(t, db)

	// Missing draft is fine.
	if err := SetDraftRequiresHuman(ctx, db, th.ID, false); err != nil {
		t.Fatalf("missing draft: %v", err)
	}
	d := &domain.Draft{
		ThreadID: th.ID, Channel: domain.ChannelSMS, State: domain.StateCollectingItems, RequiresHuman: true,
		FrustrationCount: 2, LowConfidenceTurns: 2, RetryCount: 1,
		Items: []domain.DraftItem{{MenuItemID: "p1", Name: "Margherita Pizza", Quantity: 1, UnitPrice: 89}},
	}
	if err := SaveDraft(ctx, db, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := SetDraftRequiresHuman(ctx, db, th.ID, true); err != nil {
		t.Fatalf("raise: %v", err)
	}
	got, _ := GetDraft(ctx, db, th.ID)
	if !got.RequiresHuman || got.FrustrationCount != 2 || got.Version != 2 {
		t.Fatalf("raising must keep the counters: %+v", got)
	}

	if err := SetDraftRequiresHuman(ctx, db, th.ID, false); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = GetDraft(ctx, db, th.ID)
	if got.RequiresHuman || got.Version != 3 {
		t.Fatalf("flag not cleared or version not bumped: %+v", got)
	}
	if got.FrustrationCount != 0 || got.LowConfidenceTurns != 0 || got.RetryCount != 0 {
		t.Fatalf("clearing must reset escalation counters: %+v", got)
	}
	if len(got.Items) != 1 || got.State != domain.StateCollectingItems {
		t.Fatalf("clearing must keep the order: %+v", got)
	}
}
