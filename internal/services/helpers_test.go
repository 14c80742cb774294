package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/orderflow-agent/internal/assistant"
	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/dispatch"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/notify"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps concurrent writers from tripping over SQLite's
	// shared-cache table locks
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- fakes -----

type sentMsg struct {
	To   string
	Text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, text string) (dispatch.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return dispatch.Receipt{Provider: "fake"}, f.err
	}
	f.sent = append(f.sent, sentMsg{To: to, Text: text})
	return dispatch.Receipt{Provider: "fake", MessageID: fmt.Sprintf("out-%d", len(f.sent)), Status: "queued"}, nil
}

func (f *fakeSender) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) ofType(typ string) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []Job
	full bool
}

func (q *fakeQueue) Enqueue(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

func (q *fakeQueue) take() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = nil
	return out
}

type fakeResponder struct {
	answer string
	err    error
	calls  int
}

func (f *fakeResponder) Answer(context.Context, assistant.Question) (string, error) {
	f.calls++
	return f.answer, f.err
}

// threadRepoFuncs adapts the repo package to ThreadRepo.
type threadRepoFuncs struct{}

func (threadRepoFuncs) GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.Thread, error) {
	return repo.GetThread(ctx, db, id)
}
func (threadRepoFuncs) CountThreads(ctx context.Context, db *gorm.DB, f repo.ThreadFilter) (int64, error) {
	return repo.CountThreads(ctx, db, f)
}
func (threadRepoFuncs) ListThreadsPage(ctx context.Context, db *gorm.DB, f repo.ThreadFilter, offset, limit int) ([]domain.Thread, error) {
	return repo.ListThreadsPage(ctx, db, f, offset, limit)
}
func (threadRepoFuncs) ResolveAttention(ctx context.Context, db *gorm.DB, id string) error {
	return repo.ResolveAttention(ctx, db, id)
}
func (threadRepoFuncs) SetDraftRequiresHuman(ctx context.Context, db *gorm.DB, threadID string, v bool) error {
	return repo.SetDraftRequiresHuman(ctx, db, threadID, v)
}
func (threadRepoFuncs) CloseThread(ctx context.Context, db *gorm.DB, id string) error {
	return repo.CloseThread(ctx, db, id)
}
func (threadRepoFuncs) CountMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	return repo.CountMessages(ctx, db, threadID)
}
func (threadRepoFuncs) ListMessagesPage(ctx context.Context, db *gorm.DB, threadID string, offset, limit int) ([]domain.ThreadMessage, error) {
	return repo.ListMessagesPage(ctx, db, threadID, offset, limit)
}

// ----- pipeline fixture -----

const (
	testReceiver = "1272"
	testCustomer = "4512345678"
)

func testFeed() MenuFeed {
	return MenuFeed{Items: []MenuItemInput{
		{ID: "p1", Name: "Margherita Pizza", Price: 89, Category: "pizza", Allergens: []string{"gluten", "laktose"}, Synonyms: []string{"margherita"}},
		{ID: "p2", Name: "Pepperoni Pizza", Price: 99, Category: "pizza"},
		{ID: "p3", Name: "Caesar Salat", Price: 79, Category: "salat", Synonyms: []string{"caesar salad"}},
		{ID: "p4", Name: "Cola", Price: 30, Category: "drikkevarer", Synonyms: []string{"coca cola"}},
	}}
}

type pipeline struct {
	db       *gorm.DB
	tenant   *domain.Tenant
	catalogs *CatalogService
	orders   *OrderService
	conv     *ConversationService
	ingest   *Ingestor
	queue    *fakeQueue
	sender   *fakeSender
	events   *fakePublisher
	parser   channel.Parser
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)

	ten, err := NewTenantService(db).Create(ctx, TenantInput{
		Name:      "Pizzeria Roma",
		Addresses: []TenantAddressInput{{Channel: domain.ChannelSMS, Address: testReceiver}},
	})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	catalogs := NewCatalogService(db, time.Minute)
	if _, err := catalogs.Replace(ctx, ten.ID, testFeed()); err != nil {
		t.Fatalf("replace menu: %v", err)
	}

	sender := &fakeSender{}
	events := &fakePublisher{}
	orders := NewOrderService(db)
	d := dispatch.NewDispatcher(nil).Register(domain.ChannelSMS, sender)
	conv := NewConversationService(db, catalogs, orders, d, events)
	queue := &fakeQueue{}

	return &pipeline{
		db:       db,
		tenant:   ten,
		catalogs: catalogs,
		orders:   orders,
		conv:     conv,
		queue:    queue,
		sender:   sender,
		events:   events,
		parser:   channel.Parser{CountryCode: "45"},
		ingest: &Ingestor{
			DB:                 db,
			Queue:              queue,
			DefaultSMSReceiver: testReceiver,
			CountryCode:        "45",
			ThreadIdleTTL:      24 * time.Hour,
		},
	}
}

// receive parses a raw SMS webhook body and ingests it.
func (p *pipeline) receive(t *testing.T, raw string) IngestResult {
	t.Helper()
	msg, err := p.parser.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	res, err := p.ingest.Ingest(context.Background(), *msg)
	if err != nil {
		t.Fatalf("ingest %s: %v", raw, err)
	}
	return res
}

// drain processes every queued job in order.
func (p *pipeline) drain(t *testing.T) {
	t.Helper()
	for _, job := range p.queue.take() {
		if err := p.conv.Process(context.Background(), job); err != nil {
			t.Fatalf("process %s: %v", job.Text, err)
		}
	}
}

// say sends one SMS from the test customer and processes it.
func (p *pipeline) say(t *testing.T, id, text string) IngestResult {
	t.Helper()
	res := p.receive(t, fmt.Sprintf(`{"msisdn":%q,"text":%q,"id":%q}`, testCustomer, text, id))
	p.drain(t)
	return res
}

func (p *pipeline) draft(t *testing.T, threadID string) *domain.Draft {
	t.Helper()
	d, err := repo.GetDraft(context.Background(), p.db, threadID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	return d
}

func (p *pipeline) thread(t *testing.T, id string) *domain.Thread {
	t.Helper()
	th, err := repo.GetThread(context.Background(), p.db, id)
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	return th
}

var errBoom = errors.New("boom")
