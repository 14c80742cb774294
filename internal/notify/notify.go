// Package notify publishes escalation events so staff tooling (an inbox,
// a pager bridge) learns about threads that need a human without polling.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventEscalated = "thread.escalated"
	EventResolved  = "thread.resolved"
	EventOrder     = "order.created"
)

// Event is the published payload.
type Event struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	ThreadID   string    `json:"thread_id"`
	Channel    string    `json:"channel,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence"`
	OrderID    string    `json:"order_id,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher fans events out. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Redis publishes JSON events on a pub/sub channel.
type Redis struct {
	rdb     *goredis.Client
	channel string
}

// NewRedis connects and pings; the caller owns Close.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("missing redis addr")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = "orderflow.escalations"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, channel: ch}, nil
}

// Publish marshals ev and publishes it.
func (r *Redis) Publish(ctx context.Context, ev Event) error {
	if r == nil || r.rdb == nil {
		return errors.New("redis publisher not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, raw).Err()
}

// Subscribe delivers events on the channel to fn until ctx ends.
func (r *Redis) Subscribe(ctx context.Context, fn func(Event)) error {
	if r == nil || r.rdb == nil {
		return errors.New("redis publisher not initialized")
	}
	if fn == nil {
		return errors.New("callback required")
	}
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				fn(ev)
			}
		}
	}()
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
