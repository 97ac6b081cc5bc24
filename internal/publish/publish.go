// Package publish broadcasts engine events over Redis pub/sub so external
// consumers (dashboards, recorders) can follow the session without
// touching the engine. Publishing runs off the hot path: the engine sends
// into a buffered channel and drops on overflow rather than blocking the
// tick loop.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// EventKind selects the pub/sub channel an event goes to.
type EventKind string

const (
	EventTick     EventKind = "tick"
	EventTrade    EventKind = "trade"
	EventAdvisory EventKind = "advisory"
)

// Event is one engine occurrence with its JSON payload.
type Event struct {
	Kind    EventKind
	Asset   string
	Payload interface{}
}

// Publisher writes events to Redis channels named pub:<kind>:<asset>.
type Publisher struct {
	client *goredis.Client
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("publish: redis ping: %w", err)
	}

	log.Printf("[publish] connected to redis at %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// Run drains eventCh and publishes each event. Blocks until ctx is
// cancelled or the channel is closed.
func (p *Publisher) Run(ctx context.Context, eventCh <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			p.publish(ctx, ev)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Printf("[publish] marshal %s event: %v", ev.Kind, err)
		return
	}
	channel := "pub:" + string(ev.Kind) + ":" + ev.Asset
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[publish] publish to %s: %v", channel, err)
	}
}

// Ping checks the Redis connection (used by the liveness probe).
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
