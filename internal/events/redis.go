package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis channel cart events are published on.
const DefaultChannel = "aneria:cart:events"

// RedisBus fans events out through Redis pub/sub so coordinators in
// different replicas converge the same way browser tabs do. Delivery inside
// the process is delegated to a LocalBus fed by the subscription loop.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	local   *LocalBus

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBus builds a bus on client. An empty channel uses DefaultChannel.
func NewRedisBus(client redis.UniversalClient, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, local: NewLocalBus()}
}

// Start subscribes to the channel and begins dispatching received events to
// local subscribers. It returns once the subscription is confirmed.
func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}

	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.pubsub = ps
	b.done = make(chan struct{})

	go func(ch <-chan *redis.Message, done chan struct{}) {
		defer close(done)
		for msg := range ch {
			b.dispatch(msg.Payload)
		}
	}(ps.Channel(), b.done)
	return nil
}

// Publish sends a storage event to every replica subscribed to the channel,
// this one included. Local events stay in the process: they mean "this
// context's write has settled" and only its own storage can answer that.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.Kind == KindLocal {
		return b.local.Publish(ctx, ev)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe registers fn for events on key received from Redis.
func (b *RedisBus) Subscribe(key string, fn Handler) func() {
	return b.local.Subscribe(key, fn)
}

// Close stops the subscription loop.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

func (b *RedisBus) dispatch(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Warn().Err(err).Str("channel", b.channel).Msg("dropping malformed cart event")
		return
	}
	if ev.Key == "" || ev.Kind == KindLocal {
		return
	}
	_ = b.local.Publish(context.Background(), ev)
}
