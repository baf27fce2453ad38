package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/girish1208dev/print-service/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// InsertFeed carries newly inserted order records to live subscribers.
// Delivery is at-least-once per subscriber with no ordering guarantee against ListAll.
type InsertFeed interface {
	Publish(ctx context.Context, record models.OrderRecord) error

	// Subscribe returns a channel of inserted records that is closed when ctx is done
	Subscribe(ctx context.Context) (<-chan models.OrderRecord, error)

	Close() error
}

// MemoryFeed is an in-process InsertFeed. A slow subscriber never blocks publishers.
type MemoryFeed struct {
	mu          sync.Mutex
	subscribers map[*feedSubscriber]struct{}
	closed      bool
}

type feedSubscriber struct {
	mu     sync.Mutex
	queue  []models.OrderRecord
	wake   chan struct{}
	closed chan struct{}
}

// NewMemoryFeed creates an empty in-process feed
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subscribers: make(map[*feedSubscriber]struct{})}
}

// Publish queues the record for every current subscriber
func (f *MemoryFeed) Publish(_ context.Context, record models.OrderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("insert feed is closed")
	}
	for sub := range f.subscribers {
		sub.push(record)
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done
func (f *MemoryFeed) Subscribe(ctx context.Context) (<-chan models.OrderRecord, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("insert feed is closed")
	}
	sub := &feedSubscriber{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()

	out := make(chan models.OrderRecord)
	go func() {
		defer close(out)
		defer f.remove(sub)
		for {
			for _, record := range sub.drain() {
				select {
				case out <- record:
				case <-ctx.Done():
					return
				case <-sub.closed:
					return
				}
			}
			select {
			case <-sub.wake:
			case <-ctx.Done():
				return
			case <-sub.closed:
				return
			}
		}
	}()

	return out, nil
}

func (f *MemoryFeed) remove(sub *feedSubscriber) {
	f.mu.Lock()
	delete(f.subscribers, sub)
	f.mu.Unlock()
}

// Close ends every subscription
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for sub := range f.subscribers {
		close(sub.closed)
	}
	return nil
}

func (s *feedSubscriber) push(record models.OrderRecord) {
	s.mu.Lock()
	s.queue = append(s.queue, record)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *feedSubscriber) drain() []models.OrderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.queue
	s.queue = nil
	return queued
}

// RedisFeed fans inserted records out over a Redis pub/sub channel so that
// every API instance can stream them to its admin clients
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed connects to Redis and verifies the connection
func NewRedisFeed(ctx context.Context, addr, channel string) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisFeed{client: client, channel: channel}, nil
}

// Publish sends the record as JSON on the insert channel
func (f *RedisFeed) Publish(ctx context.Context, record models.OrderRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode order record: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish order record: %w", err)
	}
	return nil
}

// Subscribe relays decoded records from the insert channel until ctx is done
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan models.OrderRecord, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	// Receive blocks until the subscription is confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}

	out := make(chan models.OrderRecord)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var record models.OrderRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					log.Warn().Err(err).Str("channel", f.channel).Msg("Dropping malformed insert event")
					continue
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the Redis client
func (f *RedisFeed) Close() error {
	return f.client.Close()
}
