package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "collection changed" signals between writers and
// subscribers. It carries no payload; subscribers re-read the collection.
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	Listen(ctx context.Context, collection string, fn func()) (func(), error)
}

// LocalNotifier fans out within a single process.
type LocalNotifier struct {
	mu        sync.Mutex
	next      int
	listeners map[string]map[int]func()
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]map[int]func())}
}

func (n *LocalNotifier) Publish(_ context.Context, collection string) error {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.listeners[collection]))
	for _, fn := range n.listeners[collection] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (n *LocalNotifier) Listen(_ context.Context, collection string, fn func()) (func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	token := n.next
	if n.listeners[collection] == nil {
		n.listeners[collection] = make(map[int]func())
	}
	n.listeners[collection][token] = fn
	return func() {
		n.mu.Lock()
		delete(n.listeners[collection], token)
		n.mu.Unlock()
	}, nil
}

// RedisNotifier publishes change signals on Redis pub/sub so that every API
// instance sharing the database refreshes its mirror.
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisNotifierWithClient(client), nil
}

func NewRedisNotifierWithClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		prefix: "tts:changed:",
	}
}

func (n *RedisNotifier) channel(collection string) string {
	return n.prefix + collection
}

func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	if err := n.client.Publish(ctx, n.channel(collection), collection).Err(); err != nil {
		return fmt.Errorf("publish %s change: %w", collection, err)
	}
	return nil
}

// Listen returns once the subscription is confirmed by the server, so a
// Publish issued afterwards is never missed.
func (n *RedisNotifier) Listen(ctx context.Context, collection string, fn func()) (func(), error) {
	pubsub := n.client.Subscribe(ctx, n.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	messages := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}, nil
}

func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
