package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/models"
)

// OrdersChannel is the Redis pub/sub channel carrying order change events.
// It is unfiltered: events for all customers travel on one channel and
// consumers re-fetch their own scoped data.
const OrdersChannel = "orders:changes"

// Order change event types
const (
	EventOrderInserted = "INSERT"
	EventOrderUpdated  = "UPDATE"
	EventOrderDeleted  = "DELETE"
)

// OrderEvent describes a single mutation of the orders table. Consumers must
// treat it as a hint to re-fetch rather than as an authoritative delta.
type OrderEvent struct {
	Type       string         `json:"type"` // INSERT, UPDATE or DELETE
	Order      models.Order   `json:"order"`
	OldStatus  *models.Status `json:"old_status,omitempty"` // set on status updates
	OccurredAt time.Time      `json:"occurred_at"`
}

// Subscription is a handle on a live order feed subscription
type Subscription interface {
	Unsubscribe()
}

// FeedInterface defines the interface for the order change feed
type FeedInterface interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	SubscribeToOrders(ctx context.Context, callback func(OrderEvent)) (Subscription, error)
}

// FeedService publishes and subscribes to order change events over Redis
// pub/sub
type FeedService struct {
	rdb *redis.Client
}

var feedServiceInstance FeedInterface

// InitFeedService initializes the feed service against the configured Redis
func InitFeedService() FeedInterface {
	cfg := config.GetConfig()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	feedServiceInstance = &FeedService{rdb: rdb}
	return feedServiceInstance
}

// GetFeedService returns the initialized feed service instance
func GetFeedService() FeedInterface {
	return feedServiceInstance
}

// SetFeedService sets the feed service instance (primarily for testing)
func SetFeedService(service FeedInterface) {
	feedServiceInstance = service
}

// PublishOrderEvent publishes an order change event to the feed channel
func (f *FeedService) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	if err := f.rdb.Publish(ctx, OrdersChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	return nil
}

// redisSubscription wraps a Redis pub/sub subscription
type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe closes the subscription and waits for the delivery goroutine
// to drain
func (s *redisSubscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
		<-s.done
	})
}

// SubscribeToOrders subscribes to order change events and invokes callback
// once per event, in arrival order, on a dedicated goroutine. The returned
// handle's Unsubscribe releases the subscription. Events that fail to decode
// are logged and skipped.
func (f *FeedService) SubscribeToOrders(ctx context.Context, callback func(OrderEvent)) (Subscription, error) {
	pubsub := f.rdb.Subscribe(ctx, OrdersChannel)

	// Confirm the subscription is established before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to order feed: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			var event OrderEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Dropping undecodable order event: %v", err)
				continue
			}
			callback(event)
		}
	}()

	return sub, nil
}
