package services

import (
	"context"
	"sync"
)

// MockFeedService is an in-process implementation of FeedInterface for
// testing. Published events are recorded and fanned out synchronously to
// live subscribers.
type MockFeedService struct {
	published   []OrderEvent
	subscribers map[int]func(OrderEvent)
	nextID      int
	mu          sync.Mutex
}

// NewMockFeedService creates a new mock feed service
func NewMockFeedService() *MockFeedService {
	return &MockFeedService{
		subscribers: make(map[int]func(OrderEvent)),
	}
}

// SetAsMockForTesting sets this mock as the global feed service instance for testing
func (m *MockFeedService) SetAsMockForTesting() {
	SetFeedService(m)
}

// PublishOrderEvent records the event and delivers it to subscribers
func (m *MockFeedService) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	callbacks := make([]func(OrderEvent), 0, len(m.subscribers))
	for _, cb := range m.subscribers {
		callbacks = append(callbacks, cb)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(event)
	}
	return nil
}

// mockSubscription removes the callback from the mock feed on Unsubscribe
type mockSubscription struct {
	feed *MockFeedService
	id   int
	once sync.Once
}

func (s *mockSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subscribers, s.id)
		s.feed.mu.Unlock()
	})
}

// SubscribeToOrders registers a synchronous callback
func (m *MockFeedService) SubscribeToOrders(ctx context.Context, callback func(OrderEvent)) (Subscription, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = callback
	m.mu.Unlock()

	return &mockSubscription{feed: m, id: id}, nil
}

// SubscriberCount reports how many subscriptions are currently live
func (m *MockFeedService) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// PublishedEvents returns a copy of all events published so far
func (m *MockFeedService) PublishedEvents() []OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]OrderEvent, len(m.published))
	copy(events, m.published)
	return events
}
