package events

import (
	"context"
	"sync"
	"time"

	"offer-recommendation-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventOfferCreated is emitted when an offer is created or updated
	EventOfferCreated EventType = "offer.created"
	// EventPurchasesIngested is emitted when purchases are ingested
	EventPurchasesIngested EventType = "purchases.ingested"
	// EventRecommendationServed is emitted when a feed is served to a user
	EventRecommendationServed EventType = "recommendation.served"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// OfferCreatedData contains data for offer created events.
type OfferCreatedData struct {
	Offer models.ActiveOffer
}

// PurchasesIngestedData contains data for purchase ingestion events.
type PurchasesIngestedData struct {
	UserIDs []string
	Count   int
}

// RecommendationServedData contains data for served recommendation events.
type RecommendationServedData struct {
	UserID    string
	StoreID   string
	Persona   string
	OfferIDs  []int64
	FromCache bool
	ServedAt  time.Time
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so publishing never blocks a request.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				_ = err
			}
		}(handler)
	}
}

// PublishOfferCreated publishes an offer created event.
func (m *Manager) PublishOfferCreated(ctx context.Context, offer models.ActiveOffer) {
	m.Publish(ctx, EventOfferCreated, OfferCreatedData{Offer: offer})
}

// PublishPurchasesIngested publishes a purchase ingestion event.
func (m *Manager) PublishPurchasesIngested(ctx context.Context, userIDs []string, count int) {
	m.Publish(ctx, EventPurchasesIngested, PurchasesIngestedData{
		UserIDs: userIDs,
		Count:   count,
	})
}

// PublishRecommendationServed publishes a served recommendation event.
func (m *Manager) PublishRecommendationServed(ctx context.Context, resp models.RecommendationResponse, fromCache bool) {
	offerIDs := make([]int64, 0, len(resp.Offers))
	for _, offer := range resp.Offers {
		offerIDs = append(offerIDs, offer.ID)
	}

	m.Publish(ctx, EventRecommendationServed, RecommendationServedData{
		UserID:    resp.UserID,
		StoreID:   resp.StoreID,
		Persona:   resp.Persona,
		OfferIDs:  offerIDs,
		FromCache: fromCache,
		ServedAt:  time.Now(),
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
