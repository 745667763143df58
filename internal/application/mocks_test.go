package application

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
)

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("test")
	cfg.Output = io.Discard
	return logging.New(cfg)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("test"))
}

type memoryShipments struct {
	mu       sync.Mutex
	byID     map[string]*domain.Shipment
	archived []*domain.Shipment
}

func newMemoryShipments() *memoryShipments {
	return &memoryShipments{byID: make(map[string]*domain.Shipment)}
}

func (m *memoryShipments) Save(_ context.Context, shipment *domain.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *shipment
	m.byID[shipment.ShipmentID] = &copied
	return nil
}

func (m *memoryShipments) FindByID(_ context.Context, shipmentID string) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shipment, ok := m.byID[shipmentID]
	if !ok {
		return nil, domain.ErrShipmentNotFound
	}
	copied := *shipment
	return &copied, nil
}

func (m *memoryShipments) FindByTrackingCode(_ context.Context, trackingCode string) (*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, shipment := range m.byID {
		if shipment.TrackingCode == trackingCode {
			copied := *shipment
			return &copied, nil
		}
	}
	return nil, domain.ErrShipmentNotFound
}

func (m *memoryShipments) FindByPartnerID(_ context.Context, partnerID string, limit int64) ([]*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Shipment
	for _, shipment := range m.byID {
		if shipment.PartnerID == partnerID && int64(len(out)) < limit {
			copied := *shipment
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryShipments) FindAll(_ context.Context, limit int64) ([]*domain.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Shipment
	for _, shipment := range m.byID {
		if int64(len(out)) < limit {
			copied := *shipment
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryShipments) Archive(_ context.Context, shipment *domain.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *shipment
	m.archived = append(m.archived, &copied)
	delete(m.byID, shipment.ShipmentID)
	return nil
}

type memoryRoutes struct {
	mu     sync.Mutex
	routes []*domain.Route
}

func (m *memoryRoutes) Save(_ context.Context, route *domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, route)
	return nil
}

func (m *memoryRoutes) FindByLane(_ context.Context, origin, destination string) (*domain.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, route := range m.routes {
		if strings.EqualFold(route.Origin, origin) && strings.EqualFold(route.Destination, destination) {
			return route, nil
		}
	}
	return nil, domain.ErrRouteNotFound
}

func (m *memoryRoutes) FindAll(_ context.Context) ([]*domain.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Route(nil), m.routes...), nil
}

type memorySubscribers struct {
	mu   sync.Mutex
	byID map[string]*domain.Subscriber
}

func newMemorySubscribers() *memorySubscribers {
	return &memorySubscribers{byID: make(map[string]*domain.Subscriber)}
}

func (m *memorySubscribers) Save(_ context.Context, subscriber *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *subscriber
	m.byID[subscriber.ID] = &copied
	return nil
}

func (m *memorySubscribers) FindByID(_ context.Context, id string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subscriber, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrSubscriberNotFound
	}
	copied := *subscriber
	return &copied, nil
}

func (m *memorySubscribers) FindActiveByEvent(_ context.Context, eventType string) ([]*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscriber
	for _, subscriber := range m.byID {
		if subscriber.Active && subscriber.SubscribesTo(eventType) {
			copied := *subscriber
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memorySubscribers) FindActiveByURL(_ context.Context, targetURL string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subscriber := range m.byID {
		if subscriber.Active && subscriber.TargetURL == targetURL {
			copied := *subscriber
			return &copied, nil
		}
	}
	return nil, domain.ErrSubscriberNotFound
}

func (m *memorySubscribers) DeactivateAllByURL(_ context.Context, targetURL string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched int64
	for _, subscriber := range m.byID {
		if subscriber.Active && subscriber.TargetURL == targetURL {
			if err := subscriber.Deactivate(); err != nil {
				return matched, err
			}
			matched++
		}
	}
	return matched, nil
}

func (m *memorySubscribers) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, subscriber := range m.byID {
		if subscriber.Active {
			count++
		}
	}
	return count, nil
}

type memoryDeadLetters struct {
	mu      sync.Mutex
	letters []*domain.DeadLetter
}

func (m *memoryDeadLetters) Append(_ context.Context, letter *domain.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, letter)
	return nil
}

func (m *memoryDeadLetters) FindRecent(_ context.Context, limit int64) ([]*domain.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*domain.DeadLetter(nil), m.letters...)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
