package domain

import "context"

// ShipmentRepository defines the interface for shipment persistence
type ShipmentRepository interface {
	Save(ctx context.Context, shipment *Shipment) error
	FindByID(ctx context.Context, shipmentID string) (*Shipment, error)
	FindByTrackingCode(ctx context.Context, trackingCode string) (*Shipment, error)
	FindByPartnerID(ctx context.Context, partnerID string, limit int64) ([]*Shipment, error)
	FindAll(ctx context.Context, limit int64) ([]*Shipment, error)
	// Archive moves a completed shipment into the history collection and
	// removes it from the active set, atomically where the store allows.
	Archive(ctx context.Context, shipment *Shipment) error
}

// SubscriberRepository defines the interface for webhook subscriber persistence
type SubscriberRepository interface {
	Save(ctx context.Context, subscriber *Subscriber) error
	FindByID(ctx context.Context, id string) (*Subscriber, error)
	// FindActiveByEvent returns only active subscribers registered for the
	// given event type. Deactivated subscribers never receive deliveries.
	FindActiveByEvent(ctx context.Context, eventType string) ([]*Subscriber, error)
	FindActiveByURL(ctx context.Context, targetURL string) (*Subscriber, error)
	// DeactivateAllByURL logically deletes every active subscriber for the
	// target URL and reports how many records matched. The legacy system
	// wrote duplicate-URL documents, so one URL can hold several.
	DeactivateAllByURL(ctx context.Context, targetURL string) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

// DeadLetterRepository defines the interface for the dead-letter sink
type DeadLetterRepository interface {
	Append(ctx context.Context, letter *DeadLetter) error
	FindRecent(ctx context.Context, limit int64) ([]*DeadLetter, error)
}

// RouteRepository defines the interface for priced lane persistence
type RouteRepository interface {
	Save(ctx context.Context, route *Route) error
	FindByLane(ctx context.Context, origin, destination string) (*Route, error)
	FindAll(ctx context.Context) ([]*Route, error)
}
