package application

import "time"

// ShipmentDTO represents a shipment in responses
type ShipmentDTO struct {
	ShipmentID     string     `json:"shipmentId"`
	TrackingCode   string     `json:"trackingCode"`
	OrderID        string     `json:"orderId,omitempty"`
	PartnerID      string     `json:"partnerId"`
	Supplier       string     `json:"supplier,omitempty"`
	Distributor    string     `json:"distributor,omitempty"`
	Route          RouteDTO   `json:"route"`
	Items          []ItemDTO  `json:"items"`
	TotalQuantity  int        `json:"totalQuantity"`
	ShippingCost   float64    `json:"shippingCost"`
	Status         string     `json:"status"`
	StatusCategory string     `json:"statusCategory"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// RouteDTO represents a shipment route
type RouteDTO struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// ItemDTO represents a shipment line item
type ItemDTO struct {
	ItemID   string `json:"itemId,omitempty"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// LaneDTO represents a priced lane in responses
type LaneDTO struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	BasePrice   float64   `json:"basePrice"`
	ETADays     int       `json:"etaDays"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// QuoteDTO represents a priced lane quote
type QuoteDTO struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	WeightKg    int     `json:"weightKg"`
	BasePrice   float64 `json:"basePrice"`
	TotalPrice  float64 `json:"totalPrice"`
	ETADays     int     `json:"etaDays"`
}

// SubscriptionDTO represents a webhook subscription in responses.
// Secret is only populated on registration so callers can store it.
type SubscriptionDTO struct {
	ID        string    `json:"id"`
	TargetURL string    `json:"targetUrl"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnsubscribeDTO reports the outcome of a logical delete. Matched is 0
// when the subscriber was already inactive or no active record matched.
type UnsubscribeDTO struct {
	Matched    int              `json:"matched"`
	Subscriber *SubscriptionDTO `json:"subscriber,omitempty"`
}

// DeadLetterDTO represents an exhausted webhook delivery in responses
type DeadLetterDTO struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	TargetURL    string    `json:"targetUrl"`
	EventID      string    `json:"eventId"`
	EventType    string    `json:"eventType"`
	LastError    string    `json:"lastError"`
	Retryable    bool      `json:"retryable"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StatusUpdateDTO represents the result of a status transition
type StatusUpdateDTO struct {
	Shipment ShipmentDTO `json:"shipment"`
	EventID  string      `json:"eventId"`
	Notified int         `json:"notifiedSubscribers"`
	Archived bool        `json:"archived"`
}
