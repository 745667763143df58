package application

// CreateShipmentCommand represents the command to create a new shipment
type CreateShipmentCommand struct {
	OrderID     string
	PartnerID   string
	Supplier    string
	Distributor string
	Origin      string
	Destination string
	Items       []ItemInput
	WeightKg    int
}

// ItemInput is one requested line item
type ItemInput struct {
	ItemID   string
	Name     string
	Quantity int
}

// CreateRouteCommand represents the command to price a lane for shipping
type CreateRouteCommand struct {
	Origin      string
	Destination string
	BasePrice   float64
	ETADays     int
}

// UpdateStatusCommand represents the command to transition a shipment's status
type UpdateStatusCommand struct {
	ShipmentID string
	Status     string
}

// QuoteCommand represents the command to price a lane
type QuoteCommand struct {
	Origin      string
	Destination string
	WeightKg    int
}

// SubscribeCommand represents the command to register a webhook subscriber
type SubscribeCommand struct {
	TargetURL string
	Events    []string
	Secret    string
}

// UnsubscribeCommand represents the command to logically delete a subscriber.
// Either the subscriber ID or its target URL identifies the subscriber.
type UnsubscribeCommand struct {
	SubscriberID string
	TargetURL    string
}

// BroadcastTestCommand represents the command to push a synthetic broadcast
type BroadcastTestCommand struct {
	PartnerID    string
	TrackingCode string
}

// GetShipmentQuery represents the query to get a shipment by ID
type GetShipmentQuery struct {
	ShipmentID string
}

// GetByTrackingQuery represents the query to get a shipment by tracking code
type GetByTrackingQuery struct {
	TrackingCode string
}

// ListShipmentsQuery represents the query to list shipments
type ListShipmentsQuery struct {
	PartnerID string
	Limit     int64
}

// ListDeadLettersQuery represents the query to list recent dead letters
type ListDeadLettersQuery struct {
	Limit int64
}
