package domain

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Event types on the wire
const (
	EventShipmentStatusUpdated = "shipment.status.updated"

	statusEventVersion = 1
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// ShipmentCreatedEvent is raised when a shipment is created
type ShipmentCreatedEvent struct {
	ShipmentID   string    `json:"shipmentId"`
	TrackingCode string    `json:"trackingCode"`
	PartnerID    string    `json:"partnerId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (e *ShipmentCreatedEvent) EventType() string     { return "tracking.shipment.created" }
func (e *ShipmentCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// NewShipmentCreatedEvent builds the creation event from the aggregate
func NewShipmentCreatedEvent(s *Shipment) *ShipmentCreatedEvent {
	return &ShipmentCreatedEvent{
		ShipmentID:   s.ShipmentID,
		TrackingCode: s.TrackingCode,
		PartnerID:    s.PartnerID,
		CreatedAt:    s.CreatedAt,
	}
}

// ShipmentStatusChangedEvent is raised when a shipment transitions status
type ShipmentStatusChangedEvent struct {
	ShipmentID   string    `json:"shipmentId"`
	TrackingCode string    `json:"trackingCode"`
	OldStatus    Status    `json:"oldStatus"`
	NewStatus    Status    `json:"newStatus"`
	ChangedAt    time.Time `json:"changedAt"`
}

func (e *ShipmentStatusChangedEvent) EventType() string     { return "tracking.shipment.status-changed" }
func (e *ShipmentStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// NewShipmentStatusChangedEvent builds the transition event from the aggregate
func NewShipmentStatusChangedEvent(s *Shipment, old, next Status) *ShipmentStatusChangedEvent {
	return &ShipmentStatusChangedEvent{
		ShipmentID:   s.ShipmentID,
		TrackingCode: s.TrackingCode,
		OldStatus:    old,
		NewStatus:    next,
		ChangedAt:    s.UpdatedAt,
	}
}

// StatusEvent is the versioned envelope delivered to webhook subscribers
// and broadcast partners. Webhook fan-out builds the payload once per
// transition and sends the same bytes to every subscriber; the direct
// broadcast rebuilds it from a fresh read of the shipment.
type StatusEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	CreatedAt string          `json:"created_at"`
	Data      StatusEventData `json:"data"`
}

// StatusEventData carries the shipment snapshot at transition time
type StatusEventData struct {
	TrackingCode  string      `json:"tracking_code"`
	ShipmentID    string      `json:"shipment_id"`
	OldStatus     string      `json:"old_status"`
	NewStatus     string      `json:"new_status"`
	StatusNow     string      `json:"status_now"`
	Route         EventRoute  `json:"route"`
	Order         EventOrder  `json:"order"`
	Items         []EventItem `json:"items"`
	TotalQuantity int         `json:"total_quantity"`
	ShippingCost  float64     `json:"shipping_cost"`
	UpdatedAt     string      `json:"updated_at"`
}

// EventRoute is the route section of the event payload
type EventRoute struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// EventOrder is the order section of the event payload
type EventOrder struct {
	OrderID     string `json:"order_id"`
	PartnerID   string `json:"partner_id"`
	Supplier    string `json:"supplier"`
	Distributor string `json:"distributor"`
}

// EventItem is one line item in the event payload
type EventItem struct {
	ItemID   string `json:"item_id,omitempty"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// NewEventID generates a wire event identifier
func NewEventID() string {
	id := uuid.New()
	return "evt_" + hex.EncodeToString(id[:])
}

// BuildStatusEvent assembles the wire event for a status transition. It is
// a pure snapshot of its inputs: no I/O, no mutation of the shipment.
func BuildStatusEvent(s *Shipment, old, next Status, occurredAt time.Time) StatusEvent {
	items := make([]EventItem, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, EventItem{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
		})
	}

	return StatusEvent{
		ID:        NewEventID(),
		Type:      EventShipmentStatusUpdated,
		Version:   statusEventVersion,
		CreatedAt: occurredAt.UTC().Format(time.RFC3339),
		Data: StatusEventData{
			TrackingCode: s.TrackingCode,
			ShipmentID:   s.ShipmentID,
			OldStatus:    old.String(),
			NewStatus:    next.String(),
			StatusNow:    string(next.Category()),
			Route: EventRoute{
				Origin:      s.Route.Origin,
				Destination: s.Route.Destination,
			},
			Order: EventOrder{
				OrderID:     s.OrderID,
				PartnerID:   s.PartnerID,
				Supplier:    s.Supplier,
				Distributor: s.Distributor,
			},
			Items:         items,
			TotalQuantity: s.TotalQuantity,
			ShippingCost:  s.ShippingCost,
			UpdatedAt:     occurredAt.UTC().Format(time.RFC3339),
		},
	}
}
