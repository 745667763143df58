package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrShipmentNotFound   = errors.New("shipment not found")
	ErrShipmentCompleted  = errors.New("shipment is already completed")
	ErrNoItems            = errors.New("shipment has no items")
	ErrMissingRoute       = errors.New("shipment origin and destination are required")
	ErrMissingPartner     = errors.New("shipment partner is required")
	ErrDuplicateShipment  = errors.New("shipment already exists")
	ErrTrackingCodeExists = errors.New("tracking code already exists")
)

// Item is a single line on a shipment
type Item struct {
	ItemID   string `bson:"itemId,omitempty" json:"item_id,omitempty"`
	Name     string `bson:"name" json:"name"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// RouteInfo is the origin/destination pair a shipment travels
type RouteInfo struct {
	Origin      string `bson:"origin" json:"origin"`
	Destination string `bson:"destination" json:"destination"`
}

// Shipment is the aggregate root for the tracking bounded context.
// Instances are always fully normalized: legacy field variants are folded
// into the canonical fields exactly once, at decode time, by
// ShipmentRecord.Normalize.
type Shipment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ShipmentID    string             `bson:"shipmentId"`
	TrackingCode  string             `bson:"trackingCode"`
	OrderID       string             `bson:"orderId"`
	PartnerID     string             `bson:"partnerId"`
	Supplier      string             `bson:"supplier"`
	Distributor   string             `bson:"distributor"`
	Route         RouteInfo          `bson:"route"`
	Items         []Item             `bson:"items"`
	TotalQuantity int                `bson:"totalQuantity"`
	ShippingCost  float64            `bson:"shippingCost"`
	Status        Status             `bson:"status"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
	CompletedAt   *time.Time         `bson:"completedAt,omitempty"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewShipment creates a new shipment in the initial processing status
func NewShipment(orderID, partnerID, supplier, distributor string, route RouteInfo, items []Item, shippingCost float64) (*Shipment, error) {
	if route.Origin == "" || route.Destination == "" {
		return nil, ErrMissingRoute
	}
	if partnerID == "" {
		return nil, ErrMissingPartner
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	total := 0
	for _, it := range items {
		total += it.Quantity
	}

	now := time.Now().UTC()
	shipment := &Shipment{
		ShipmentID:    uuid.New().String(),
		TrackingCode:  NewTrackingCode(),
		OrderID:       orderID,
		PartnerID:     partnerID,
		Supplier:      supplier,
		Distributor:   distributor,
		Route:         route,
		Items:         items,
		TotalQuantity: total,
		ShippingCost:  shippingCost,
		Status:        StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	shipment.AddDomainEvent(NewShipmentCreatedEvent(shipment))

	return shipment, nil
}

// NewTrackingCode generates a customer-facing tracking code
func NewTrackingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TRK-" + raw[:12]
}

// UpdateStatus transitions the shipment to a new status. Completed
// shipments are frozen and reject further transitions.
func (s *Shipment) UpdateStatus(next Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}
	if s.Status.Terminal() {
		return ErrShipmentCompleted
	}

	previous := s.Status
	now := time.Now().UTC()

	s.Status = next
	s.UpdatedAt = now
	if next.Terminal() {
		s.CompletedAt = &now
	}

	s.AddDomainEvent(NewShipmentStatusChangedEvent(s, previous, next))

	return nil
}

// AddDomainEvent adds a domain event to the aggregate
func (s *Shipment) AddDomainEvent(event DomainEvent) {
	s.DomainEvents = append(s.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (s *Shipment) ClearDomainEvents() {
	s.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (s *Shipment) GetDomainEvents() []DomainEvent {
	return s.DomainEvents
}

// ShipmentRecord mirrors the raw persisted document shape, including the
// legacy field variants written by the previous system. It exists so the
// fallback chains live in exactly one place: Normalize.
type ShipmentRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ShipmentID   string             `bson:"shipmentId,omitempty"`
	TrackingCode string             `bson:"trackingCode,omitempty"`
	OrderID      string             `bson:"orderId,omitempty"`
	PartnerID    string             `bson:"partnerId,omitempty"`
	Supplier     string             `bson:"supplier,omitempty"`
	Distributor  string             `bson:"distributor,omitempty"`
	Route        *RouteInfo         `bson:"route,omitempty"`
	Items        []Item             `bson:"items,omitempty"`
	Status       string             `bson:"status,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt,omitempty"`
	UpdatedAt    time.Time          `bson:"updatedAt,omitempty"`
	CompletedAt  *time.Time         `bson:"completedAt,omitempty"`

	TotalQuantity *int     `bson:"totalQuantity,omitempty"`
	ShippingCost  *float64 `bson:"shippingCost,omitempty"`

	// Legacy variants. Older documents carry these instead of the
	// canonical fields above.
	LegacyOrderID        string             `bson:"id_pesanan,omitempty"`
	LegacyPartnerID      string             `bson:"id_retail,omitempty"`
	LegacyOriginSender   string             `bson:"asal_pengirim,omitempty"`
	LegacyOriginSupplier string             `bson:"asal_supplier,omitempty"`
	LegacyDestination    string             `bson:"tujuan,omitempty"`
	LegacyDestRetail     string             `bson:"tujuan_retail,omitempty"`
	LegacyShippingCost   *float64           `bson:"biaya_pengiriman,omitempty"`
	LegacyShippingPrice  *float64           `bson:"harga_pengiriman,omitempty"`
	LegacyItemName       string             `bson:"nama_barang,omitempty"`
	LegacyItemQuantity   *int               `bson:"kuantitas,omitempty"`
	LegacyTotalQuantity  *int               `bson:"total_kuantitas,omitempty"`
	LegacyOrderedItems   []legacyItemRecord `bson:"barang_dipesan,omitempty"`
}

type legacyItemRecord struct {
	ItemID   string `bson:"id_barang,omitempty"`
	Name     string `bson:"nama_barang,omitempty"`
	Quantity int    `bson:"kuantitas,omitempty"`
}

// Normalize folds the legacy field variants into a fully typed Shipment.
// Every fallback chain the old documents require is applied here, once,
// so the rest of the service only ever sees canonical fields.
func (r *ShipmentRecord) Normalize() *Shipment {
	shipment := &Shipment{
		ID:           r.ID,
		ShipmentID:   r.ShipmentID,
		TrackingCode: r.TrackingCode,
		OrderID:      firstNonEmpty(r.OrderID, r.LegacyOrderID),
		PartnerID:    firstNonEmpty(r.PartnerID, r.LegacyPartnerID),
		Supplier:     r.Supplier,
		Distributor:  r.Distributor,
		Status:       Status(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CompletedAt:  r.CompletedAt,
	}

	if shipment.ShipmentID == "" && !r.ID.IsZero() {
		shipment.ShipmentID = r.ID.Hex()
	}

	if r.Route != nil {
		shipment.Route = *r.Route
	} else {
		shipment.Route = RouteInfo{
			Origin:      firstNonEmpty(r.LegacyOriginSender, r.LegacyOriginSupplier),
			Destination: firstNonEmpty(r.LegacyDestination, r.LegacyDestRetail),
		}
	}

	switch {
	case len(r.Items) > 0:
		for _, it := range r.Items {
			shipment.Items = append(shipment.Items, normalizeItem(it.ItemID, it.Name, it.Quantity))
		}
	case len(r.LegacyOrderedItems) > 0:
		for _, it := range r.LegacyOrderedItems {
			shipment.Items = append(shipment.Items, normalizeItem(it.ItemID, it.Name, it.Quantity))
		}
	case r.LegacyItemName != "":
		qty := 0
		if r.LegacyItemQuantity != nil {
			qty = *r.LegacyItemQuantity
		}
		shipment.Items = []Item{normalizeItem("", r.LegacyItemName, qty)}
	}

	// Stored total -> legacy total -> flat legacy quantity -> item sum
	switch {
	case r.TotalQuantity != nil:
		shipment.TotalQuantity = *r.TotalQuantity
	case r.LegacyTotalQuantity != nil:
		shipment.TotalQuantity = *r.LegacyTotalQuantity
	case r.LegacyItemQuantity != nil:
		shipment.TotalQuantity = *r.LegacyItemQuantity
	default:
		for _, it := range shipment.Items {
			shipment.TotalQuantity += it.Quantity
		}
	}

	switch {
	case r.ShippingCost != nil:
		shipment.ShippingCost = *r.ShippingCost
	case r.LegacyShippingCost != nil:
		shipment.ShippingCost = *r.LegacyShippingCost
	case r.LegacyShippingPrice != nil:
		shipment.ShippingCost = *r.LegacyShippingPrice
	}

	return shipment
}

// normalizeItem trims names and ids (a blank id is dropped entirely) and
// clamps quantities to zero so negative legacy values never surface.
func normalizeItem(itemID, name string, quantity int) Item {
	if quantity < 0 {
		quantity = 0
	}
	return Item{
		ItemID:   strings.TrimSpace(itemID),
		Name:     strings.TrimSpace(name),
		Quantity: quantity,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
