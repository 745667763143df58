package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrRouteNotFound    = errors.New("route not found")
	ErrInvalidBasePrice = errors.New("route base price must be positive")
)

// Pricing constants. The first kilogram is included in the base price;
// every additional kilogram adds a fixed fraction of the base.
const (
	IncludedWeightKg = 1
	PerKgFactor      = 0.7
)

// Route is a priced origin/destination lane
type Route struct {
	ID          string    `bson:"_id"`
	Origin      string    `bson:"origin"`
	Destination string    `bson:"destination"`
	BasePrice   float64   `bson:"basePrice"`
	ETADays     int       `bson:"etaDays"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

// NewRoute creates a priced lane
func NewRoute(origin, destination string, basePrice float64, etaDays int) (*Route, error) {
	if origin == "" || destination == "" {
		return nil, ErrMissingRoute
	}
	if basePrice <= 0 {
		return nil, ErrInvalidBasePrice
	}
	now := time.Now().UTC()
	return &Route{
		ID:          uuid.New().String(),
		Origin:      origin,
		Destination: destination,
		BasePrice:   basePrice,
		ETADays:     etaDays,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Quote prices a shipment of the given weight on this lane
func (r *Route) Quote(weightKg int) float64 {
	if weightKg <= IncludedWeightKg {
		return r.BasePrice
	}
	extra := float64(weightKg - IncludedWeightKg)
	return r.BasePrice + r.BasePrice*PerKgFactor*extra
}
