package domain

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrUnknownStatus = errors.New("unknown shipment status")
)

// Status represents a shipment lifecycle status
type Status string

const (
	StatusProcessing           Status = "processing"
	StatusCourierPickup        Status = "courier_pickup"
	StatusInTransit            Status = "in_transit"
	StatusArrivedSortingHub    Status = "arrived_sorting_hub"
	StatusDepartedSortingHub   Status = "departed_sorting_hub"
	StatusOutForDelivery       Status = "out_for_delivery"
	StatusArrivedAtDestination Status = "arrived_at_destination"
	StatusCompleted            Status = "completed"
)

// StatusCategory is the coarse delivery phase reported to consumers
type StatusCategory string

const (
	CategoryCreated    StatusCategory = "CREATED"
	CategoryOnDelivery StatusCategory = "ON_DELIVERY"
	CategoryDelivered  StatusCategory = "DELIVERED"
)

// AllStatuses returns the closed set of valid statuses in lifecycle order
func AllStatuses() []Status {
	return []Status{
		StatusProcessing,
		StatusCourierPickup,
		StatusInTransit,
		StatusArrivedSortingHub,
		StatusDepartedSortingHub,
		StatusOutForDelivery,
		StatusArrivedAtDestination,
		StatusCompleted,
	}
}

// ParseStatus validates a raw status label against the closed status set
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Valid reports whether the status is a member of the closed status set
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing,
		StatusCourierPickup,
		StatusInTransit,
		StatusArrivedSortingHub,
		StatusDepartedSortingHub,
		StatusOutForDelivery,
		StatusArrivedAtDestination,
		StatusCompleted:
		return true
	}
	return false
}

// Category maps each status to its delivery phase. The mapping is a closed
// switch: adding a status requires deciding its category here.
func (s Status) Category() StatusCategory {
	switch s {
	case StatusProcessing:
		return CategoryCreated
	case StatusCompleted:
		return CategoryDelivered
	case StatusCourierPickup,
		StatusInTransit,
		StatusArrivedSortingHub,
		StatusDepartedSortingHub,
		StatusOutForDelivery,
		StatusArrivedAtDestination:
		return CategoryOnDelivery
	}
	return CategoryOnDelivery
}

// Terminal reports whether the status ends the shipment lifecycle
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

func (s Status) String() string {
	return string(s)
}
