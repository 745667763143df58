package application

import "github.com/distributor-platform/tracking-service/internal/domain"

// ToShipmentDTO converts a domain Shipment to ShipmentDTO
func ToShipmentDTO(shipment *domain.Shipment) *ShipmentDTO {
	if shipment == nil {
		return nil
	}

	return &ShipmentDTO{
		ShipmentID:     shipment.ShipmentID,
		TrackingCode:   shipment.TrackingCode,
		OrderID:        shipment.OrderID,
		PartnerID:      shipment.PartnerID,
		Supplier:       shipment.Supplier,
		Distributor:    shipment.Distributor,
		Route:          ToRouteDTO(shipment.Route),
		Items:          ToItemDTOs(shipment.Items),
		TotalQuantity:  shipment.TotalQuantity,
		ShippingCost:   shipment.ShippingCost,
		Status:         string(shipment.Status),
		StatusCategory: string(shipment.Status.Category()),
		CreatedAt:      shipment.CreatedAt,
		UpdatedAt:      shipment.UpdatedAt,
		CompletedAt:    shipment.CompletedAt,
	}
}

// ToRouteDTO converts a domain RouteInfo to RouteDTO
func ToRouteDTO(route domain.RouteInfo) RouteDTO {
	return RouteDTO{
		Origin:      route.Origin,
		Destination: route.Destination,
	}
}

// ToItemDTOs converts domain Items to ItemDTOs
func ToItemDTOs(items []domain.Item) []ItemDTO {
	dtos := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, ItemDTO{
			ItemID:   item.ItemID,
			Name:     item.Name,
			Quantity: item.Quantity,
		})
	}
	return dtos
}

// ToShipmentDTOs converts a slice of domain Shipments to ShipmentDTOs
func ToShipmentDTOs(shipments []*domain.Shipment) []ShipmentDTO {
	dtos := make([]ShipmentDTO, 0, len(shipments))
	for _, shipment := range shipments {
		if dto := ToShipmentDTO(shipment); dto != nil {
			dtos = append(dtos, *dto)
		}
	}
	return dtos
}

// ToSubscriptionDTO converts a domain Subscriber to SubscriptionDTO.
// The shared secret is omitted unless includeSecret is set.
func ToSubscriptionDTO(subscriber *domain.Subscriber, includeSecret bool) *SubscriptionDTO {
	if subscriber == nil {
		return nil
	}

	dto := &SubscriptionDTO{
		ID:        subscriber.ID,
		TargetURL: subscriber.TargetURL,
		Events:    subscriber.Events,
		Active:    subscriber.Active,
		CreatedAt: subscriber.CreatedAt,
	}
	if includeSecret {
		dto.Secret = subscriber.Secret
	}
	return dto
}

// ToDeadLetterDTO converts a domain DeadLetter to DeadLetterDTO
func ToDeadLetterDTO(letter *domain.DeadLetter) *DeadLetterDTO {
	if letter == nil {
		return nil
	}

	return &DeadLetterDTO{
		ID:           letter.ID,
		SubscriberID: letter.SubscriberID,
		TargetURL:    letter.TargetURL,
		EventID:      letter.Event.ID,
		EventType:    letter.Event.Type,
		LastError:    letter.LastError,
		Retryable:    letter.Retryable,
		CreatedAt:    letter.CreatedAt,
	}
}

// ToDeadLetterDTOs converts a slice of domain DeadLetters to DeadLetterDTOs
func ToDeadLetterDTOs(letters []*domain.DeadLetter) []DeadLetterDTO {
	dtos := make([]DeadLetterDTO, 0, len(letters))
	for _, letter := range letters {
		if dto := ToDeadLetterDTO(letter); dto != nil {
			dtos = append(dtos, *dto)
		}
	}
	return dtos
}

// ToLaneDTO converts a priced domain Route to LaneDTO
func ToLaneDTO(route *domain.Route) *LaneDTO {
	if route == nil {
		return nil
	}

	return &LaneDTO{
		ID:          route.ID,
		Origin:      route.Origin,
		Destination: route.Destination,
		BasePrice:   route.BasePrice,
		ETADays:     route.ETADays,
		CreatedAt:   route.CreatedAt,
		UpdatedAt:   route.UpdatedAt,
	}
}

// ToQuoteDTO builds a quote response from a priced lane
func ToQuoteDTO(route *domain.Route, weightKg int) *QuoteDTO {
	if route == nil {
		return nil
	}

	return &QuoteDTO{
		Origin:      route.Origin,
		Destination: route.Destination,
		WeightKg:    weightKg,
		BasePrice:   route.BasePrice,
		TotalPrice:  route.Quote(weightKg),
		ETADays:     route.ETADays,
	}
}
