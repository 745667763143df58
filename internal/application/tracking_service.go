package application

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/internal/notify"
	"github.com/distributor-platform/tracking-service/pkg/errors"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
)

const defaultListLimit = 100

// TrackingApplicationService handles shipment and status-update use cases.
// A status transition persists the new state, builds the wire event once,
// then fans it out: signed webhooks through the dispatcher (sync or async
// per its config) and an unsigned direct broadcast to the owning partner.
type TrackingApplicationService struct {
	shipments   domain.ShipmentRepository
	routes      domain.RouteRepository
	subscribers domain.SubscriberRepository
	dispatcher  *notify.Dispatcher
	broadcaster *notify.Broadcaster
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewTrackingApplicationService creates a new TrackingApplicationService
func NewTrackingApplicationService(
	shipments domain.ShipmentRepository,
	routes domain.RouteRepository,
	subscribers domain.SubscriberRepository,
	dispatcher *notify.Dispatcher,
	broadcaster *notify.Broadcaster,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TrackingApplicationService {
	return &TrackingApplicationService{
		shipments:   shipments,
		routes:      routes,
		subscribers: subscribers,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		metrics:     m,
		logger:      logger,
	}
}

// Quote prices a lane without creating anything
func (s *TrackingApplicationService) Quote(ctx context.Context, cmd QuoteCommand) (*QuoteDTO, error) {
	route, err := s.routes.FindByLane(ctx, cmd.Origin, cmd.Destination)
	if err != nil {
		if stderrors.Is(err, domain.ErrRouteNotFound) {
			return nil, errors.ErrNotFound("route")
		}
		s.logger.WithError(err).Error("Failed to look up route", "origin", cmd.Origin, "destination", cmd.Destination)
		return nil, fmt.Errorf("failed to look up route: %w", err)
	}

	return ToQuoteDTO(route, cmd.WeightKg), nil
}

// CreateRoute prices a lane, replacing any previous price for it
func (s *TrackingApplicationService) CreateRoute(ctx context.Context, cmd CreateRouteCommand) (*LaneDTO, error) {
	route, err := domain.NewRoute(cmd.Origin, cmd.Destination, cmd.BasePrice, cmd.ETADays)
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	if err := s.routes.Save(ctx, route); err != nil {
		s.logger.WithError(err).Error("Failed to save route", "origin", cmd.Origin, "destination", cmd.Destination)
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.logger.Info("Priced route", "origin", route.Origin, "destination", route.Destination, "basePrice", route.BasePrice)
	return ToLaneDTO(route), nil
}

// ListRoutes lists every priced lane
func (s *TrackingApplicationService) ListRoutes(ctx context.Context) ([]LaneDTO, error) {
	routes, err := s.routes.FindAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list routes")
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	dtos := make([]LaneDTO, 0, len(routes))
	for _, route := range routes {
		dtos = append(dtos, *ToLaneDTO(route))
	}
	return dtos, nil
}

// CreateShipment creates a new shipment on a priced lane
func (s *TrackingApplicationService) CreateShipment(ctx context.Context, cmd CreateShipmentCommand) (*ShipmentDTO, error) {
	route, err := s.routes.FindByLane(ctx, cmd.Origin, cmd.Destination)
	if err != nil {
		if stderrors.Is(err, domain.ErrRouteNotFound) {
			return nil, errors.ErrUnprocessable(fmt.Sprintf("no priced route from %s to %s", cmd.Origin, cmd.Destination))
		}
		s.logger.WithError(err).Error("Failed to look up route", "origin", cmd.Origin, "destination", cmd.Destination)
		return nil, fmt.Errorf("failed to look up route: %w", err)
	}

	items := make([]domain.Item, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		items = append(items, domain.Item{
			ItemID:   item.ItemID,
			Name:     item.Name,
			Quantity: item.Quantity,
		})
	}

	weight := cmd.WeightKg
	if weight <= 0 {
		weight = domain.IncludedWeightKg
	}

	shipment, err := domain.NewShipment(
		cmd.OrderID,
		cmd.PartnerID,
		cmd.Supplier,
		cmd.Distributor,
		domain.RouteInfo{Origin: cmd.Origin, Destination: cmd.Destination},
		items,
		route.Quote(weight),
	)
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	if err := s.shipments.Save(ctx, shipment); err != nil {
		s.logger.WithError(err).Error("Failed to create shipment", "orderId", cmd.OrderID)
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}

	s.metrics.RecordShipmentCreated()
	s.logger.Info("Created shipment",
		"shipmentId", shipment.ShipmentID,
		"trackingCode", shipment.TrackingCode,
		"partnerId", shipment.PartnerID,
	)
	return ToShipmentDTO(shipment), nil
}

// GetShipment retrieves a shipment by ID
func (s *TrackingApplicationService) GetShipment(ctx context.Context, query GetShipmentQuery) (*ShipmentDTO, error) {
	shipment, err := s.shipments.FindByID(ctx, query.ShipmentID)
	if err != nil {
		if stderrors.Is(err, domain.ErrShipmentNotFound) {
			return nil, errors.ErrNotFoundWithID("shipment", query.ShipmentID)
		}
		s.logger.WithError(err).Error("Failed to get shipment", "shipmentId", query.ShipmentID)
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}

	return ToShipmentDTO(shipment), nil
}

// GetByTracking retrieves a shipment by its tracking code
func (s *TrackingApplicationService) GetByTracking(ctx context.Context, query GetByTrackingQuery) (*ShipmentDTO, error) {
	shipment, err := s.shipments.FindByTrackingCode(ctx, query.TrackingCode)
	if err != nil {
		if stderrors.Is(err, domain.ErrShipmentNotFound) {
			return nil, errors.ErrNotFoundWithID("shipment", query.TrackingCode)
		}
		s.logger.WithError(err).Error("Failed to get shipment by tracking code", "trackingCode", query.TrackingCode)
		return nil, fmt.Errorf("failed to get shipment by tracking code: %w", err)
	}

	return ToShipmentDTO(shipment), nil
}

// ListShipments lists active shipments, optionally scoped to a partner
func (s *TrackingApplicationService) ListShipments(ctx context.Context, query ListShipmentsQuery) ([]ShipmentDTO, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		shipments []*domain.Shipment
		err       error
	)
	if query.PartnerID != "" {
		shipments, err = s.shipments.FindByPartnerID(ctx, query.PartnerID, limit)
	} else {
		shipments, err = s.shipments.FindAll(ctx, limit)
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to list shipments", "partnerId", query.PartnerID)
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}

	return ToShipmentDTOs(shipments), nil
}

// UpdateStatus transitions a shipment and notifies every consumer. The
// wire event is built exactly once; webhook delivery failures surface as
// dead letters, broadcast failures as logs, never as an error here.
func (s *TrackingApplicationService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*StatusUpdateDTO, error) {
	next, err := domain.ParseStatus(cmd.Status)
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}

	shipment, err := s.shipments.FindByID(ctx, cmd.ShipmentID)
	if err != nil {
		if stderrors.Is(err, domain.ErrShipmentNotFound) {
			return nil, errors.ErrNotFoundWithID("shipment", cmd.ShipmentID)
		}
		s.logger.WithError(err).Error("Failed to get shipment", "shipmentId", cmd.ShipmentID)
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}

	previous := shipment.Status
	if err := shipment.UpdateStatus(next); err != nil {
		if stderrors.Is(err, domain.ErrShipmentCompleted) {
			return nil, errors.ErrConflict("shipment is already completed")
		}
		return nil, errors.ErrValidation(err.Error())
	}

	if err := s.shipments.Save(ctx, shipment); err != nil {
		s.logger.WithError(err).Error("Failed to save shipment", "shipmentId", cmd.ShipmentID)
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	event := domain.BuildStatusEvent(shipment, previous, next, shipment.UpdatedAt)

	subscribers, err := s.subscribers.FindActiveByEvent(ctx, event.Type)
	if err != nil {
		// Notification must not undo a persisted transition
		s.logger.WithError(err).Error("Failed to load subscribers, skipping webhooks", "eventId", event.ID)
		subscribers = nil
	}

	if err := s.dispatcher.Dispatch(ctx, event, subscribers); err != nil {
		s.logger.WithError(err).Error("Failed to dispatch webhooks", "eventId", event.ID)
	}

	if err := s.broadcaster.Enqueue(ctx, shipment.ShipmentID, previous, next); err != nil {
		s.logger.WithError(err).Error("Failed to enqueue broadcast", "shipmentId", shipment.ShipmentID)
	}

	archived := false
	if next.Terminal() {
		if err := s.shipments.Archive(ctx, shipment); err != nil {
			s.logger.WithError(err).Error("Failed to archive completed shipment", "shipmentId", shipment.ShipmentID)
		} else {
			archived = true
		}
	}

	s.metrics.RecordStatusUpdate(string(next))
	s.logger.Info("Updated shipment status",
		"shipmentId", shipment.ShipmentID,
		"oldStatus", string(previous),
		"newStatus", string(next),
		"eventId", event.ID,
		"subscribers", len(subscribers),
		"archived", archived,
	)

	return &StatusUpdateDTO{
		Shipment: *ToShipmentDTO(shipment),
		EventID:  event.ID,
		Notified: len(subscribers),
		Archived: archived,
	}, nil
}

// BroadcastTest re-broadcasts a shipment's current status to its partner
// endpoint so integrations can be verified without a real transition.
func (s *TrackingApplicationService) BroadcastTest(ctx context.Context, cmd BroadcastTestCommand) (string, error) {
	if !s.broadcaster.HasPartner(cmd.PartnerID) {
		return "", errors.ErrNotFoundWithID("partner endpoint", cmd.PartnerID)
	}

	shipment, err := s.shipments.FindByTrackingCode(ctx, cmd.TrackingCode)
	if err != nil {
		if stderrors.Is(err, domain.ErrShipmentNotFound) {
			return "", errors.ErrNotFoundWithID("shipment", cmd.TrackingCode)
		}
		s.logger.WithError(err).Error("Failed to get shipment by tracking code", "trackingCode", cmd.TrackingCode)
		return "", fmt.Errorf("failed to get shipment by tracking code: %w", err)
	}

	if err := s.broadcaster.Enqueue(ctx, shipment.ShipmentID, shipment.Status, shipment.Status); err != nil {
		return "", fmt.Errorf("failed to enqueue broadcast: %w", err)
	}

	s.logger.Info("Enqueued test broadcast", "partnerId", cmd.PartnerID, "shipmentId", shipment.ShipmentID)
	return shipment.ShipmentID, nil
}
