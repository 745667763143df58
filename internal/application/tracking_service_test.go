package application

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distributor-platform/tracking-service/internal/domain"
	"github.com/distributor-platform/tracking-service/internal/notify"
	"github.com/distributor-platform/tracking-service/pkg/errors"
)

type trackingFixture struct {
	service     *TrackingApplicationService
	shipments   *memoryShipments
	routes      *memoryRoutes
	subscribers *memorySubscribers
	deadLetters *memoryDeadLetters
	broadcaster *notify.Broadcaster
}

func newTrackingFixture(t *testing.T, partners map[string]string) *trackingFixture {
	t.Helper()

	shipments := newMemoryShipments()
	routes := &memoryRoutes{}
	subscribers := newMemorySubscribers()
	deadLetters := &memoryDeadLetters{}

	route, err := domain.NewRoute("Jakarta", "Surabaya", 50000, 3)
	require.NoError(t, err)
	require.NoError(t, routes.Save(context.Background(), route))

	dispatcherConfig := notify.DefaultDispatcherConfig()
	dispatcherConfig.Async = false
	dispatcher := notify.NewDispatcher(dispatcherConfig, deadLetters, testLogger(), testMetrics())

	broadcaster := notify.NewBroadcaster(nil, partners, shipments, testLogger(), testMetrics())
	t.Cleanup(broadcaster.Close)

	service := NewTrackingApplicationService(shipments, routes, subscribers, dispatcher, broadcaster, testMetrics(), testLogger())
	return &trackingFixture{
		service:     service,
		shipments:   shipments,
		routes:      routes,
		subscribers: subscribers,
		deadLetters: deadLetters,
		broadcaster: broadcaster,
	}
}

func createShipmentCommand() CreateShipmentCommand {
	return CreateShipmentCommand{
		OrderID:     "ord-1",
		PartnerID:   "retail-7",
		Supplier:    "PT Sumber",
		Distributor: "PT Distribusi",
		Origin:      "Jakarta",
		Destination: "Surabaya",
		Items: []ItemInput{
			{ItemID: "itm-1", Name: "Rice 5kg", Quantity: 3},
		},
		WeightKg: 2,
	}
}

func TestQuote(t *testing.T) {
	f := newTrackingFixture(t, nil)

	quote, err := f.service.Quote(context.Background(), QuoteCommand{Origin: "Jakarta", Destination: "Surabaya", WeightKg: 2})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, quote.BasePrice)
	assert.Equal(t, 85000.0, quote.TotalPrice)
	assert.Equal(t, 3, quote.ETADays)
}

func TestQuoteUnknownLane(t *testing.T) {
	f := newTrackingFixture(t, nil)

	_, err := f.service.Quote(context.Background(), QuoteCommand{Origin: "Jakarta", Destination: "Mars", WeightKg: 1})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestCreateShipment(t *testing.T) {
	f := newTrackingFixture(t, nil)

	dto, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	assert.NotEmpty(t, dto.ShipmentID)
	assert.Contains(t, dto.TrackingCode, "TRK-")
	assert.Equal(t, "processing", dto.Status)
	assert.Equal(t, "CREATED", dto.StatusCategory)
	// 50000 base + 0.7*50000 for the second kilogram
	assert.Equal(t, 85000.0, dto.ShippingCost)

	stored, err := f.shipments.FindByID(context.Background(), dto.ShipmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, stored.Status)
}

func TestCreateShipmentUnknownLane(t *testing.T) {
	f := newTrackingFixture(t, nil)

	cmd := createShipmentCommand()
	cmd.Destination = "Mars"

	_, err := f.service.CreateShipment(context.Background(), cmd)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeUnprocessable, appErr.Code)
}

func TestCreateShipmentInvalid(t *testing.T) {
	f := newTrackingFixture(t, nil)

	cmd := createShipmentCommand()
	cmd.Items = nil

	_, err := f.service.CreateShipment(context.Background(), cmd)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)
}

func TestGetByTracking(t *testing.T) {
	f := newTrackingFixture(t, nil)

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	dto, err := f.service.GetByTracking(context.Background(), GetByTrackingQuery{TrackingCode: created.TrackingCode})
	require.NoError(t, err)
	assert.Equal(t, created.ShipmentID, dto.ShipmentID)

	_, err = f.service.GetByTracking(context.Background(), GetByTrackingQuery{TrackingCode: "TRK-MISSING00000"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}

func TestListShipmentsByPartner(t *testing.T) {
	f := newTrackingFixture(t, nil)

	_, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	other := createShipmentCommand()
	other.PartnerID = "retail-9"
	_, err = f.service.CreateShipment(context.Background(), other)
	require.NoError(t, err)

	dtos, err := f.service.ListShipments(context.Background(), ListShipmentsQuery{PartnerID: "retail-7"})
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, "retail-7", dtos[0].PartnerID)

	all, err := f.service.ListShipments(context.Background(), ListShipmentsQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateStatusNotifiesSubscribers(t *testing.T) {
	var hits atomic.Int32
	var gotSignature atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotSignature.Store(r.Header.Get(notify.SignatureHeader))
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newTrackingFixture(t, nil)

	subscriber, err := domain.NewSubscriber(server.URL, []string{domain.EventShipmentStatusUpdated}, "secret")
	require.NoError(t, err)
	require.NoError(t, f.subscribers.Save(context.Background(), subscriber))

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	result, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		ShipmentID: created.ShipmentID,
		Status:     "in_transit",
	})
	require.NoError(t, err)

	assert.Equal(t, "in_transit", result.Shipment.Status)
	assert.Equal(t, "ON_DELIVERY", result.Shipment.StatusCategory)
	assert.Contains(t, result.EventID, "evt_")
	assert.Equal(t, 1, result.Notified)
	assert.False(t, result.Archived)

	assert.Equal(t, int32(1), hits.Load())
	assert.NotEmpty(t, gotSignature.Load())
}

func TestUpdateStatusInactiveSubscriberSkipped(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newTrackingFixture(t, nil)

	subscriber, err := domain.NewSubscriber(server.URL, []string{domain.EventShipmentStatusUpdated}, "secret")
	require.NoError(t, err)
	require.NoError(t, subscriber.Deactivate())
	require.NoError(t, f.subscribers.Save(context.Background(), subscriber))

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	result, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		ShipmentID: created.ShipmentID,
		Status:     "in_transit",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Notified)
	assert.Equal(t, int32(0), hits.Load())
}

func TestUpdateStatusCompletedArchives(t *testing.T) {
	f := newTrackingFixture(t, nil)

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	result, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		ShipmentID: created.ShipmentID,
		Status:     "completed",
	})
	require.NoError(t, err)
	assert.True(t, result.Archived)
	assert.Equal(t, "DELIVERED", result.Shipment.StatusCategory)
	require.NotNil(t, result.Shipment.CompletedAt)

	require.Len(t, f.shipments.archived, 1)
	_, err = f.shipments.FindByID(context.Background(), created.ShipmentID)
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)
}

func TestUpdateStatusRejectsUnknownLabel(t *testing.T) {
	f := newTrackingFixture(t, nil)

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		ShipmentID: created.ShipmentID,
		Status:     "teleported",
	})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidationError, appErr.Code)
}

func TestUpdateStatusAfterCompletionConflicts(t *testing.T) {
	f := newTrackingFixture(t, nil)

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	// Archive removes the shipment from the active set; re-save to test
	// the terminal transition guard in isolation.
	shipment, err := f.shipments.FindByID(context.Background(), created.ShipmentID)
	require.NoError(t, err)
	require.NoError(t, shipment.UpdateStatus(domain.StatusCompleted))
	require.NoError(t, f.shipments.Save(context.Background(), shipment))

	_, err = f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		ShipmentID: created.ShipmentID,
		Status:     "in_transit",
	})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestUpdateStatusBroadcastsToPartner(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newTrackingFixture(t, map[string]string{"retail-7": server.URL})

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		ShipmentID: created.ShipmentID,
		Status:     "out_for_delivery",
	})
	require.NoError(t, err)

	select {
	case ua := <-received:
		assert.Equal(t, "distributor-direct/1.0", ua)
	case <-time.After(2 * time.Second):
		t.Fatal("partner broadcast was not delivered")
	}
}

func TestBroadcastTest(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newTrackingFixture(t, map[string]string{"retail-7": server.URL})

	created, err := f.service.CreateShipment(context.Background(), createShipmentCommand())
	require.NoError(t, err)

	shipmentID, err := f.service.BroadcastTest(context.Background(), BroadcastTestCommand{
		PartnerID:    "retail-7",
		TrackingCode: created.TrackingCode,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ShipmentID, shipmentID)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("test broadcast was not delivered")
	}
}

func TestBroadcastTestUnknownPartner(t *testing.T) {
	f := newTrackingFixture(t, nil)

	_, err := f.service.BroadcastTest(context.Background(), BroadcastTestCommand{PartnerID: "nobody", TrackingCode: "TRK-X"})
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)
}
