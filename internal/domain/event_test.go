package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatusEvent(t *testing.T) {
	shipment, err := NewShipment("ord-1", "retail-7", "PT Sumber", "PT Distribusi",
		RouteInfo{Origin: "Jakarta", Destination: "Surabaya"}, testItems(), 125000)
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	event := BuildStatusEvent(shipment, StatusProcessing, StatusInTransit, at)

	assert.True(t, strings.HasPrefix(event.ID, "evt_"))
	assert.Len(t, event.ID, len("evt_")+32)
	assert.Equal(t, EventShipmentStatusUpdated, event.Type)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "2026-03-14T09:26:53Z", event.CreatedAt)

	assert.Equal(t, shipment.TrackingCode, event.Data.TrackingCode)
	assert.Equal(t, "processing", event.Data.OldStatus)
	assert.Equal(t, "in_transit", event.Data.NewStatus)
	assert.Equal(t, "ON_DELIVERY", event.Data.StatusNow)
	assert.Equal(t, "Jakarta", event.Data.Route.Origin)
	assert.Equal(t, "retail-7", event.Data.Order.PartnerID)
	assert.Equal(t, 5, event.Data.TotalQuantity)
	require.Len(t, event.Data.Items, 2)
	assert.Equal(t, "Rice 5kg", event.Data.Items[0].Name)
}

func TestBuildStatusEventCategories(t *testing.T) {
	shipment, err := NewShipment("ord-1", "retail-7", "PT Sumber", "PT Distribusi",
		RouteInfo{Origin: "Jakarta", Destination: "Surabaya"}, testItems(), 125000)
	require.NoError(t, err)

	tests := []struct {
		next Status
		want string
	}{
		{StatusProcessing, "CREATED"},
		{StatusOutForDelivery, "ON_DELIVERY"},
		{StatusCompleted, "DELIVERED"},
	}

	for _, tt := range tests {
		event := BuildStatusEvent(shipment, StatusProcessing, tt.next, time.Now())
		assert.Equal(t, tt.want, event.Data.StatusNow)
	}
}

func TestBuildStatusEventDoesNotMutate(t *testing.T) {
	shipment, err := NewShipment("ord-1", "retail-7", "PT Sumber", "PT Distribusi",
		RouteInfo{Origin: "Jakarta", Destination: "Surabaya"}, testItems(), 125000)
	require.NoError(t, err)
	shipment.ClearDomainEvents()

	before := *shipment
	_ = BuildStatusEvent(shipment, StatusProcessing, StatusCompleted, time.Now())

	assert.Equal(t, before.Status, shipment.Status)
	assert.Empty(t, shipment.DomainEvents)
}

func TestStatusEventJSONShape(t *testing.T) {
	shipment, err := NewShipment("ord-1", "retail-7", "PT Sumber", "PT Distribusi",
		RouteInfo{Origin: "Jakarta", Destination: "Surabaya"}, testItems(), 125000)
	require.NoError(t, err)

	event := BuildStatusEvent(shipment, StatusProcessing, StatusInTransit, time.Now())
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, key := range []string{"id", "type", "version", "created_at", "data"} {
		assert.Contains(t, decoded, key)
	}

	data := decoded["data"].(map[string]interface{})
	for _, key := range []string{"tracking_code", "shipment_id", "old_status", "new_status", "status_now", "route", "order", "items", "total_quantity", "shipping_cost", "updated_at"} {
		assert.Contains(t, data, key)
	}
}

func TestNewEventID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEventID()
		assert.True(t, strings.HasPrefix(id, "evt_"))
		assert.False(t, seen[id], "duplicate event id %s", id)
		seen[id] = true
	}
}
