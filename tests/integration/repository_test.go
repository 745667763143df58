package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/distributor-platform/tracking-service/internal/domain"
	repo "github.com/distributor-platform/tracking-service/internal/infrastructure/mongodb"
	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
	"github.com/distributor-platform/tracking-service/pkg/mongodb"
	sharedtesting "github.com/distributor-platform/tracking-service/pkg/testing"
)

// Test fixtures

func createTestShipment(t *testing.T, partnerID string) *domain.Shipment {
	t.Helper()

	shipment, err := domain.NewShipment(
		"ORD-001",
		partnerID,
		"PT Sumber Makmur",
		"CV Distribusi Utama",
		domain.RouteInfo{Origin: "Jakarta", Destination: "Surabaya"},
		[]domain.Item{
			{ItemID: "SKU-1", Name: "Beras 5kg", Quantity: 10},
			{ItemID: "SKU-2", Name: "Minyak Goreng 2L", Quantity: 4},
		},
		85000,
	)
	require.NoError(t, err)
	return shipment
}

func setupClient(t *testing.T) *mongodb.InstrumentedClient {
	t.Helper()
	ctx := context.Background()

	mongoContainer, err := sharedtesting.NewMongoDBContainer(ctx)
	require.NoError(t, err)

	client, err := mongodb.NewClient(ctx, &mongodb.Config{
		URI:            mongoContainer.URI,
		Database:       "test_tracking_db",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := client.Close(ctx); err != nil {
			t.Logf("Failed to disconnect MongoDB client: %v", err)
		}
		if err := mongoContainer.Close(ctx); err != nil {
			t.Logf("Failed to close MongoDB container: %v", err)
		}
	})

	m := metrics.New(metrics.DefaultConfig("tracking-service"))
	logger := logging.New(logging.DefaultConfig("tracking-service"))
	return mongodb.NewInstrumentedClient(client, m, logger)
}

func TestShipmentRepository_SaveAndFind(t *testing.T) {
	client := setupClient(t)
	shipments := repo.NewShipmentRepository(
		client.Collection(repo.CollectionShipments),
		client.Collection(repo.CollectionShipmentHistory),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Save new shipment", func(t *testing.T) {
		shipment := createTestShipment(t, "retail-7")

		err := shipments.Save(ctx, shipment)
		assert.NoError(t, err)
		assert.Empty(t, shipment.GetDomainEvents(), "save should clear domain events")

		found, err := shipments.FindByID(ctx, shipment.ShipmentID)
		require.NoError(t, err)
		assert.Equal(t, shipment.ShipmentID, found.ShipmentID)
		assert.Equal(t, shipment.TrackingCode, found.TrackingCode)
		assert.Equal(t, "retail-7", found.PartnerID)
		assert.Equal(t, domain.StatusProcessing, found.Status)
		assert.Equal(t, 14, found.TotalQuantity)
	})

	t.Run("Update existing shipment (upsert)", func(t *testing.T) {
		shipment := createTestShipment(t, "retail-7")
		require.NoError(t, shipments.Save(ctx, shipment))

		require.NoError(t, shipment.UpdateStatus(domain.StatusInTransit))
		require.NoError(t, shipments.Save(ctx, shipment))

		found, err := shipments.FindByID(ctx, shipment.ShipmentID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInTransit, found.Status)
	})

	t.Run("Find by tracking code", func(t *testing.T) {
		shipment := createTestShipment(t, "retail-9")
		require.NoError(t, shipments.Save(ctx, shipment))

		found, err := shipments.FindByTrackingCode(ctx, shipment.TrackingCode)
		require.NoError(t, err)
		assert.Equal(t, shipment.ShipmentID, found.ShipmentID)
	})

	t.Run("Find non-existent shipment", func(t *testing.T) {
		_, err := shipments.FindByID(ctx, "no-such-shipment")
		assert.ErrorIs(t, err, domain.ErrShipmentNotFound)
	})
}

func TestShipmentRepository_LegacyDocuments(t *testing.T) {
	client := setupClient(t)
	collection := client.Collection(repo.CollectionShipments)
	shipments := repo.NewShipmentRepository(collection, client.Collection(repo.CollectionShipmentHistory))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Normalize legacy field names on read", func(t *testing.T) {
		// Document shape written by the previous system
		legacyDoc := bson.M{
			"shipmentId":       "legacy-001",
			"trackingCode":     "TRK-LEGACY00001",
			"id_pesanan":       "ORD-OLD-42",
			"id_retail":        "retail-legacy",
			"asal_supplier":    "Bandung",
			"tujuan_retail":    "Semarang",
			"harga_pengiriman": 120000.0,
			"barang_dipesan": []bson.M{
				{"id_barang": "B-1", "nama_barang": "  Gula 1kg ", "kuantitas": 6},
				{"id_barang": "B-2", "nama_barang": "Tepung 1kg", "kuantitas": 2},
			},
			"total_kuantitas": 8,
			"status":          "in_transit",
			"createdAt":       time.Now().UTC(),
			"updatedAt":       time.Now().UTC(),
		}
		_, err := collection.InsertOne(ctx, legacyDoc)
		require.NoError(t, err)

		found, err := shipments.FindByID(ctx, "legacy-001")
		require.NoError(t, err)
		assert.Equal(t, "ORD-OLD-42", found.OrderID)
		assert.Equal(t, "retail-legacy", found.PartnerID)
		assert.Equal(t, "Bandung", found.Route.Origin)
		assert.Equal(t, "Semarang", found.Route.Destination)
		assert.Equal(t, 120000.0, found.ShippingCost)
		assert.Equal(t, 8, found.TotalQuantity)
		require.Len(t, found.Items, 2)
		assert.Equal(t, "Gula 1kg", found.Items[0].Name)
		assert.Equal(t, 6, found.Items[0].Quantity)
		assert.Equal(t, domain.StatusInTransit, found.Status)
	})

	t.Run("Partner listing matches legacy partner field", func(t *testing.T) {
		canonical := createTestShipment(t, "retail-mixed")
		require.NoError(t, shipments.Save(ctx, canonical))

		legacyDoc := bson.M{
			"shipmentId":   "legacy-002",
			"trackingCode": "TRK-LEGACY00002",
			"id_retail":    "retail-mixed",
			"tujuan":       "Medan",
			"nama_barang":  "Kopi 250g",
			"kuantitas":    3,
			"status":       "processing",
			"createdAt":    time.Now().UTC(),
			"updatedAt":    time.Now().UTC(),
		}
		_, err := collection.InsertOne(ctx, legacyDoc)
		require.NoError(t, err)

		found, err := shipments.FindByPartnerID(ctx, "retail-mixed", 10)
		require.NoError(t, err)
		assert.Len(t, found, 2)
		for _, s := range found {
			assert.Equal(t, "retail-mixed", s.PartnerID)
		}
	})
}

func TestShipmentRepository_Archive(t *testing.T) {
	client := setupClient(t)
	history := client.Collection(repo.CollectionShipmentHistory)
	shipments := repo.NewShipmentRepository(client.Collection(repo.CollectionShipments), history)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shipment := createTestShipment(t, "retail-7")
	require.NoError(t, shipments.Save(ctx, shipment))
	require.NoError(t, shipment.UpdateStatus(domain.StatusCompleted))
	require.NoError(t, shipments.Save(ctx, shipment))

	t.Run("Archive moves shipment to history", func(t *testing.T) {
		err := shipments.Archive(ctx, shipment)
		assert.NoError(t, err)

		_, err = shipments.FindByID(ctx, shipment.ShipmentID)
		assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

		count, err := history.CountDocuments(ctx, bson.M{"shipmentId": shipment.ShipmentID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Archive retry is idempotent", func(t *testing.T) {
		err := shipments.Archive(ctx, shipment)
		assert.NoError(t, err)

		count, err := history.CountDocuments(ctx, bson.M{"shipmentId": shipment.ShipmentID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestSubscriberRepository(t *testing.T) {
	client := setupClient(t)
	subscribers := repo.NewSubscriberRepository(client.Collection(repo.CollectionSubscribers))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := domain.NewSubscriber("https://consumer-a.example.com/hooks", []string{domain.EventShipmentStatusUpdated}, "")
	require.NoError(t, err)
	require.NoError(t, subscribers.Save(ctx, active))

	gone, err := domain.NewSubscriber("https://consumer-b.example.com/hooks", []string{domain.EventShipmentStatusUpdated}, "")
	require.NoError(t, err)
	require.NoError(t, gone.Deactivate())
	require.NoError(t, subscribers.Save(ctx, gone))

	t.Run("FindActiveByEvent excludes deactivated subscribers", func(t *testing.T) {
		found, err := subscribers.FindActiveByEvent(ctx, domain.EventShipmentStatusUpdated)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, active.ID, found[0].ID)
	})

	t.Run("FindByID returns deactivated subscribers", func(t *testing.T) {
		found, err := subscribers.FindByID(ctx, gone.ID)
		require.NoError(t, err)
		assert.False(t, found.Active)
		assert.NotNil(t, found.DeactivatedAt)
	})

	t.Run("FindActiveByURL", func(t *testing.T) {
		found, err := subscribers.FindActiveByURL(ctx, "https://consumer-a.example.com/hooks")
		require.NoError(t, err)
		assert.Equal(t, active.ID, found.ID)

		_, err = subscribers.FindActiveByURL(ctx, "https://consumer-b.example.com/hooks")
		assert.ErrorIs(t, err, domain.ErrSubscriberNotFound)
	})

	t.Run("CountActive", func(t *testing.T) {
		count, err := subscribers.CountActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("DeactivateAllByURL flips every duplicate", func(t *testing.T) {
		// Duplicate-URL documents, as the legacy writer produced them
		for i := 0; i < 2; i++ {
			dup, err := domain.NewSubscriber("https://consumer-c.example.com/hooks", []string{domain.EventShipmentStatusUpdated}, "")
			require.NoError(t, err)
			require.NoError(t, subscribers.Save(ctx, dup))
		}

		matched, err := subscribers.DeactivateAllByURL(ctx, "https://consumer-c.example.com/hooks")
		require.NoError(t, err)
		assert.Equal(t, int64(2), matched)

		_, err = subscribers.FindActiveByURL(ctx, "https://consumer-c.example.com/hooks")
		assert.ErrorIs(t, err, domain.ErrSubscriberNotFound)

		// Repeat call matches nothing
		matched, err = subscribers.DeactivateAllByURL(ctx, "https://consumer-c.example.com/hooks")
		require.NoError(t, err)
		assert.Zero(t, matched)
	})
}

func TestDeadLetterRepository(t *testing.T) {
	client := setupClient(t)
	deadLetters := repo.NewDeadLetterRepository(client.Collection(repo.CollectionDeadLetters))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shipment := createTestShipment(t, "retail-7")
	event := domain.BuildStatusEvent(shipment, domain.StatusProcessing, domain.StatusInTransit, time.Now().UTC())

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		letter := domain.NewDeadLetter(
			fmt.Sprintf("sub-%d", i),
			"https://consumer.example.com/hooks",
			event,
			"503 service unavailable",
		)
		letter.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, deadLetters.Append(ctx, letter))
	}

	t.Run("FindRecent returns newest first", func(t *testing.T) {
		found, err := deadLetters.FindRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "sub-2", found[0].SubscriberID)
		assert.Equal(t, "sub-1", found[1].SubscriberID)
		assert.True(t, found[0].Retryable)
		assert.Equal(t, event.ID, found[0].Event.ID)
	})
}

func TestRouteRepository(t *testing.T) {
	client := setupClient(t)
	routes := repo.NewRouteRepository(client.Collection(repo.CollectionRoutes))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	route, err := domain.NewRoute("Jakarta", "Surabaya", 50000, 3)
	require.NoError(t, err)
	require.NoError(t, routes.Save(ctx, route))

	t.Run("FindByLane", func(t *testing.T) {
		found, err := routes.FindByLane(ctx, "Jakarta", "Surabaya")
		require.NoError(t, err)
		assert.Equal(t, 50000.0, found.BasePrice)
		assert.Equal(t, 3, found.ETADays)
	})

	t.Run("FindByLane for unknown lane", func(t *testing.T) {
		_, err := routes.FindByLane(ctx, "Jakarta", "Makassar")
		assert.ErrorIs(t, err, domain.ErrRouteNotFound)
	})

	t.Run("Save replaces the price for an existing lane", func(t *testing.T) {
		repriced, err := domain.NewRoute("Jakarta", "Surabaya", 65000, 2)
		require.NoError(t, err)
		require.NoError(t, routes.Save(ctx, repriced))

		found, err := routes.FindByLane(ctx, "Jakarta", "Surabaya")
		require.NoError(t, err)
		assert.Equal(t, 65000.0, found.BasePrice)

		all, err := routes.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
