package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/distributor-platform/tracking-service/internal/domain"
)

// ShipmentRepository persists shipments in the active collection and moves
// completed ones into a history collection. Reads decode through
// domain.ShipmentRecord so documents written by the previous system, with
// their legacy field names, normalize transparently.
type ShipmentRepository struct {
	shipments Collection
	history   Collection
}

// NewShipmentRepository creates a shipment repository
func NewShipmentRepository(shipments, history Collection) *ShipmentRepository {
	repo := &ShipmentRepository{
		shipments: shipments,
		history:   history,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *ShipmentRepository) ensureIndexes(ctx context.Context) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "shipmentId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "trackingCode", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "partnerId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	for _, model := range models {
		_, _ = r.shipments.CreateIndex(ctx, model)
	}
	_, _ = r.history.CreateIndex(ctx, mongo.IndexModel{Keys: bson.D{{Key: "shipmentId", Value: 1}}})
}

// Save upserts the shipment in its canonical document shape
func (r *ShipmentRepository) Save(ctx context.Context, shipment *domain.Shipment) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shipmentId": shipment.ShipmentID}
	update := bson.M{"$set": shipment}

	if _, err := r.shipments.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save shipment: %w", err)
	}

	shipment.ClearDomainEvents()
	return nil
}

// FindByID retrieves a shipment by its identifier
func (r *ShipmentRepository) FindByID(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	return r.findOne(ctx, bson.M{"shipmentId": shipmentID})
}

// FindByTrackingCode retrieves a shipment by its tracking code
func (r *ShipmentRepository) FindByTrackingCode(ctx context.Context, trackingCode string) (*domain.Shipment, error) {
	return r.findOne(ctx, bson.M{"trackingCode": trackingCode})
}

// FindByPartnerID lists a partner's active shipments
func (r *ShipmentRepository) FindByPartnerID(ctx context.Context, partnerID string, limit int64) ([]*domain.Shipment, error) {
	// Legacy documents key the partner as id_retail
	filter := bson.M{"$or": []bson.M{
		{"partnerId": partnerID},
		{"id_retail": partnerID},
	}}
	return r.findMany(ctx, filter, limit)
}

// FindAll lists active shipments
func (r *ShipmentRepository) FindAll(ctx context.Context, limit int64) ([]*domain.Shipment, error) {
	return r.findMany(ctx, bson.M{}, limit)
}

// Archive copies a completed shipment into the history collection and
// removes it from the active set. The history write is an upsert so a
// retried archive after a partial failure stays idempotent.
func (r *ShipmentRepository) Archive(ctx context.Context, shipment *domain.Shipment) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shipmentId": shipment.ShipmentID}

	if _, err := r.history.UpdateOne(ctx, filter, bson.M{"$set": shipment}, opts); err != nil {
		return fmt.Errorf("failed to write shipment history: %w", err)
	}

	if _, err := r.shipments.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to remove archived shipment: %w", err)
	}

	return nil
}

func (r *ShipmentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Shipment, error) {
	var record domain.ShipmentRecord
	err := r.shipments.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrShipmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.Normalize(), nil
}

func (r *ShipmentRepository) findMany(ctx context.Context, filter bson.M, limit int64) ([]*domain.Shipment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.shipments.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.ShipmentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	shipments := make([]*domain.Shipment, 0, len(records))
	for _, record := range records {
		shipments = append(shipments, record.Normalize())
	}
	return shipments, nil
}
