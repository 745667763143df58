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

// RouteRepository persists priced lanes
type RouteRepository struct {
	collection Collection
}

// NewRouteRepository creates a route repository
func NewRouteRepository(collection Collection) *RouteRepository {
	repo := &RouteRepository{collection: collection}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *RouteRepository) ensureIndexes(ctx context.Context) {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "origin", Value: 1}, {Key: "destination", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = r.collection.CreateIndex(ctx, model)
}

// Save upserts the lane keyed by origin and destination
func (r *RouteRepository) Save(ctx context.Context, route *domain.Route) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"origin": route.Origin, "destination": route.Destination}
	update := bson.M{"$set": route}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save route: %w", err)
	}
	return nil
}

// FindByLane retrieves the priced lane for an origin/destination pair
func (r *RouteRepository) FindByLane(ctx context.Context, origin, destination string) (*domain.Route, error) {
	var route domain.Route
	err := r.collection.FindOne(ctx, bson.M{"origin": origin, "destination": destination}).Decode(&route)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRouteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

// FindAll lists every priced lane
func (r *RouteRepository) FindAll(ctx context.Context) ([]*domain.Route, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "origin", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var routes []*domain.Route
	if err := cursor.All(ctx, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}
