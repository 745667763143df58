package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/distributor-platform/tracking-service/internal/domain"
)

// SubscriberRepository persists webhook subscribers. Deactivated
// subscribers stay in the collection; every active-only query filters on
// the isActive flag instead of deleting documents.
type SubscriberRepository struct {
	collection Collection
}

// NewSubscriberRepository creates a subscriber repository
func NewSubscriberRepository(collection Collection) *SubscriberRepository {
	repo := &SubscriberRepository{collection: collection}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *SubscriberRepository) ensureIndexes(ctx context.Context) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "events", Value: 1}}},
		{Keys: bson.D{{Key: "targetUrl", Value: 1}}},
	}
	for _, model := range models {
		_, _ = r.collection.CreateIndex(ctx, model)
	}
}

// Save upserts the subscriber
func (r *SubscriberRepository) Save(ctx context.Context, subscriber *domain.Subscriber) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": subscriber.ID}
	update := bson.M{"$set": subscriber}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	return nil
}

// FindByID retrieves a subscriber regardless of active state
func (r *SubscriberRepository) FindByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	var subscriber domain.Subscriber
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&subscriber)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

// FindActiveByEvent returns active subscribers registered for an event type
func (r *SubscriberRepository) FindActiveByEvent(ctx context.Context, eventType string) ([]*domain.Subscriber, error) {
	filter := bson.M{
		"isActive": true,
		"events":   eventType,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subscribers []*domain.Subscriber
	if err := cursor.All(ctx, &subscribers); err != nil {
		return nil, err
	}
	return subscribers, nil
}

// FindActiveByURL returns the active subscriber for a target URL
func (r *SubscriberRepository) FindActiveByURL(ctx context.Context, targetURL string) (*domain.Subscriber, error) {
	filter := bson.M{
		"isActive":  true,
		"targetUrl": targetURL,
	}

	var subscriber domain.Subscriber
	err := r.collection.FindOne(ctx, filter).Decode(&subscriber)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

// DeactivateAllByURL flips every active subscriber for the URL to
// inactive in one multi-document update. Legacy writers created
// duplicate-URL documents, so the filter can match more than one.
func (r *SubscriberRepository) DeactivateAllByURL(ctx context.Context, targetURL string) (int64, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"isActive":  true,
		"targetUrl": targetURL,
	}
	update := bson.M{"$set": bson.M{
		"isActive":      false,
		"deactivatedAt": now,
		"updatedAt":     now,
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate subscribers: %w", err)
	}
	return result.MatchedCount, nil
}

// CountActive counts active subscribers
func (r *SubscriberRepository) CountActive(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"isActive": true})
}
