package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/distributor-platform/tracking-service/internal/domain"
)

// DeadLetterRepository is the append-only sink for exhausted webhook
// deliveries
type DeadLetterRepository struct {
	collection Collection
}

// NewDeadLetterRepository creates a dead-letter repository
func NewDeadLetterRepository(collection Collection) *DeadLetterRepository {
	repo := &DeadLetterRepository{collection: collection}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *DeadLetterRepository) ensureIndexes(ctx context.Context) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "subscriberId", Value: 1}}},
	}
	for _, model := range models {
		_, _ = r.collection.CreateIndex(ctx, model)
	}
}

// Append records an exhausted delivery. Dead letters are never updated
// or deleted by the service.
func (r *DeadLetterRepository) Append(ctx context.Context, letter *domain.DeadLetter) error {
	if _, err := r.collection.InsertOne(ctx, letter); err != nil {
		return fmt.Errorf("failed to append dead letter: %w", err)
	}
	return nil
}

// FindRecent returns the newest dead letters first
func (r *DeadLetterRepository) FindRecent(ctx context.Context, limit int64) ([]*domain.DeadLetter, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var letters []*domain.DeadLetter
	if err := cursor.All(ctx, &letters); err != nil {
		return nil, err
	}
	return letters, nil
}
