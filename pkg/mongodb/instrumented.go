package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/distributor-platform/tracking-service/pkg/logging"
	"github.com/distributor-platform/tracking-service/pkg/metrics"
)

// InstrumentedClient wraps a MongoDB Client with metrics and tracing
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient creates a new instrumented MongoDB client
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		database:   c.client.config.Database,
		metrics:    c.metrics,
		logger:     c.logger,
		tracer:     c.tracer,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Client returns the underlying MongoDB client
func (c *InstrumentedClient) Client() *mongo.Client {
	return c.client.Client()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck performs a health check with tracing
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.client.config.Database),
		),
	)
	defer span.End()

	err := c.client.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// WithTransaction executes a function within a transaction with tracing
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.client.config.Database),
		),
	)
	defer span.End()

	err := c.client.WithTransaction(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// RawClient returns the underlying Client for advanced operations
func (c *InstrumentedClient) RawClient() *Client {
	return c.client
}

// InstrumentedCollection wraps a MongoDB Collection with metrics and tracing
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

func (c *InstrumentedCollection) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
}

func (c *InstrumentedCollection) recordMetrics(ctx context.Context, operation string, success bool, duration time.Duration, rowsAffected int64) {
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, success, rowsAffected)
	}
}

// InsertOne inserts a single document with instrumentation
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "insertOne")
	defer span.End()

	result, err := c.collection.InsertOne(ctx, document, opts...)
	duration := time.Since(start)

	success := err == nil
	var rowsAffected int64
	if success {
		rowsAffected = 1
	}

	c.recordMetrics(ctx, "insertOne", success, duration, rowsAffected)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	}

	return result, err
}

// FindOne finds a single document with instrumentation
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "findOne")
	defer span.End()

	result := c.collection.FindOne(ctx, filter, opts...)
	duration := time.Since(start)

	success := result.Err() == nil || result.Err() == mongo.ErrNoDocuments
	var rowsAffected int64
	if result.Err() == nil {
		rowsAffected = 1
	}

	c.recordMetrics(ctx, "findOne", success, duration, rowsAffected)

	if result.Err() != nil && result.Err() != mongo.ErrNoDocuments {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	}

	return result
}

// Find finds multiple documents with instrumentation
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "find")
	defer span.End()

	cursor, err := c.collection.Find(ctx, filter, opts...)
	duration := time.Since(start)

	success := err == nil
	c.recordMetrics(ctx, "find", success, duration, 0)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return cursor, err
}

// UpdateOne updates a single document with instrumentation
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "updateOne")
	defer span.End()

	result, err := c.collection.UpdateOne(ctx, filter, update, opts...)
	duration := time.Since(start)

	success := err == nil
	var rowsAffected int64
	if success && result != nil {
		rowsAffected = result.ModifiedCount
	}

	c.recordMetrics(ctx, "updateOne", success, duration, rowsAffected)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int64("db.rows_affected", rowsAffected),
			attribute.Int64("db.matched_count", result.MatchedCount),
		)
	}

	return result, err
}

// UpdateMany updates multiple documents with instrumentation
func (c *InstrumentedCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "updateMany")
	defer span.End()

	result, err := c.collection.UpdateMany(ctx, filter, update, opts...)
	duration := time.Since(start)

	success := err == nil
	var rowsAffected int64
	if success && result != nil {
		rowsAffected = result.ModifiedCount
	}

	c.recordMetrics(ctx, "updateMany", success, duration, rowsAffected)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int64("db.rows_affected", rowsAffected),
			attribute.Int64("db.matched_count", result.MatchedCount),
		)
	}

	return result, err
}

// DeleteOne deletes a single document with instrumentation
func (c *InstrumentedCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "deleteOne")
	defer span.End()

	result, err := c.collection.DeleteOne(ctx, filter, opts...)
	duration := time.Since(start)

	success := err == nil
	var rowsAffected int64
	if success && result != nil {
		rowsAffected = result.DeletedCount
	}

	c.recordMetrics(ctx, "deleteOne", success, duration, rowsAffected)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	}

	return result, err
}

// CountDocuments counts documents with instrumentation
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "countDocuments")
	defer span.End()

	count, err := c.collection.CountDocuments(ctx, filter, opts...)
	duration := time.Since(start)

	success := err == nil
	c.recordMetrics(ctx, "countDocuments", success, duration, count)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("db.count", count))
	}

	return count, err
}

// FindOneAndDelete finds and deletes a document with instrumentation
func (c *InstrumentedCollection) FindOneAndDelete(ctx context.Context, filter interface{}, opts ...*options.FindOneAndDeleteOptions) *mongo.SingleResult {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "findOneAndDelete")
	defer span.End()

	result := c.collection.FindOneAndDelete(ctx, filter, opts...)
	duration := time.Since(start)

	success := result.Err() == nil || result.Err() == mongo.ErrNoDocuments
	var rowsAffected int64
	if result.Err() == nil {
		rowsAffected = 1
	}

	c.recordMetrics(ctx, "findOneAndDelete", success, duration, rowsAffected)

	if result.Err() != nil && result.Err() != mongo.ErrNoDocuments {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result
}

// CreateIndex creates an index with instrumentation
func (c *InstrumentedCollection) CreateIndex(ctx context.Context, model mongo.IndexModel, opts ...*options.CreateIndexesOptions) (string, error) {
	start := time.Now()
	ctx, span := c.startSpan(ctx, "createIndex")
	defer span.End()

	name, err := c.collection.Indexes().CreateOne(ctx, model, opts...)
	duration := time.Since(start)

	success := err == nil
	c.recordMetrics(ctx, "createIndex", success, duration, 0)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.String("db.index_name", name))
	}

	return name, err
}

// Underlying returns the underlying mongo.Collection
func (c *InstrumentedCollection) Underlying() *mongo.Collection {
	return c.collection
}

// Name returns the collection name
func (c *InstrumentedCollection) Name() string {
	return c.name
}
