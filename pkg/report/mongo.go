package report

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 10 * time.Second

// MongoConfig configures a [MongoSink].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoSink stores one document per run, keyed by the run ID.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to MongoDB and verifies the connection with a ping.
func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoSinkFromClient(client, cfg.Database, cfg.Collection), nil
}

// NewMongoSinkFromClient wraps an existing client.
func NewMongoSinkFromClient(client *mongo.Client, database, collection string) *MongoSink {
	return &MongoSink{client: client, coll: client.Database(database).Collection(collection)}
}

func (s *MongoSink) Write(ctx context.Context, r *Report) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Sink = (*MongoSink)(nil)
