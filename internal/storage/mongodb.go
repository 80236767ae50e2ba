// mongodb.go - MongoDB-backed extraction history

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const extractionsCollection = "extractions"

// MongoStore implements ExtractionStore on a MongoDB collection
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore connects to uri and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(dbName).Collection(extractionsCollection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "document_hash", Value: 1}, {Key: "guarantee_type", Value: 1}}},
	})
	if err != nil {
		logger.Get().Warn("failed to create extraction indexes", zap.Error(err))
	}

	logger.Get().Info("connected to MongoDB", zap.String("database", dbName))
	return &MongoStore{client: client, collection: collection, timeout: 5 * time.Second}, nil
}

// Save implements ExtractionStore
func (s *MongoStore) Save(ctx context.Context, rec *ExtractionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}
	return nil
}

// Get implements ExtractionStore
func (s *MongoStore) Get(ctx context.Context, id string) (*ExtractionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec ExtractionRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query extraction: %w", err)
	}
	return &rec, nil
}

// List implements ExtractionStore
func (s *MongoStore) List(ctx context.Context, limit int) ([]ExtractionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query extractions: %w", err)
	}
	defer cursor.Close(ctx)

	var results []ExtractionRecord
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
