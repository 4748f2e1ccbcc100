package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/depsentry/depsentry/pkg/analysis"
)

const (
	defaultDatabase   = "depsentry"
	reportsCollection = "reports"
	connectTimeout    = 10 * time.Second
)

// MongoStore persists reports in a MongoDB collection, one document per
// report keyed by the report's uuid in _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoConfig configures the connection.
type MongoConfig struct {
	URI      string
	Database string // defaults to "depsentry"
}

// NewMongoStore connects to MongoDB and verifies the connection with a
// ping before returning.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(reportsCollection),
	}, nil
}

// reportDocument wraps a report for storage, duplicating the id into _id
// and keeping the timestamp queryable for List.
type reportDocument struct {
	ID        string           `bson:"_id"`
	CreatedAt time.Time        `bson:"created_at"`
	Report    *analysis.Report `bson:"report"`
}

func (s *MongoStore) Save(ctx context.Context, report *analysis.Report) error {
	doc := reportDocument{ID: report.ID, CreatedAt: report.CreatedAt, Report: report}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": report.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.ID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*analysis.Report, error) {
	var doc reportDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return doc.Report, nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode report id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
