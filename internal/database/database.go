// Package database opens the Mongo connection backing the document store.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/moody-app/moody/internal/config"
	"github.com/moody-app/moody/internal/models"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// DB is an open Mongo connection and the store built on it.
type DB struct {
	Client *mongo.Client
	Docs   *docstore.Mongo
}

// Connect dials Mongo, verifies the primary answers and ensures the
// sub-collection indexes exist.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("moody").
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	docs := docstore.NewMongo(client.Database(cfg.Database))
	if err := docs.EnsureIndexes(ctx, models.MemoriesCollection, models.InsightsCollection); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	if logger != nil {
		logger.Info("mongo connected", zap.String("database", cfg.Database))
	}
	return &DB{Client: client, Docs: docs}, nil
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}
