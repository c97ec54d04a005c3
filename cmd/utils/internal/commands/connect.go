package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultDatabase = "epicure_loyalty"

// DatabaseName returns the loyalty database the commands operate on.
func DatabaseName(config *apt.Config) string {
	return config.GetStringOrDef("mongo.name", defaultDatabase)
}

// connect opens the loyalty database. The caller disconnects the client.
func connect(ctx context.Context, config *apt.Config, logger apt.Logger) (*mongo.Client, *mongo.Database, error) {
	mongoURL := config.GetStringOrDef("mongo.url", "mongodb://localhost:27017")
	dbName := DatabaseName(config)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", dbName)
	return client, client.Database(dbName), nil
}
