package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/appetiteclub/epicure/cmd/utils/internal/seeding"
)

const demoSeedID = "demo_customers_v1"

// SeedDemo inserts the demo customers once.
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo seeding process...")

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	seedsCollection := db.Collection("_seeds")
	count, err := seedsCollection.CountDocuments(ctx, bson.M{"_id": demoSeedID})
	if err != nil {
		return fmt.Errorf("check seed status: %w", err)
	}
	if count > 0 {
		logger.Info("Demo customer seeds already applied, skipping")
		return nil
	}

	inserted, err := seeding.SeedCustomers(ctx, db, time.Now())
	if err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}
	logger.Info("Demo customers created", "count", inserted)

	_, err = seedsCollection.InsertOne(ctx, bson.M{
		"_id":         demoSeedID,
		"description": "Create demo customers with purchases and earned badges",
		"applied_at":  time.Now(),
	})
	if err != nil {
		logger.Infof("⚠️  Failed to mark seed as applied: %v", err)
	}
	return nil
}
