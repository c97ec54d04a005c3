package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/appetiteclub/epicure/cmd/utils/internal/seeding"
)

// ClearDemo removes demo customers, the bills credited to them and the seed
// tracker entries, so the next seed run starts clean.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo data cleanup...")

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	customers := db.Collection("customers")
	filter := bson.M{"created_by": seeding.DemoCreatedBy}

	var demo []struct {
		ID uuid.UUID `bson:"_id"`
	}
	cursor, err := customers.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("find demo customers: %w", err)
	}
	if err := cursor.All(ctx, &demo); err != nil {
		return fmt.Errorf("decode demo customers: %w", err)
	}

	if len(demo) > 0 {
		ids := make(bson.A, 0, len(demo))
		for _, d := range demo {
			ids = append(ids, d.ID)
		}
		billsResult, err := db.Collection("scanned_bills").DeleteMany(ctx, bson.M{"customer_id": bson.M{"$in": ids}})
		if err != nil {
			return fmt.Errorf("delete demo bills: %w", err)
		}
		logger.Info("Deleted demo scanned bills", "count", billsResult.DeletedCount)
	}

	customersResult, err := customers.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete demo customers: %w", err)
	}
	logger.Info("Deleted demo customers", "count", customersResult.DeletedCount)

	trackerResult, err := db.Collection("_seeds").DeleteMany(ctx, bson.M{"_id": bson.M{"$in": bson.A{demoSeedID, seeding.ServiceDemoSeedID}}})
	if err != nil {
		return fmt.Errorf("delete seed tracker: %w", err)
	}
	logger.Info("Cleared demo seed tracker", "deleted", trackerResult.DeletedCount)

	return nil
}
