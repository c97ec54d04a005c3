package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
)

// ResetDB drops the loyalty database - USE WITH CAUTION
func ResetDB(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Infof("⚠️  DANGER: This will drop the loyalty database!")
	logger.Infof("⚠️  Customers, purchases, badges and admin grants are lost!")

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	logger.Info("Dropping database", "database", db.Name())
	if err := db.Drop(ctx); err != nil {
		return fmt.Errorf("drop database %s: %w", db.Name(), err)
	}

	logger.Info("Database dropped", "database", db.Name())
	return nil
}
