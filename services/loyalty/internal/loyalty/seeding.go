package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/appetiteclub/epicure/pkg/enums/source"
	"go.mongodb.org/mongo-driver/mongo"
)

// DemoCreatedBy tags customers created by demo seeding so they can be cleared.
const DemoCreatedBy = "demo-seed"

type demoCustomer struct {
	mobile    string
	name      string
	purchases []PurchaseInput
}

var demoCustomers = []demoCustomer{
	{
		mobile: "9000000001",
		name:   "Asha",
		purchases: []PurchaseInput{
			{Items: []string{"Latte", "Americano"}, Source: source.Sources.Scanner.Code()},
			{Items: []string{"Cappuccino Med"}, Source: source.Sources.Barista.Code()},
		},
	},
	{
		mobile: "9000000002",
		name:   "Rohan",
		purchases: []PurchaseInput{
			{Items: []string{"Cold Brew", "Iced Tea"}, Source: source.Sources.Barista.Code()},
		},
	},
	{
		mobile: "9000000003",
		name:   "Meera",
	},
}

// Seeds returns the seeds of the loyalty service. Demo customers are only
// included when demo is set.
func Seeds(repos Repos, settings Settings, demo bool) []seed.Seed {
	seeds := []seed.Seed{
		{
			ID:          "2025-12-01_master_admin",
			Description: "Grant admin rights to the master admin mobile",
			Run: func(ctx context.Context) error {
				return seedMasterAdmin(ctx, repos.AdminRepo, settings)
			},
		},
	}
	if demo {
		seeds = append(seeds, seed.Seed{
			ID:          "2025-12-01_demo_customers",
			Description: "Create demo customers with purchases and earned badges",
			Run: func(ctx context.Context) error {
				return seedDemoCustomers(ctx, repos.CustomerRepo)
			},
		})
	}
	return seeds
}

func seedMasterAdmin(ctx context.Context, repo AdminRepo, settings Settings) error {
	if repo == nil {
		return errors.New("admin repository is required")
	}
	existing, err := repo.Get(ctx, settings.MasterAdminMobile)
	if err != nil {
		return fmt.Errorf("lookup master admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	return repo.Grant(ctx, &AdminGrant{
		Mobile:    settings.MasterAdminMobile,
		GrantedBy: "system",
		GrantedAt: time.Now(),
	})
}

func seedDemoCustomers(ctx context.Context, repo CustomerRepo) error {
	if repo == nil {
		return errors.New("customer repository is required")
	}
	defs := Roadmaps()
	for _, dc := range demoCustomers {
		c := NewCustomer(dc.mobile, dc.name)
		c.CreatedBy = DemoCreatedBy
		for _, p := range dc.purchases {
			if _, _, err := RecordPurchase(c, p, time.Now()); err != nil {
				return fmt.Errorf("demo purchase for %s: %w", dc.mobile, err)
			}
		}
		Evaluate(c, defs)

		if err := repo.Create(ctx, c); err != nil {
			if errors.Is(err, ErrMobileTaken) {
				continue
			}
			return fmt.Errorf("create demo customer %s: %w", dc.mobile, err)
		}
	}
	return nil
}

// SeedingFunc returns a function for running seeds during service startup.
func SeedingFunc(appName string, dbFn func() *mongo.Database, repos Repos, settings Settings, demo bool, logger apt.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Info("Applying loyalty service database seeds...")
		db := dbFn()
		if db == nil {
			return errors.New("database is required for seeding")
		}
		tracker := seed.NewMongoTracker(db)
		if err := seed.Apply(ctx, tracker, Seeds(repos, settings, demo), appName); err != nil {
			return fmt.Errorf("apply seeds: %w", err)
		}
		logger.Info("Loyalty service database seeds applied successfully")
		return nil
	}
}
