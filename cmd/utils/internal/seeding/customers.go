package seeding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/appetiteclub/epicure/pkg/enums/source"
)

// DemoCreatedBy tags demo customers. It matches the tag used by the loyalty
// service's own demo seed.
const DemoCreatedBy = "demo-seed"

// ServiceDemoSeedID is the tracker id of the loyalty service's demo seed.
const ServiceDemoSeedID = "2025-12-01_demo_customers"

type demoPurchase struct {
	items  []string
	source source.Source
	ago    time.Duration
}

type demoCustomer struct {
	mobile    string
	name      string
	purchases []demoPurchase
	roadmaps  []string
	badges    []string
}

// Completed roadmaps are listed explicitly; they must agree with the purchases.
var demoCustomers = []demoCustomer{
	{
		mobile: "9000000001",
		name:   "Asha",
		purchases: []demoPurchase{
			{items: []string{"Latte", "Americano"}, source: source.Sources.Scanner, ago: 72 * time.Hour},
			{items: []string{"Cappuccino Med"}, source: source.Sources.Barista, ago: 24 * time.Hour},
		},
		roadmaps: []string{"hot_drinks_explorer"},
		badges:   []string{"☕ Hot Drinks Explorer"},
	},
	{
		mobile: "9000000002",
		name:   "Rohan",
		purchases: []demoPurchase{
			{items: []string{"Cold Brew", "Iced Tea"}, source: source.Sources.Barista, ago: 48 * time.Hour},
		},
	},
	{
		mobile: "9000000003",
		name:   "Meera",
	},
}

// SeedCustomers inserts the demo customers that are not registered yet and
// returns how many were created.
func SeedCustomers(ctx context.Context, db *mongo.Database, now time.Time) (int, error) {
	collection := db.Collection("customers")

	inserted := 0
	for _, dc := range demoCustomers {
		doc, err := customerDoc(dc, now)
		if err != nil {
			return inserted, err
		}

		count, err := collection.CountDocuments(ctx, bson.M{"mobile": dc.mobile})
		if err != nil {
			return inserted, fmt.Errorf("cannot check customer %s: %w", dc.mobile, err)
		}
		if count > 0 {
			continue
		}

		if _, err := collection.InsertOne(ctx, doc); err != nil {
			return inserted, fmt.Errorf("cannot insert customer %s: %w", dc.mobile, err)
		}
		inserted++
	}
	return inserted, nil
}

func customerDoc(dc demoCustomer, now time.Time) (bson.M, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("cannot generate customer id: %w", err)
	}

	history := bson.A{}
	purchases := bson.A{}
	var last *time.Time
	for _, p := range dc.purchases {
		pid, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("cannot generate purchase id: %w", err)
		}
		ts := now.Add(-p.ago)
		history = append(history, bson.M{
			"id":        pid,
			"items":     p.items,
			"timestamp": ts,
			"source":    p.source.Code(),
		})
		for _, item := range p.items {
			purchases = append(purchases, item)
		}
		if last == nil || ts.After(*last) {
			last = &ts
		}
	}

	doc := bson.M{
		"_id":                id,
		"mobile":             dc.mobile,
		"name":               dc.name,
		"purchases":          purchases,
		"purchase_history":   history,
		"completed_roadmaps": stringsOrEmpty(dc.roadmaps),
		"badges":             stringsOrEmpty(dc.badges),
		"created_at":         now,
		"updated_at":         now,
		"is_admin":           false,
		"created_by":         DemoCreatedBy,
		"version":            int64(1),
	}
	if last != nil {
		doc["last_purchase_at"] = *last
	}
	return doc, nil
}

func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
