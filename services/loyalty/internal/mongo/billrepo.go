package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/epicure/services/loyalty/internal/loyalty"
)

// BillRepo stores scanned bill markers keyed by bill hash, so two concurrent
// registrations of one hash cannot both succeed.
type BillRepo struct {
	collection *mongo.Collection
}

func NewBillRepo(db *mongo.Database) *BillRepo {
	return &BillRepo{
		collection: db.Collection("scanned_bills"),
	}
}

func (r *BillRepo) Start(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "customer_id", Value: 1}},
		Options: options.Index().SetName("customer_id"),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("cannot create customer_id index: %w", err)
	}
	return nil
}

func (r *BillRepo) Register(ctx context.Context, b *loyalty.ScannedBill) error {
	if b == nil {
		return fmt.Errorf("scanned bill is nil")
	}
	if _, err := r.collection.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return loyalty.ErrDuplicateBill
		}
		return fmt.Errorf("cannot register bill: %w", err)
	}
	return nil
}

func (r *BillRepo) Get(ctx context.Context, billHash string) (*loyalty.ScannedBill, error) {
	var b loyalty.ScannedBill
	err := r.collection.FindOne(ctx, bson.M{"_id": billHash}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get bill: %w", err)
	}
	return &b, nil
}

func (r *BillRepo) Release(ctx context.Context, billHash string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": billHash}); err != nil {
		return fmt.Errorf("cannot release bill: %w", err)
	}
	return nil
}
