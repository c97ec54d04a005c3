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

type AdminRepo struct {
	collection *mongo.Collection
}

func NewAdminRepo(db *mongo.Database) *AdminRepo {
	return &AdminRepo{
		collection: db.Collection("admins"),
	}
}

// Grant is idempotent; an existing grant keeps its original author and time.
func (r *AdminRepo) Grant(ctx context.Context, g *loyalty.AdminGrant) error {
	if g == nil {
		return fmt.Errorf("admin grant is nil")
	}
	update := bson.M{"$setOnInsert": bson.M{
		"granted_by": g.GrantedBy,
		"granted_at": g.GrantedAt,
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": g.Mobile}, update, opts); err != nil {
		return fmt.Errorf("cannot grant admin: %w", err)
	}
	return nil
}

func (r *AdminRepo) Revoke(ctx context.Context, mobile string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": mobile}); err != nil {
		return fmt.Errorf("cannot revoke admin: %w", err)
	}
	return nil
}

func (r *AdminRepo) Get(ctx context.Context, mobile string) (*loyalty.AdminGrant, error) {
	var g loyalty.AdminGrant
	err := r.collection.FindOne(ctx, bson.M{"_id": mobile}).Decode(&g)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get admin: %w", err)
	}
	return &g, nil
}

func (r *AdminRepo) List(ctx context.Context) ([]*loyalty.AdminGrant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "granted_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list admins: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*loyalty.AdminGrant
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode admins: %w", err)
	}
	return result, nil
}
