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

// OTPRepo keeps pending login codes keyed by mobile. MongoDB removes them
// shortly after expires_at through a TTL index.
type OTPRepo struct {
	collection *mongo.Collection
}

func NewOTPRepo(db *mongo.Database) *OTPRepo {
	return &OTPRepo{
		collection: db.Collection("otp_sessions"),
	}
}

func (r *OTPRepo) Start(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("cannot create otp ttl index: %w", err)
	}
	return nil
}

func (r *OTPRepo) Put(ctx context.Context, s *loyalty.OTPSession) error {
	if s == nil {
		return fmt.Errorf("otp session is nil")
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": s.Mobile}, s, opts); err != nil {
		return fmt.Errorf("cannot store otp session: %w", err)
	}
	return nil
}

func (r *OTPRepo) Get(ctx context.Context, mobile string) (*loyalty.OTPSession, error) {
	var s loyalty.OTPSession
	err := r.collection.FindOne(ctx, bson.M{"_id": mobile}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get otp session: %w", err)
	}
	return &s, nil
}

func (r *OTPRepo) Delete(ctx context.Context, mobile string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": mobile}); err != nil {
		return fmt.Errorf("cannot delete otp session: %w", err)
	}
	return nil
}
