package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/epicure/services/loyalty/internal/loyalty"
)

// CustomerRepo stores one document per customer. The unique mobile index is
// the secondary key, so id and mobile lookups always see the same aggregate.
type CustomerRepo struct {
	collection *mongo.Collection
}

func NewCustomerRepo(db *mongo.Database) *CustomerRepo {
	return &CustomerRepo{
		collection: db.Collection("customers"),
	}
}

// Start creates the collection indexes.
func (r *CustomerRepo) Start(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "mobile", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("mobile_unique"),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("cannot create mobile index: %w", err)
	}
	return nil
}

func (r *CustomerRepo) Create(ctx context.Context, c *loyalty.Customer) error {
	if c == nil {
		return fmt.Errorf("customer is nil")
	}

	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return loyalty.ErrMobileTaken
		}
		return fmt.Errorf("cannot create customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) Get(ctx context.Context, id uuid.UUID) (*loyalty.Customer, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *CustomerRepo) GetByMobile(ctx context.Context, mobile string) (*loyalty.Customer, error) {
	return r.findOne(ctx, bson.M{"mobile": mobile})
}

func (r *CustomerRepo) List(ctx context.Context) ([]*loyalty.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list customers: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*loyalty.Customer
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode customers: %w", err)
	}
	for _, c := range result {
		c.Normalize()
	}
	return result, nil
}

// Save replaces the document only if its version still equals c.Version.
// On success c.Version is advanced.
func (r *CustomerRepo) Save(ctx context.Context, c *loyalty.Customer) error {
	if c == nil {
		return fmt.Errorf("customer is nil")
	}

	filter := bson.M{"_id": c.ID, "version": c.Version}
	if c.Version == 0 {
		// Documents written before versioning have no version field.
		filter = bson.M{
			"_id": c.ID,
			"$or": bson.A{
				bson.M{"version": 0},
				bson.M{"version": bson.M{"$exists": false}},
			},
		}
	}

	expected := c.Version
	c.Version = expected + 1

	result, err := r.collection.ReplaceOne(ctx, filter, c)
	if err != nil {
		c.Version = expected
		return fmt.Errorf("cannot update customer: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	c.Version = expected
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": c.ID})
	if err != nil {
		return fmt.Errorf("cannot check customer: %w", err)
	}
	if count == 0 {
		return loyalty.ErrNotFound
	}
	return loyalty.ErrVersionConflict
}

func (r *CustomerRepo) findOne(ctx context.Context, filter bson.M) (*loyalty.Customer, error) {
	var c loyalty.Customer
	err := r.collection.FindOne(ctx, filter).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get customer: %w", err)
	}
	return &c, nil
}
