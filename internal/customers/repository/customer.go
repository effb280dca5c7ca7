package repository

import (
	"context"
	"errors"
	"fmt"
	customerserrors "smartdorm/internal/customers/errors"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	"smartdorm/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "customers"
)

type CustomerRepository interface {
	// Upsert creates or refreshes the customer keyed by ExternalID and
	// returns the stored document.
	Upsert(ctx context.Context, customer *model.Customer) (*model.Customer, error)
	FindByID(ctx context.Context, id string) (*model.Customer, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Customer, error)
}

type mongoCustomerRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCustomerRepository(cfg *config.Config) CustomerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCustomerRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoCustomerRepository) Upsert(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{"external_id": customer.ExternalID}
	update := bson.M{
		"$set": bson.M{
			"display_name": customer.DisplayName,
			"first_name":   customer.FirstName,
			"last_name":    customer.LastName,
			"phone":        customer.Phone,
			"email":        customer.Email,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored model.Customer
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", customerserrors.ErrDuplicate, customer.ExternalID)
		}
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}
	return &stored, nil
}

func (r *mongoCustomerRepository) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", customerserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoCustomerRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Customer, error) {
	return r.findOne(ctx, bson.M{"external_id": externalID})
}

func (r *mongoCustomerRepository) findOne(ctx context.Context, filter bson.M) (*model.Customer, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var customer model.Customer
	if err := r.collection.FindOne(ctx, filter).Decode(&customer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, customerserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return &customer, nil
}
