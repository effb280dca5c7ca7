package repository

import (
	"context"
	"errors"
	"fmt"
	checkoutserrors "smartdorm/internal/checkouts/errors"
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
	CollectionName = "checkouts"
)

type CheckoutRepository interface {
	// Create fails with ErrAlreadyPending while the booking has another
	// REQUESTED checkout.
	Create(ctx context.Context, checkout *model.Checkout) error
	FindByID(ctx context.Context, id string) (*model.Checkout, error)
	FindPendingByBooking(ctx context.Context, bookingID string) (*model.Checkout, error)
	FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Checkout, error)
	Count(ctx context.Context, status string) (int64, error)
	// Complete moves a REQUESTED checkout to COMPLETED.
	Complete(ctx context.Context, id string, at time.Time, refund float64) (*model.Checkout, error)
}

type mongoCheckoutRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCheckoutRepository(cfg *config.Config) CheckoutRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCheckoutRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoCheckoutRepository) Create(ctx context.Context, checkout *model.Checkout) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	checkout.CreatedAt = now
	checkout.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, checkout)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", checkoutserrors.ErrAlreadyPending, checkout.BookingID)
		}
		return fmt.Errorf("failed to create checkout: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		checkout.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCheckoutRepository) FindByID(ctx context.Context, id string) (*model.Checkout, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", checkoutserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoCheckoutRepository) FindPendingByBooking(ctx context.Context, bookingID string) (*model.Checkout, error) {
	return r.findOne(ctx, bson.M{"booking_id": bookingID, "status": model.CheckoutRequested})
}

func (r *mongoCheckoutRepository) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Checkout, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, statusFilter(status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkouts: %w", err)
	}
	defer cursor.Close(ctx)

	var checkouts []*model.Checkout
	if err = cursor.All(ctx, &checkouts); err != nil {
		return nil, fmt.Errorf("failed to decode checkouts: %w", err)
	}
	return checkouts, nil
}

func (r *mongoCheckoutRepository) Count(ctx context.Context, status string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, statusFilter(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count checkouts: %w", err)
	}
	return count, nil
}

func (r *mongoCheckoutRepository) Complete(ctx context.Context, id string, at time.Time, refund float64) (*model.Checkout, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", checkoutserrors.ErrInvalidID, id)
	}

	writeCtx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": objectID, "status": model.CheckoutRequested}
	update := bson.M{"$set": bson.M{
		"status":          model.CheckoutCompleted,
		"actual_checkout": at,
		"refund":          refund,
		"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var checkout model.Checkout
	err = r.collection.FindOneAndUpdate(writeCtx, filter, update, opts).Decode(&checkout)
	if err == nil {
		return &checkout, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to complete checkout: %w", err)
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", checkoutserrors.ErrStateChanged, id)
}

func (r *mongoCheckoutRepository) findOne(ctx context.Context, filter bson.M) (*model.Checkout, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var checkout model.Checkout
	if err := r.collection.FindOne(ctx, filter).Decode(&checkout); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, checkoutserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	return &checkout, nil
}

func statusFilter(status string) bson.M {
	if status == "" {
		return bson.M{}
	}
	return bson.M{"status": status}
}
