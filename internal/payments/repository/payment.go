package repository

import (
	"context"
	"errors"
	"fmt"
	paymentserrors "smartdorm/internal/payments/errors"
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
	CollectionName = "payments"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByBill(ctx context.Context, billID string) ([]*model.Payment, error)
	// FindLatestByBill returns the newest payment of the bill in status.
	FindLatestByBill(ctx context.Context, billID string, status string) (*model.Payment, error)
	CountByBill(ctx context.Context, billID string) (int64, error)
	Review(ctx context.Context, id string, status string, at time.Time) (*model.Payment, error)
}

type mongoPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPaymentRepository(cfg *config.Config) PaymentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPaymentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, payment)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		payment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoPaymentRepository) FindByBill(ctx context.Context, billID string) ([]*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"bill_id": billID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	defer cursor.Close(ctx)

	var payments []*model.Payment
	if err = cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

func (r *mongoPaymentRepository) FindLatestByBill(ctx context.Context, billID string, status string) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "submitted_at", Value: -1}})

	var payment model.Payment
	err := r.collection.FindOne(ctx, bson.M{"bill_id": billID, "status": status}, opts).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

func (r *mongoPaymentRepository) CountByBill(ctx context.Context, billID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"bill_id": billID})
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *mongoPaymentRepository) Review(ctx context.Context, id string, status string, at time.Time) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", paymentserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.PaymentSubmitted}
	update := bson.M{"$set": bson.M{"status": status, "reviewed_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var payment model.Payment
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to review payment: %w", err)
	}
	return &payment, nil
}
