package repository

import (
	"context"
	"errors"
	"fmt"
	billingerrors "smartdorm/internal/billing/errors"
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
	CollectionName = "bills"
)

type BillRepository interface {
	// Create fails with ErrDuplicateBill when the room already has a bill
	// for the period.
	Create(ctx context.Context, bill *model.Bill) error
	FindByID(ctx context.Context, id string) (*model.Bill, error)
	FindByRoomAndPeriod(ctx context.Context, roomNumber string, period time.Time) (*model.Bill, error)
	// FindLatestBefore returns the most recent bill of the room issued for
	// a period earlier than period.
	FindLatestBefore(ctx context.Context, roomNumber string, period time.Time) (*model.Bill, error)
	FindAll(ctx context.Context, filter model.BillFilter, limit int, offset int64) ([]*model.Bill, error)
	Count(ctx context.Context, filter model.BillFilter) (int64, error)
	// FindOverdue returns every UNPAID bill due strictly before now.
	FindOverdue(ctx context.Context, now time.Time) ([]*model.Bill, error)
	CountByRoom(ctx context.Context, roomNumber string) (int64, error)
	TransitionStatus(ctx context.Context, id string, from, to string, paidAt *time.Time) (*model.Bill, error)
	// ApplyOverdue writes the accrual if the bill is still UNPAID and, when
	// notNotifiedSince is set, was not notified at or after that instant.
	// It reports whether the bill was updated.
	ApplyOverdue(ctx context.Context, id string, update model.OverdueUpdate, notNotifiedSince *time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type mongoBillRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBillRepository(cfg *config.Config) BillRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBillRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBillRepository) Create(ctx context.Context, bill *model.Bill) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	bill.CreatedAt = now
	bill.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, bill)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s %s", billingerrors.ErrDuplicateBill, bill.RoomNumber, bill.Period.Format("2006-01"))
		}
		return fmt.Errorf("failed to create bill: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		bill.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBillRepository) FindByID(ctx context.Context, id string) (*model.Bill, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID}, nil)
}

func (r *mongoBillRepository) FindByRoomAndPeriod(ctx context.Context, roomNumber string, period time.Time) (*model.Bill, error) {
	return r.findOne(ctx, bson.M{"room_number": roomNumber, "period": period}, nil)
}

func (r *mongoBillRepository) FindLatestBefore(ctx context.Context, roomNumber string, period time.Time) (*model.Bill, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "period", Value: -1}})
	return r.findOne(ctx, bson.M{"room_number": roomNumber, "period": bson.M{"$lt": period}}, opts)
}

func (r *mongoBillRepository) FindAll(ctx context.Context, filter model.BillFilter, limit int, offset int64) ([]*model.Bill, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "period", Value: -1}, {Key: "room_number", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, buildFilter(filter), opts)
}

func (r *mongoBillRepository) Count(ctx context.Context, filter model.BillFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return count, nil
}

func (r *mongoBillRepository) FindOverdue(ctx context.Context, now time.Time) ([]*model.Bill, error) {
	filter := bson.M{
		"status":   model.BillUnpaid,
		"due_date": bson.M{"$lt": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoBillRepository) CountByRoom(ctx context.Context, roomNumber string) (int64, error) {
	return r.Count(ctx, model.BillFilter{RoomNumber: roomNumber})
}

func (r *mongoBillRepository) TransitionStatus(ctx context.Context, id string, from, to string, paidAt *time.Time) (*model.Bill, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}

	set := bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}
	update := bson.M{"$set": set}
	if paidAt != nil {
		set["paid_at"] = *paidAt
	} else {
		update["$unset"] = bson.M{"paid_at": ""}
	}

	writeCtx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var bill model.Bill
	err = r.collection.FindOneAndUpdate(writeCtx, bson.M{"_id": objectID, "status": from}, update, opts).Decode(&bill)
	if err == nil {
		return &bill, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update bill status: %w", err)
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", billingerrors.ErrStateChanged, id)
}

func (r *mongoBillRepository) ApplyOverdue(ctx context.Context, id string, update model.OverdueUpdate, notNotifiedSince *time.Time) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.BillUnpaid}
	if notNotifiedSince != nil {
		filter["$or"] = bson.A{
			bson.M{"last_overdue_notify_at": nil},
			bson.M{"last_overdue_notify_at": bson.M{"$lt": *notNotifiedSince}},
		}
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"overdue_days":           update.Days,
			"fine":                   update.Fine,
			"total":                  update.Total,
			"last_overdue_notify_at": update.NotifiedAt,
			"updated_at":             time.Now().UTC().Truncate(time.Millisecond),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply overdue fine: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoBillRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if result.DeletedCount == 0 {
		return billingerrors.ErrNotFound
	}
	return nil
}

func (r *mongoBillRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*model.Bill, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if opts == nil {
		opts = options.FindOne()
	}

	var bill model.Bill
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&bill); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, billingerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find bill: %w", err)
	}
	return &bill, nil
}

func (r *mongoBillRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Bill, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bills: %w", err)
	}
	defer cursor.Close(ctx)

	var bills []*model.Bill
	if err = cursor.All(ctx, &bills); err != nil {
		return nil, fmt.Errorf("failed to decode bills: %w", err)
	}
	return bills, nil
}

func buildFilter(f model.BillFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.RoomNumber != "" {
		filter["room_number"] = f.RoomNumber
	}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.ExternalID != "" {
		filter["external_id"] = f.ExternalID
	}
	if f.Period != nil {
		filter["period"] = *f.Period
	}
	return filter
}
