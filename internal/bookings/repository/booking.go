package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "smartdorm/internal/bookings/errors"
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
	CollectionName = "bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	// FindActiveByRoom returns the booking currently holding the room.
	FindActiveByRoom(ctx context.Context, roomNumber string) (*model.Booking, error)
	CountByRoom(ctx context.Context, roomNumber string) (int64, error)
	TransitionApproval(ctx context.Context, id string, from, to string) (*model.Booking, error)
	MarkArrived(ctx context.Context, id string, at time.Time) (*model.Booking, error)
	MarkCheckedOut(ctx context.Context, id string, at time.Time) (*model.Booking, error)
	UpdateDates(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindActiveByRoom(ctx context.Context, roomNumber string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"room_number": roomNumber,
		"$or": bson.A{
			bson.M{"approval": model.ApprovalPending},
			bson.M{"approval": model.ApprovalApproved, "actual_checkout": nil},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var booking model.Booking
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) CountByRoom(ctx context.Context, roomNumber string) (int64, error) {
	return r.Count(ctx, model.BookingFilter{RoomNumber: roomNumber})
}

func (r *mongoBookingRepository) TransitionApproval(ctx context.Context, id string, from, to string) (*model.Booking, error) {
	return r.conditionalSet(ctx, id, bson.M{"approval": from}, bson.M{"approval": to})
}

func (r *mongoBookingRepository) MarkArrived(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	return r.conditionalSet(ctx, id,
		bson.M{"approval": model.ApprovalApproved, "checkin_status": model.CheckinNotArrived},
		bson.M{"checkin_status": model.CheckinArrived, "actual_checkin": at},
	)
}

func (r *mongoBookingRepository) MarkCheckedOut(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	return r.conditionalSet(ctx, id,
		bson.M{"approval": model.ApprovalApproved, "actual_checkout": nil},
		bson.M{"actual_checkout": at},
	)
}

func (r *mongoBookingRepository) UpdateDates(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	set := bson.M{}
	if update.CheckinDate != nil {
		set["checkin_date"] = *update.CheckinDate
	}
	if update.CheckoutDate != nil {
		set["checkout_date"] = *update.CheckoutDate
	}
	return r.conditionalSet(ctx, id, bson.M{}, set)
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

// conditionalSet applies set to the booking only while it matches guard.
// A booking that exists but fails the guard yields ErrStateChanged.
func (r *mongoBookingRepository) conditionalSet(ctx context.Context, id string, guard bson.M, set bson.M) (*model.Booking, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	writeCtx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": objectID}
	for k, v := range guard {
		filter[k] = v
	}
	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(writeCtx, filter, bson.M{"$set": set}, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", bookingserrors.ErrStateChanged, id)
}

func buildFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}
	if f.Approval != "" {
		filter["approval"] = f.Approval
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
	return filter
}
