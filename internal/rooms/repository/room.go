package repository

import (
	"context"
	"errors"
	"fmt"
	roomserrors "smartdorm/internal/rooms/errors"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	"smartdorm/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "rooms"
)

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByNumber(ctx context.Context, number string) (*model.Room, error)
	FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Room, error)
	Count(ctx context.Context, status string) (int64, error)
	Update(ctx context.Context, number string, update *model.RoomUpdate) (*model.Room, error)
	Delete(ctx context.Context, number string) error
	// SetStatus writes status unconditionally and returns the stored room.
	SetStatus(ctx context.Context, number string, status string) (*model.Room, error)
	// CompareAndSetStatus moves the room from one status to another only if
	// it is currently in from. A room in any other status yields
	// ErrUnavailable.
	CompareAndSetStatus(ctx context.Context, number string, from, to string) (*model.Room, error)
}

type mongoRoomRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRoomRepository(cfg *config.Config) RoomRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	room.CreatedAt = now
	room.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", roomserrors.ErrDuplicate, room.Number)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *mongoRoomRepository) FindByNumber(ctx context.Context, number string) (*model.Room, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var room model.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": number}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, roomserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

func (r *mongoRoomRepository) FindAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Room, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, statusFilter(status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err = cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

func (r *mongoRoomRepository) Count(ctx context.Context, status string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, statusFilter(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count, nil
}

func (r *mongoRoomRepository) Update(ctx context.Context, number string, update *model.RoomUpdate) (*model.Room, error) {
	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if update.Size != nil {
		set["size"] = *update.Size
	}
	if update.Rent != nil {
		set["rent"] = *update.Rent
	}
	if update.Deposit != nil {
		set["deposit"] = *update.Deposit
	}
	if update.BookingFee != nil {
		set["booking_fee"] = *update.BookingFee
	}

	return r.findOneAndSet(ctx, bson.M{"_id": number}, set)
}

func (r *mongoRoomRepository) Delete(ctx context.Context, number string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": number})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if result.DeletedCount == 0 {
		return roomserrors.ErrNotFound
	}
	return nil
}

func (r *mongoRoomRepository) SetStatus(ctx context.Context, number string, status string) (*model.Room, error) {
	return r.findOneAndSet(ctx, bson.M{"_id": number}, bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	})
}

func (r *mongoRoomRepository) CompareAndSetStatus(ctx context.Context, number string, from, to string) (*model.Room, error) {
	room, err := r.findOneAndSet(ctx, bson.M{"_id": number, "status": from}, bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	})
	if !errors.Is(err, roomserrors.ErrNotFound) {
		return room, err
	}

	// Nothing matched: either the room is missing or it is in another status.
	if _, err := r.FindByNumber(ctx, number); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", roomserrors.ErrUnavailable, number)
}

func (r *mongoRoomRepository) findOneAndSet(ctx context.Context, filter bson.M, set bson.M) (*model.Room, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room model.Room
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, roomserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	return &room, nil
}

func statusFilter(status string) bson.M {
	if status == "" {
		return bson.M{}
	}
	return bson.M{"status": status}
}
