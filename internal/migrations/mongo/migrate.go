package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	billingrepo "smartdorm/internal/billing/repository"
	bookingrepo "smartdorm/internal/bookings/repository"
	checkoutrepo "smartdorm/internal/checkouts/repository"
	customerrepo "smartdorm/internal/customers/repository"
	"smartdorm/internal/migrations/mongo/validators"
	paymentrepo "smartdorm/internal/payments/repository"
	roomrepo "smartdorm/internal/rooms/repository"
	"smartdorm/pkg/logger"
)

var (
	RoomsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	CustomersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "room_number", Value: 1},
			{Key: "approval", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "external_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "customer_id", Value: 1}}},
	}

	// One bill per room and month.
	BillsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "room_number", Value: 1},
				{Key: "period", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "due_date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "external_id", Value: 1},
			{Key: "period", Value: -1},
		}},
	}

	PaymentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "bill_id", Value: 1},
			{Key: "submitted_at", Value: -1},
		}},
	}

	// At most one open checkout per booking.
	CheckoutsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "REQUESTED"}),
		},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}
)

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		roomrepo.CollectionName:     {Indexes: RoomsIndexes, Validator: validators.RoomValidator},
		customerrepo.CollectionName: {Indexes: CustomersIndexes, Validator: validators.CustomerValidator},
		bookingrepo.CollectionName:  {Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		billingrepo.CollectionName:  {Indexes: BillsIndexes, Validator: validators.BillValidator},
		paymentrepo.CollectionName:  {Indexes: PaymentsIndexes, Validator: validators.PaymentValidator},
		checkoutrepo.CollectionName: {Indexes: CheckoutsIndexes, Validator: validators.CheckoutValidator},
	}
}

// RunMigration creates every collection with its schema validator and
// indexes. It is safe to run repeatedly; existing collections get their
// validator refreshed.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Debug("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
