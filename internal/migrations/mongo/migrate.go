package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medisched/internal/migrations/mongo/validators"
	"medisched/pkg/logger"
)

type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

var (
	StaffIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "location_id", Value: 1}, {Key: "role", Value: 1}}},
	}

	ServiceIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "name", Value: 1}}},
	}

	WeeklyScheduleIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "staff_id", Value: 1},
			{Key: "is_active", Value: 1},
			{Key: "valid_from", Value: 1},
		}},
	}

	LocationHoursIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "location_id", Value: 1}}},
	}

	LocationClosureIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "location_id", Value: 1},
			{Key: "starts_at", Value: 1},
			{Key: "ends_at", Value: 1},
		}},
	}

	AbsenceIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "staff_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "starts_at", Value: 1},
		}},
	}

	BookingIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "staff_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "resources.type", Value: 1},
			{Key: "resources.id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "patient_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
	}

	ReservationLockIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

// Collections lists every collection the engine reads or writes.
func Collections() []CollectionDef {
	return []CollectionDef{
		{Name: "Staff", Indexes: StaffIndexes, Validator: validators.StaffValidator},
		{Name: "Locations", Validator: validators.LocationValidator},
		{Name: "Services", Indexes: ServiceIndexes, Validator: validators.ServiceValidator},
		{Name: "Weekly_schedules", Indexes: WeeklyScheduleIndexes, Validator: validators.WeeklyScheduleValidator},
		{Name: "Location_hours", Indexes: LocationHoursIndexes, Validator: validators.LocationHoursValidator},
		{Name: "Location_closures", Indexes: LocationClosureIndexes, Validator: validators.LocationClosureValidator},
		{Name: "Absences", Indexes: AbsenceIndexes, Validator: validators.AbsenceValidator},
		{Name: "Bookings", Indexes: BookingIndexes, Validator: validators.BookingValidator},
		{Name: "Reservation_locks", Indexes: ReservationLockIndexes, Validator: validators.ReservationLockValidator},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	defs := Collections()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	for _, def := range defs {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully", "collections", len(defs))
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
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
