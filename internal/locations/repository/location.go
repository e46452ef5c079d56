package repository

import (
	"context"
	"fmt"
	locationerrors "medisched/internal/locations/errors"
	"medisched/pkg/config"
	"medisched/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	HoursCollectionName   = "Location_hours"
	ClosureCollectionName = "Location_closures"
)

type LocationRepository interface {
	CreateHours(ctx context.Context, h *model.LocationHours) error
	FindHours(ctx context.Context, locationID string) ([]*model.LocationHours, error)
	DeleteHours(ctx context.Context, locationID, id string) error
	CreateClosure(ctx context.Context, c *model.LocationClosure) error
	// FindClosures returns closures of the location overlapping [start, end).
	FindClosures(ctx context.Context, locationID string, start, end time.Time) ([]*model.LocationClosure, error)
	DeleteClosure(ctx context.Context, locationID, id string) error
}

type mongoLocationRepository struct {
	cfg      *config.Config
	hours    *mongo.Collection
	closures *mongo.Collection
}

func NewMongoLocationRepository(cfg *config.Config) LocationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLocationRepository{
		cfg:      cfg,
		hours:    db.Collection(HoursCollectionName),
		closures: db.Collection(ClosureCollectionName),
	}
}

func (r *mongoLocationRepository) CreateHours(ctx context.Context, h *model.LocationHours) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.hours.InsertOne(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to create location hours: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		h.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLocationRepository) FindHours(ctx context.Context, locationID string) ([]*model.LocationHours, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.hours.Find(ctx, bson.M{"location_id": locationID})
	if err != nil {
		return nil, fmt.Errorf("failed to find location hours: %w", err)
	}
	defer cursor.Close(ctx)

	var hours []*model.LocationHours
	if err := cursor.All(ctx, &hours); err != nil {
		return nil, fmt.Errorf("failed to decode location hours: %w", err)
	}
	return hours, nil
}

func (r *mongoLocationRepository) DeleteHours(ctx context.Context, locationID, id string) error {
	return r.deleteOne(ctx, r.hours, locationID, id)
}

func (r *mongoLocationRepository) CreateClosure(ctx context.Context, c *model.LocationClosure) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.closures.InsertOne(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to create location closure: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		c.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLocationRepository) FindClosures(ctx context.Context, locationID string, start, end time.Time) ([]*model.LocationClosure, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"location_id": locationID,
		"starts_at":   bson.M{"$lt": end},
		"ends_at":     bson.M{"$gt": start},
	}
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})

	cursor, err := r.closures.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find location closures: %w", err)
	}
	defer cursor.Close(ctx)

	var closures []*model.LocationClosure
	if err := cursor.All(ctx, &closures); err != nil {
		return nil, fmt.Errorf("failed to decode location closures: %w", err)
	}
	return closures, nil
}

func (r *mongoLocationRepository) DeleteClosure(ctx context.Context, locationID, id string) error {
	return r.deleteOne(ctx, r.closures, locationID, id)
}

func (r *mongoLocationRepository) deleteOne(ctx context.Context, coll *mongo.Collection, locationID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", locationerrors.ErrInvalidID, id)
	}

	result, err := coll.DeleteOne(ctx, bson.M{"_id": objectID, "location_id": locationID})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", coll.Name(), err)
	}
	if result.DeletedCount == 0 {
		return locationerrors.ErrNotFound
	}
	return nil
}

