package repository

import (
	"context"
	"errors"
	"fmt"
	directoryerrors "medisched/internal/directory/errors"
	"medisched/pkg/config"
	"medisched/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	StaffCollectionName    = "Staff"
	LocationCollectionName = "Locations"
	ServiceCollectionName  = "Services"
)

type DirectoryRepository interface {
	CreateStaff(ctx context.Context, s *model.Staff) error
	FindStaff(ctx context.Context, id string) (*model.Staff, error)
	FindStaffByIDs(ctx context.Context, ids []string) ([]*model.Staff, error)
	CreateLocation(ctx context.Context, l *model.Location) error
	FindLocation(ctx context.Context, id string) (*model.Location, error)
	CreateService(ctx context.Context, s *model.ServiceDefinition) error
	FindService(ctx context.Context, id string) (*model.ServiceDefinition, error)
}

type mongoDirectoryRepository struct {
	cfg       *config.Config
	staff     *mongo.Collection
	locations *mongo.Collection
	services  *mongo.Collection
}

func NewMongoDirectoryRepository(cfg *config.Config) DirectoryRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDirectoryRepository{
		cfg:       cfg,
		staff:     db.Collection(StaffCollectionName),
		locations: db.Collection(LocationCollectionName),
		services:  db.Collection(ServiceCollectionName),
	}
}

func (r *mongoDirectoryRepository) insert(ctx context.Context, coll *mongo.Collection, doc any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", coll.Name(), err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return "", nil
}

func (r *mongoDirectoryRepository) findOne(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", directoryerrors.ErrInvalidID, id)
	}
	if err := coll.FindOne(ctx, bson.M{"_id": objectID}).Decode(out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return directoryerrors.ErrNotFound
		}
		return fmt.Errorf("failed to find in %s: %w", coll.Name(), err)
	}
	return nil
}

func (r *mongoDirectoryRepository) CreateStaff(ctx context.Context, s *model.Staff) error {
	id, err := r.insert(ctx, r.staff, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *mongoDirectoryRepository) FindStaff(ctx context.Context, id string) (*model.Staff, error) {
	var s model.Staff
	if err := r.findOne(ctx, r.staff, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoDirectoryRepository) FindStaffByIDs(ctx context.Context, ids []string) ([]*model.Staff, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", directoryerrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}

	cursor, err := r.staff.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find staff: %w", err)
	}
	defer cursor.Close(ctx)

	var staff []*model.Staff
	if err := cursor.All(ctx, &staff); err != nil {
		return nil, fmt.Errorf("failed to decode staff: %w", err)
	}
	return staff, nil
}

func (r *mongoDirectoryRepository) CreateLocation(ctx context.Context, l *model.Location) error {
	id, err := r.insert(ctx, r.locations, l)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

func (r *mongoDirectoryRepository) FindLocation(ctx context.Context, id string) (*model.Location, error) {
	var l model.Location
	if err := r.findOne(ctx, r.locations, id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *mongoDirectoryRepository) CreateService(ctx context.Context, s *model.ServiceDefinition) error {
	id, err := r.insert(ctx, r.services, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *mongoDirectoryRepository) FindService(ctx context.Context, id string) (*model.ServiceDefinition, error) {
	var s model.ServiceDefinition
	if err := r.findOne(ctx, r.services, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
