package repository

import (
	"context"
	"errors"
	"fmt"
	absenceerrors "medisched/internal/absences/errors"
	"medisched/pkg/config"
	mongotx "medisched/pkg/db/mongo"
	"medisched/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Absences"

// Decision is a conditional status change; it applies only while the
// absence is in one of From.
type Decision struct {
	From       []model.AbsenceStatus
	To         model.AbsenceStatus
	ApprovedBy string
	At         time.Time
}

type AbsenceRepository interface {
	Create(ctx context.Context, a *model.Absence) error
	FindByID(ctx context.Context, id string) (*model.Absence, error)
	// FindOverlapping returns absences of the staff member in any of
	// statuses that overlap [start, end).
	FindOverlapping(ctx context.Context, staffID string, statuses []model.AbsenceStatus, start, end time.Time) ([]*model.Absence, error)
	UpdateStatus(ctx context.Context, id string, d Decision) (*model.Absence, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoAbsenceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoAbsenceRepository(cfg *config.Config) AbsenceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAbsenceRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoAbsenceRepository) timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.InTransaction(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (r *mongoAbsenceRepository) Create(ctx context.Context, a *model.Absence) error {
	ctx, cancel := r.timeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		return fmt.Errorf("failed to create absence: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		a.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAbsenceRepository) FindByID(ctx context.Context, id string) (*model.Absence, error) {
	ctx, cancel := r.timeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", absenceerrors.ErrInvalidID, id)
	}

	var a model.Absence
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, absenceerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find absence: %w", err)
	}
	return &a, nil
}

func (r *mongoAbsenceRepository) FindOverlapping(ctx context.Context, staffID string, statuses []model.AbsenceStatus, start, end time.Time) ([]*model.Absence, error) {
	ctx, cancel := r.timeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"staff_id":  staffID,
		"status":    bson.M{"$in": statuses},
		"starts_at": bson.M{"$lt": end},
		"ends_at":   bson.M{"$gt": start},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find absences: %w", err)
	}
	defer cursor.Close(ctx)

	var absences []*model.Absence
	if err := cursor.All(ctx, &absences); err != nil {
		return nil, fmt.Errorf("failed to decode absences: %w", err)
	}
	return absences, nil
}

func (r *mongoAbsenceRepository) UpdateStatus(ctx context.Context, id string, d Decision) (*model.Absence, error) {
	ctx, cancel := r.timeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", absenceerrors.ErrInvalidID, id)
	}

	set := bson.M{"status": d.To, "decided_at": d.At}
	if d.ApprovedBy != "" {
		set["approved_by"] = d.ApprovedBy
	}
	filter := bson.M{"_id": objectID, "status": bson.M{"$in": d.From}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var a model.Absence
	err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&a)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update absence status: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return nil, fmt.Errorf("failed to check absence existence: %w", err)
	}
	if count == 0 {
		return nil, absenceerrors.ErrNotFound
	}
	return nil, absenceerrors.ErrStatusChanged
}

func (r *mongoAbsenceRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
