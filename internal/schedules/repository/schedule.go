package repository

import (
	"context"
	"errors"
	"fmt"
	scheduleserrors "medisched/internal/schedules/errors"
	"medisched/pkg/config"
	mongotx "medisched/pkg/db/mongo"
	"medisched/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Weekly_schedules"
)

type mongoScheduleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ScheduleRepository interface {
	Create(ctx context.Context, sc *model.WeeklySchedule) error
	FindByID(ctx context.Context, id string) (*model.WeeklySchedule, error)
	FindByStaff(ctx context.Context, staffID string, limit int, offset int64) ([]*model.WeeklySchedule, error)
	CountByStaff(ctx context.Context, staffID string) (int64, error)
	// FindActiveForStaff returns active schedules whose validity window may
	// touch [start, end). Callers still check each calendar day.
	FindActiveForStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.WeeklySchedule, error)
	Update(ctx context.Context, id string, sc *model.WeeklySchedule) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoScheduleRepository(cfg *config.Config) ScheduleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoScheduleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.InTransaction(ctx) {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoScheduleRepository) Create(ctx context.Context, sc *model.WeeklySchedule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, sc)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		sc.ID = oid.Hex()
	}
	return nil
}

func (r *mongoScheduleRepository) FindByID(ctx context.Context, id string) (*model.WeeklySchedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", scheduleserrors.ErrInvalidID, id)
	}

	var sc model.WeeklySchedule
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&sc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, scheduleserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}
	return &sc, nil
}

func (r *mongoScheduleRepository) FindByStaff(ctx context.Context, staffID string, limit int, offset int64) ([]*model.WeeklySchedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "valid_from", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, bson.M{"staff_id": staffID}, opts)
}

func (r *mongoScheduleRepository) CountByStaff(ctx context.Context, staffID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"staff_id": staffID})
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

func (r *mongoScheduleRepository) FindActiveForStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.WeeklySchedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	// Validity bounds are calendar days; widen by a day so zone offsets
	// cannot drop a schedule that CoversDate would accept.
	filter := bson.M{
		"staff_id":   staffID,
		"is_active":  true,
		"valid_from": bson.M{"$lt": end.Add(24 * time.Hour)},
		"$or": bson.A{
			bson.M{"valid_to": bson.M{"$exists": false}},
			bson.M{"valid_to": nil},
			bson.M{"valid_to": bson.M{"$gte": start.Add(-24 * time.Hour)}},
		},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "valid_from", Value: 1}}))
}

func (r *mongoScheduleRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.WeeklySchedule, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*model.WeeklySchedule
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}
	return schedules, nil
}

func (r *mongoScheduleRepository) Update(ctx context.Context, id string, sc *model.WeeklySchedule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", scheduleserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"valid_from": sc.ValidFrom,
			"valid_to":   sc.ValidTo,
			"is_active":  sc.IsActive,
			"days":       sc.Days,
			"updated_at": sc.UpdatedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if result.MatchedCount == 0 {
		return scheduleserrors.ErrNotFound
	}
	return nil
}

func (r *mongoScheduleRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", scheduleserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if result.DeletedCount == 0 {
		return scheduleserrors.ErrNotFound
	}
	return nil
}

func (r *mongoScheduleRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
