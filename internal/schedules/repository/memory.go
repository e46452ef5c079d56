package repository

import (
	"context"
	scheduleserrors "medisched/internal/schedules/errors"
	mongotx "medisched/pkg/db/mongo"
	"medisched/pkg/model"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*model.WeeklySchedule
}

func NewMemoryScheduleRepository() *MemoryScheduleRepository {
	return &MemoryScheduleRepository{schedules: make(map[string]*model.WeeklySchedule)}
}

func (r *MemoryScheduleRepository) Create(ctx context.Context, sc *model.WeeklySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sc.ID = primitive.NewObjectID().Hex()
	stored := cloneSchedule(sc)
	r.schedules[sc.ID] = stored
	return nil
}

func (r *MemoryScheduleRepository) FindByID(ctx context.Context, id string) (*model.WeeklySchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sc, ok := r.schedules[id]
	if !ok {
		return nil, scheduleserrors.ErrNotFound
	}
	return cloneSchedule(sc), nil
}

func (r *MemoryScheduleRepository) FindByStaff(ctx context.Context, staffID string, limit int, offset int64) ([]*model.WeeklySchedule, error) {
	all := r.filter(func(sc *model.WeeklySchedule) bool { return sc.StaffID == staffID })
	if offset >= int64(len(all)) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryScheduleRepository) CountByStaff(ctx context.Context, staffID string) (int64, error) {
	return int64(len(r.filter(func(sc *model.WeeklySchedule) bool { return sc.StaffID == staffID }))), nil
}

func (r *MemoryScheduleRepository) FindActiveForStaff(ctx context.Context, staffID string, start, end time.Time) ([]*model.WeeklySchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.filter(func(sc *model.WeeklySchedule) bool {
		if sc.StaffID != staffID || !sc.IsActive {
			return false
		}
		if !sc.ValidFrom.Before(end.Add(24 * time.Hour)) {
			return false
		}
		return sc.ValidTo == nil || !sc.ValidTo.Before(start.Add(-24*time.Hour))
	}), nil
}

func (r *MemoryScheduleRepository) filter(keep func(*model.WeeklySchedule) bool) []*model.WeeklySchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.WeeklySchedule
	for _, sc := range r.schedules {
		if keep(sc) {
			out = append(out, cloneSchedule(sc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out
}

func (r *MemoryScheduleRepository) Update(ctx context.Context, id string, sc *model.WeeklySchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return scheduleserrors.ErrNotFound
	}
	stored := cloneSchedule(sc)
	stored.ID = id
	r.schedules[id] = stored
	return nil
}

func (r *MemoryScheduleRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return scheduleserrors.ErrNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *MemoryScheduleRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.NoopTransactionManager{}.ExecuteTransaction(ctx, fn)
}

func cloneSchedule(sc *model.WeeklySchedule) *model.WeeklySchedule {
	out := *sc
	out.Days = append([]model.DaySchedule(nil), sc.Days...)
	if sc.ValidTo != nil {
		to := *sc.ValidTo
		out.ValidTo = &to
	}
	return &out
}
