package repository

import (
	"context"
	absenceerrors "medisched/internal/absences/errors"
	mongotx "medisched/pkg/db/mongo"
	"medisched/pkg/model"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryAbsenceRepository struct {
	mu       sync.Mutex
	absences map[string]model.Absence
}

func NewMemoryAbsenceRepository() *MemoryAbsenceRepository {
	return &MemoryAbsenceRepository{absences: make(map[string]model.Absence)}
}

func (r *MemoryAbsenceRepository) Create(ctx context.Context, a *model.Absence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = primitive.NewObjectID().Hex()
	r.absences[a.ID] = *a
	return nil
}

func (r *MemoryAbsenceRepository) FindByID(ctx context.Context, id string) (*model.Absence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.absences[id]
	if !ok {
		return nil, absenceerrors.ErrNotFound
	}
	return &a, nil
}

func (r *MemoryAbsenceRepository) FindOverlapping(ctx context.Context, staffID string, statuses []model.AbsenceStatus, start, end time.Time) ([]*model.Absence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Absence
	for _, a := range r.absences {
		if a.StaffID == staffID && slices.Contains(statuses, a.Status) && a.StartsAt.Before(end) && a.EndsAt.After(start) {
			c := a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *MemoryAbsenceRepository) UpdateStatus(ctx context.Context, id string, d Decision) (*model.Absence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.absences[id]
	if !ok {
		return nil, absenceerrors.ErrNotFound
	}
	if !slices.Contains(d.From, a.Status) {
		return nil, absenceerrors.ErrStatusChanged
	}
	a.Status = d.To
	at := d.At
	a.DecidedAt = &at
	if d.ApprovedBy != "" {
		a.ApprovedBy = d.ApprovedBy
	}
	r.absences[id] = a
	return &a, nil
}

func (r *MemoryAbsenceRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.NoopTransactionManager{}.ExecuteTransaction(ctx, fn)
}
