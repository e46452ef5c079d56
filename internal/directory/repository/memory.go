package repository

import (
	"context"
	directoryerrors "medisched/internal/directory/errors"
	"medisched/pkg/model"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryDirectoryRepository struct {
	mu        sync.RWMutex
	staff     map[string]model.Staff
	locations map[string]model.Location
	services  map[string]model.ServiceDefinition
}

func NewMemoryDirectoryRepository() *MemoryDirectoryRepository {
	return &MemoryDirectoryRepository{
		staff:     make(map[string]model.Staff),
		locations: make(map[string]model.Location),
		services:  make(map[string]model.ServiceDefinition),
	}
}

// newID keeps a caller supplied ID so fixtures can use readable IDs.
func newID(id string) string {
	if id != "" {
		return id
	}
	return primitive.NewObjectID().Hex()
}

func (r *MemoryDirectoryRepository) CreateStaff(ctx context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = newID(s.ID)
	r.staff[s.ID] = *s
	return nil
}

func (r *MemoryDirectoryRepository) FindStaff(ctx context.Context, id string) (*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, directoryerrors.ErrNotFound
	}
	return &s, nil
}

func (r *MemoryDirectoryRepository) FindStaffByIDs(ctx context.Context, ids []string) ([]*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Staff
	for _, id := range ids {
		if s, ok := r.staff[id]; ok {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (r *MemoryDirectoryRepository) CreateLocation(ctx context.Context, l *model.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = newID(l.ID)
	r.locations[l.ID] = *l
	return nil
}

func (r *MemoryDirectoryRepository) FindLocation(ctx context.Context, id string) (*model.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.locations[id]
	if !ok {
		return nil, directoryerrors.ErrNotFound
	}
	return &l, nil
}

func (r *MemoryDirectoryRepository) CreateService(ctx context.Context, s *model.ServiceDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = newID(s.ID)
	r.services[s.ID] = *s
	return nil
}

func (r *MemoryDirectoryRepository) FindService(ctx context.Context, id string) (*model.ServiceDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, directoryerrors.ErrNotFound
	}
	return &s, nil
}
