package repository

import (
	"context"
	locationerrors "medisched/internal/locations/errors"
	"medisched/pkg/model"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryLocationRepository struct {
	mu       sync.RWMutex
	hours    map[string]model.LocationHours
	closures map[string]model.LocationClosure
}

func NewMemoryLocationRepository() *MemoryLocationRepository {
	return &MemoryLocationRepository{
		hours:    make(map[string]model.LocationHours),
		closures: make(map[string]model.LocationClosure),
	}
}

func (r *MemoryLocationRepository) CreateHours(ctx context.Context, h *model.LocationHours) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = primitive.NewObjectID().Hex()
	r.hours[h.ID] = *h
	return nil
}

func (r *MemoryLocationRepository) FindHours(ctx context.Context, locationID string) ([]*model.LocationHours, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.LocationHours
	for _, h := range r.hours {
		if h.LocationID == locationID {
			c := h
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryLocationRepository) DeleteHours(ctx context.Context, locationID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hours[id]; !ok || h.LocationID != locationID {
		return locationerrors.ErrNotFound
	}
	delete(r.hours, id)
	return nil
}

func (r *MemoryLocationRepository) CreateClosure(ctx context.Context, c *model.LocationClosure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = primitive.NewObjectID().Hex()
	r.closures[c.ID] = *c
	return nil
}

func (r *MemoryLocationRepository) FindClosures(ctx context.Context, locationID string, start, end time.Time) ([]*model.LocationClosure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.LocationClosure
	for _, c := range r.closures {
		if c.LocationID == locationID && c.StartsAt.Before(end) && c.EndsAt.After(start) {
			cl := c
			out = append(out, &cl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *MemoryLocationRepository) DeleteClosure(ctx context.Context, locationID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.closures[id]; !ok || c.LocationID != locationID {
		return locationerrors.ErrNotFound
	}
	delete(r.closures, id)
	return nil
}
