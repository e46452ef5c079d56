package mongo

import (
	absencerepo "medisched/internal/absences/repository"
	directoryrepo "medisched/internal/directory/repository"
	locationrepo "medisched/internal/locations/repository"
	reservationrepo "medisched/internal/reservations/repository"
	schedulerepo "medisched/internal/schedules/repository"
	"testing"
)

func TestCollections_CoverRepositories(t *testing.T) {
	defs := make(map[string]CollectionDef)
	for _, def := range Collections() {
		if _, dup := defs[def.Name]; dup {
			t.Fatalf("collection %s defined twice", def.Name)
		}
		if def.Validator == nil {
			t.Errorf("collection %s has no validator", def.Name)
		}
		defs[def.Name] = def
	}

	for _, name := range []string{
		directoryrepo.StaffCollectionName,
		directoryrepo.LocationCollectionName,
		directoryrepo.ServiceCollectionName,
		schedulerepo.CollectionName,
		locationrepo.HoursCollectionName,
		locationrepo.ClosureCollectionName,
		absencerepo.CollectionName,
		reservationrepo.CollectionName,
		reservationrepo.LockCollectionName,
	} {
		if _, ok := defs[name]; !ok {
			t.Errorf("no migration for collection %s", name)
		}
	}
}

func TestReservationLocks_ExpireByTTL(t *testing.T) {
	for _, def := range Collections() {
		if def.Name != reservationrepo.LockCollectionName {
			continue
		}
		for _, idx := range def.Indexes {
			if idx.Options != nil && idx.Options.ExpireAfterSeconds != nil && *idx.Options.ExpireAfterSeconds == 0 {
				return
			}
		}
	}
	t.Error("reservation locks have no TTL index on expires_at")
}
