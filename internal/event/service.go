package event

import (
	"context"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/db"
)

// Service manages the events that geofence tracking reads its fence and
// window from.
type Service struct {
	store Store
}

func NewService(db db.Querier) *Service {
	return &Service{store: pgStore{db: db}}
}

// NewMemoryService backs events with mem for hosts running without Postgres.
func NewMemoryService(mem *attendance.Memory) *Service {
	return &Service{store: NewMemoryStore(mem)}
}

func (s *Service) CreateEvent(ctx context.Context, input Event) (Event, error) {
	if err := input.validate(); err != nil {
		return Event{}, err
	}
	return s.store.Insert(ctx, input)
}

func (s *Service) GetEvent(ctx context.Context, id int64) (Event, error) {
	return s.store.Get(ctx, id)
}

// UpdateEvent applies the non-zero fields of patch. Devices already
// tracking the event keep the fence they were armed with until they
// start again.
func (s *Service) UpdateEvent(ctx context.Context, id int64, patch Event) (Event, error) {
	evt, err := s.store.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if patch.Title != "" {
		evt.Title = patch.Title
	}
	if patch.Latitude != 0 || patch.Longitude != 0 {
		evt.Latitude, evt.Longitude = patch.Latitude, patch.Longitude
	}
	if patch.RadiusM != 0 {
		evt.RadiusM = patch.RadiusM
	}
	if !patch.StartsAt.IsZero() {
		evt.StartsAt = patch.StartsAt
	}
	if !patch.EndsAt.IsZero() {
		evt.EndsAt = patch.EndsAt
	}
	if err := evt.validate(); err != nil {
		return Event{}, err
	}
	if err := s.store.Update(ctx, evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// Roster lists the attendance rows committed for an event, most recent
// first.
func (s *Service) Roster(ctx context.Context, eventID int64) ([]attendance.Record, error) {
	return s.store.Roster(ctx, eventID)
}
