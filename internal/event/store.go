package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/db"

	"github.com/jackc/pgx/v5"
)

// Store persists events and reads their attendance roster.
type Store interface {
	Insert(ctx context.Context, evt Event) (Event, error)
	Get(ctx context.Context, id int64) (Event, error)
	Update(ctx context.Context, evt Event) error
	Roster(ctx context.Context, eventID int64) ([]attendance.Record, error)
}

type pgStore struct {
	db db.Querier
}

func (s pgStore) Insert(ctx context.Context, evt Event) (Event, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO events (title, latitude, longitude, geofence_radius_m, starts_at, ends_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, evt.Title, evt.Latitude, evt.Longitude, evt.RadiusM, evt.StartsAt, evt.EndsAt, evt.CreatedBy)
	if err := row.Scan(&evt.ID, &evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

func (s pgStore) Get(ctx context.Context, id int64) (Event, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, latitude, longitude, geofence_radius_m, starts_at, ends_at, created_by, created_at
		FROM events WHERE id=$1
	`, id)
	var evt Event
	err := row.Scan(&evt.ID, &evt.Title, &evt.Latitude, &evt.Longitude, &evt.RadiusM, &evt.StartsAt, &evt.EndsAt, &evt.CreatedBy, &evt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, attendance.ErrEventNotFound
	}
	if err != nil {
		return Event{}, err
	}
	return evt, nil
}

func (s pgStore) Update(ctx context.Context, evt Event) error {
	_, err := s.db.Exec(ctx, `
		UPDATE events
		SET title=$2, latitude=$3, longitude=$4, geofence_radius_m=$5, starts_at=$6, ends_at=$7
		WHERE id=$1
	`, evt.ID, evt.Title, evt.Latitude, evt.Longitude, evt.RadiusM, evt.StartsAt, evt.EndsAt)
	return err
}

func (s pgStore) Roster(ctx context.Context, eventID int64) ([]attendance.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, user_id, check_in_method, attended_at, latitude, longitude, attendance_counted, attendance_duration_minutes
		FROM event_attendance WHERE event_id=$1
		ORDER BY attended_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		var r attendance.Record
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.CheckInMethod, &r.AttendedAt, &r.Latitude, &r.Longitude, &r.Counted, &r.DurationMinutes); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MemoryStore keeps events in process and publishes every write to the
// attendance.Memory that tracking resolves geofences from.
type MemoryStore struct {
	mem    *attendance.Memory
	now    func() time.Time
	mu     sync.Mutex
	nextID int64
	events map[int64]Event
}

func NewMemoryStore(mem *attendance.Memory) *MemoryStore {
	return &MemoryStore{mem: mem, now: time.Now, events: map[int64]Event{}}
}

func (s *MemoryStore) Insert(_ context.Context, evt Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	evt.ID = s.nextID
	evt.CreatedAt = s.now().UTC()
	s.events[evt.ID] = evt
	s.mem.AddEvent(evt.geofence())
	return evt, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[id]
	if !ok {
		return Event{}, attendance.ErrEventNotFound
	}
	return evt, nil
}

func (s *MemoryStore) Update(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[evt.ID]; !ok {
		return attendance.ErrEventNotFound
	}
	s.events[evt.ID] = evt
	s.mem.AddEvent(evt.geofence())
	return nil
}

func (s *MemoryStore) Roster(_ context.Context, eventID int64) ([]attendance.Record, error) {
	records := []attendance.Record{}
	for _, r := range s.mem.Records() {
		if r.EventID == eventID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AttendedAt.After(records[j].AttendedAt)
	})
	return records, nil
}
