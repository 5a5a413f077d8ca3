package attendance

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type key struct {
	eventID int64
	userID  int64
}

// Memory is an in-process remote store with the same replace-by-key
// semantics as the Postgres repository. It backs REMOTE_BACKEND=memory
// and hosts started without a reachable database.
type Memory struct {
	mu      sync.Mutex
	records map[key]Record
	rsvps   map[key]bool
	events  map[int64]Event
}

func NewMemory() *Memory {
	return &Memory{
		records: map[key]Record{},
		rsvps:   map[key]bool{},
		events:  map[int64]Event{},
	}
}

func (m *Memory) AddEvent(evt Event) {
	m.mu.Lock()
	m.events[evt.ID] = evt
	m.mu.Unlock()
}

func (m *Memory) UpsertAttendance(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{rec.EventID, rec.UserID}
	if existing, ok := m.records[k]; ok {
		rec.ID = existing.ID
	} else if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records[k] = rec
	return nil
}

func (m *Memory) MarkAttended(_ context.Context, eventID, userID int64) error {
	m.mu.Lock()
	m.rsvps[key{eventID, userID}] = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) AttendedMinutes(_ context.Context, eventID, userID int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key{eventID, userID}].DurationMinutes, nil
}

func (m *Memory) Event(_ context.Context, eventID int64) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evt, ok := m.events[eventID]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return evt, nil
}

// Records returns a snapshot of all attendance rows.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

func (m *Memory) Attended(eventID, userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rsvps[key{eventID, userID}]
}
