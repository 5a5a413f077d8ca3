package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/kvstore"
)

var (
	errFlaky = errors.New("flaky")

	fence = Geofence{Latitude: 14.7792, Longitude: 120.9817, RadiusM: 120}

	eventStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

// inside is ~20 m north of the fence center.
func inside(ts time.Time) Sample {
	return Sample{Latitude: 14.77938, Longitude: 120.9817, Timestamp: ts}
}

// outside is ~500 m north of the fence center.
func outside(ts time.Time) Sample {
	return Sample{Latitude: 14.7837, Longitude: 120.9817, Timestamp: ts}
}

func at(seconds int) time.Time {
	return eventStart.Add(10*time.Minute + time.Duration(seconds)*time.Second)
}

func testConfig() TrackingConfig {
	return TrackingConfig{
		EventID:  7,
		UserID:   42,
		Geofence: fence,
		Window:   Window{Start: eventStart, End: eventStart.Add(2 * time.Hour)},
	}
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, errFlaky }
func (failingKV) Set(context.Context, string, []byte) error   { return errFlaky }
func (failingKV) Delete(context.Context, ...string) error     { return errFlaky }

var _ kvstore.Store = failingKV{}

// flakyRemote wraps the in-memory remote store and fails the next n writes.
type flakyRemote struct {
	*attendance.Memory
	mu       sync.Mutex
	failNext int
	failRSVP bool
	history  error
}

func newFlakyRemote() *flakyRemote {
	return &flakyRemote{Memory: attendance.NewMemory()}
}

func (f *flakyRemote) UpsertAttendance(ctx context.Context, rec attendance.Record) error {
	f.mu.Lock()
	if f.failNext > 0 {
		f.failNext--
		f.mu.Unlock()
		return errFlaky
	}
	f.mu.Unlock()
	return f.Memory.UpsertAttendance(ctx, rec)
}

func (f *flakyRemote) MarkAttended(ctx context.Context, eventID, userID int64) error {
	f.mu.Lock()
	fail := f.failRSVP
	f.mu.Unlock()
	if fail {
		return errFlaky
	}
	return f.Memory.MarkAttended(ctx, eventID, userID)
}

func (f *flakyRemote) AttendedMinutes(ctx context.Context, eventID, userID int64) (float64, error) {
	if f.history != nil {
		return 0, f.history
	}
	return f.Memory.AttendedMinutes(ctx, eventID, userID)
}

type stubbornRegistrar struct {
	*MemoryRegistrar
	unregisterCalls int
}

func (s *stubbornRegistrar) Unregister(context.Context, string, string) error {
	s.unregisterCalls++
	return errFlaky
}

type refusingRegistrar struct {
	*MemoryRegistrar
}

func (refusingRegistrar) Register(context.Context, string, string, TaskOptions) error {
	return errFlaky
}
