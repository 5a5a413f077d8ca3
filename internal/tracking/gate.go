package tracking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/metrics"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/clock"
)

// Recorder is the remote store the gate commits to. Both writes must be
// replace-on-(event_id, user_id) upserts.
type Recorder interface {
	UpsertAttendance(ctx context.Context, rec attendance.Record) error
	MarkAttended(ctx context.Context, eventID, userID int64) error
}

type GateOptions struct {
	ThresholdMinutes float64
	RemoteTimeout    time.Duration
	Clock            clock.Clock
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// Gate decides, after each accumulation, whether to commit attendance
// and whether tracking is finished.
type Gate struct {
	recorder  Recorder
	registrar Registrar
	threshold float64
	timeout   time.Duration
	clock     clock.Clock
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewGate(recorder Recorder, registrar Registrar, opts GateOptions) *Gate {
	g := &Gate{
		recorder:  recorder,
		registrar: registrar,
		threshold: opts.ThresholdMinutes,
		timeout:   opts.RemoteTimeout,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	if g.threshold <= 0 {
		g.threshold = DefaultThresholdMinutes
	}
	if g.timeout <= 0 {
		g.timeout = 10 * time.Second
	}
	if g.clock == nil {
		g.clock = clock.Real()
	}
	if g.log == nil {
		g.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g
}

// Active reports whether the event window contains the current time.
func (g *Gate) Active(cfg TrackingConfig) bool {
	return cfg.Window.Contains(g.clock.Now())
}

// Counted reports whether totalSeconds meets the threshold. The
// comparison uses the unrounded duration.
func (g *Gate) Counted(totalSeconds float64) bool {
	return totalSeconds >= g.threshold*60
}

// Evaluate runs after state has been saved. A returned error is a
// transient remote failure: config is left intact so the next
// invocation retries.
func (g *Gate) Evaluate(ctx context.Context, store *Store, cfg TrackingConfig, st TrackingState, last Sample) (Outcome, error) {
	now := g.clock.Now()
	if !cfg.Window.Contains(now) {
		g.Shutdown(ctx, store)
		return OutcomeExpired, nil
	}
	if !st.Inside {
		return OutcomeTracking, nil
	}

	counted := g.Counted(st.TotalSeconds)
	rec := attendance.Record{
		EventID:         cfg.EventID,
		UserID:          cfg.UserID,
		CheckInMethod:   attendance.CheckInGeofence,
		AttendedAt:      now,
		Latitude:        last.Latitude,
		Longitude:       last.Longitude,
		Counted:         counted,
		DurationMinutes: attendance.DurationMinutes(st.TotalSeconds),
	}
	if err := g.remote(ctx, func(ctx context.Context) error {
		return g.recorder.UpsertAttendance(ctx, rec)
	}); err != nil {
		return OutcomeTracking, fmt.Errorf("upsert attendance: %w", err)
	}
	g.metrics.Commit(counted)
	if !counted {
		return OutcomeTracking, nil
	}

	if err := g.remote(ctx, func(ctx context.Context) error {
		return g.recorder.MarkAttended(ctx, cfg.EventID, cfg.UserID)
	}); err != nil {
		return OutcomeTracking, fmt.Errorf("mark rsvp attended: %w", err)
	}
	g.log.Info("attendance counted",
		"device_id", store.DeviceID(), "event_id", cfg.EventID, "user_id", cfg.UserID,
		"duration_minutes", rec.DurationMinutes)
	g.Shutdown(ctx, store)
	return OutcomeCompleted, nil
}

// Shutdown stops background delivery and clears config. A failure to
// unregister never prevents the clear; the cleared config is what marks
// tracking as done.
func (g *Gate) Shutdown(ctx context.Context, store *Store) {
	if g.registrar != nil {
		if err := g.registrar.Unregister(ctx, store.DeviceID(), TaskID); err != nil {
			g.log.Warn("unregister background task failed", "device_id", store.DeviceID(), "error", err)
		}
	}
	_ = store.ClearConfig(ctx)
}

func (g *Gate) remote(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return fn(ctx)
}
