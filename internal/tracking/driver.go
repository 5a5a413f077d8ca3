package tracking

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/metrics"
)

// Outcome is what a single driver invocation did.
type Outcome string

const (
	OutcomePlatformError Outcome = "platform_error"
	OutcomeIdle          Outcome = "idle"
	OutcomeExpired       Outcome = "expired"
	OutcomeNoSamples     Outcome = "no_samples"
	OutcomeTracking      Outcome = "tracking"
	OutcomeCompleted     Outcome = "completed"
)

// BatchPolicy selects which samples of a delivered batch are accumulated.
type BatchPolicy int

const (
	// BatchLatestOnly accumulates only the most recent sample.
	BatchLatestOnly BatchPolicy = iota
	// BatchFoldAll folds every sample in timestamp order.
	BatchFoldAll
)

// Driver is the background task entry point. It keeps nothing in memory
// between invocations: every call reloads config and state from the
// store, so it behaves the same after a cold start.
type Driver struct {
	store   *Store
	gate    *Gate
	policy  BatchPolicy
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewDriver(store *Store, gate *Gate, policy BatchPolicy, m *metrics.Metrics, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{store: store, gate: gate, policy: policy, metrics: m, log: logger}
}

// HandleBatch processes one platform delivery. It never panics; a
// non-nil error is a transient failure already absorbed by leaving
// config in place.
func (d *Driver) HandleBatch(ctx context.Context, batch Batch) (Outcome, error) {
	outcome, err := d.handle(ctx, batch)
	label := string(outcome)
	if err != nil {
		label = "remote_error"
		d.log.Warn("attendance commit failed, will retry on next invocation",
			"device_id", d.store.DeviceID(), "error", err)
	}
	d.metrics.Invocation(label)
	return outcome, err
}

func (d *Driver) handle(ctx context.Context, batch Batch) (Outcome, error) {
	if batch.Err != nil {
		d.log.Warn("platform delivered error", "device_id", d.store.DeviceID(), "error", batch.Err)
		return OutcomePlatformError, nil
	}

	cfg := d.store.LoadConfig(ctx)
	if cfg == nil {
		return OutcomeIdle, nil
	}
	if !d.gate.Active(*cfg) {
		d.gate.Shutdown(ctx, d.store)
		return OutcomeExpired, nil
	}

	samples := usableSamples(batch.Samples)
	if len(samples) == 0 {
		return OutcomeNoSamples, nil
	}
	if d.policy == BatchLatestOnly {
		samples = samples[len(samples)-1:]
	}

	st := d.store.LoadState(ctx)
	for _, s := range samples {
		st = Accumulate(st, s, cfg.Geofence)
	}
	_ = d.store.SaveState(ctx, st)

	return d.gate.Evaluate(ctx, d.store, *cfg, st, samples[len(samples)-1])
}

// usableSamples drops fixes that cannot be placed and orders the rest
// by timestamp. Equal timestamps keep delivery order.
func usableSamples(in []Sample) []Sample {
	out := make([]Sample, 0, len(in))
	for _, s := range in {
		if s.Timestamp.IsZero() || math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) {
			continue
		}
		if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
