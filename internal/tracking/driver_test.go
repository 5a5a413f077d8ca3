package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/kvstore"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/clock"
)

type driverFixture struct {
	store     *Store
	remote    *flakyRemote
	registrar *MemoryRegistrar
	clock     *clock.FakeClock
	driver    *Driver
}

func newDriverFixture(t *testing.T, policy BatchPolicy) *driverFixture {
	t.Helper()
	f := &driverFixture{
		store:     NewStore(kvstore.NewMemory(), "device-1", nil),
		remote:    newFlakyRemote(),
		registrar: NewMemoryRegistrar(),
		clock:     clock.Fake(at(0)),
	}
	gate := NewGate(f.remote, f.registrar, GateOptions{ThresholdMinutes: 3, RemoteTimeout: time.Second, Clock: f.clock})
	f.driver = NewDriver(f.store, gate, policy, nil, nil)

	cfg := testConfig()
	if err := f.store.Configure(context.Background(), &cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	_ = f.registrar.Register(context.Background(), "device-1", TaskID, DefaultTaskOptions())
	return f
}

func (f *driverFixture) deliver(t *testing.T, samples ...Sample) Outcome {
	t.Helper()
	if n := len(samples); n > 0 && !samples[n-1].Timestamp.IsZero() {
		f.clock.Set(samples[n-1].Timestamp)
	}
	outcome, err := f.driver.HandleBatch(context.Background(), Batch{Samples: samples})
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	return outcome
}

func (f *driverFixture) registered() bool {
	ok, _ := f.registrar.IsRegistered(context.Background(), "device-1", TaskID)
	return ok
}

func TestDriverPlatformErrorLeavesStateUntouched(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	before := f.store.LoadState(context.Background())

	outcome, err := f.driver.HandleBatch(context.Background(), Batch{Err: errors.New("location unavailable"), Samples: []Sample{inside(at(60))}})
	if err != nil || outcome != OutcomePlatformError {
		t.Fatalf("unexpected result %v %v", outcome, err)
	}
	after := f.store.LoadState(context.Background())
	if after.TotalSeconds != before.TotalSeconds || !after.LastTimestamp.Equal(*before.LastTimestamp) {
		t.Fatalf("state changed on platform error")
	}
}

func TestDriverIdleWithoutConfig(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	_ = f.store.Configure(context.Background(), nil)

	if outcome := f.deliver(t, inside(at(0))); outcome != OutcomeIdle {
		t.Fatalf("expected idle, got %v", outcome)
	}
	if len(f.remote.Records()) != 0 {
		t.Fatalf("expected no remote writes")
	}
}

func TestDriverNoSamples(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	if outcome := f.deliver(t); outcome != OutcomeNoSamples {
		t.Fatalf("expected no-op, got %v", outcome)
	}
	bad := Sample{Latitude: 120, Longitude: 0, Timestamp: at(0)}
	if outcome := f.deliver(t, bad, Sample{Latitude: 14.7, Longitude: 120.9}); outcome != OutcomeNoSamples {
		t.Fatalf("expected malformed samples to be ignored, got %v", outcome)
	}
	if st := f.store.LoadState(context.Background()); st.LastTimestamp != nil {
		t.Fatalf("expected state unchanged")
	}
}

func TestDriverTracksAndCommitsBelowThreshold(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	if outcome := f.deliver(t, inside(at(60))); outcome != OutcomeTracking {
		t.Fatalf("expected tracking, got %v", outcome)
	}

	records := f.remote.Records()
	if len(records) != 1 {
		t.Fatalf("expected one attendance row, got %d", len(records))
	}
	if records[0].Counted || records[0].DurationMinutes != 1 {
		t.Fatalf("unexpected record %+v", records[0])
	}
	if f.store.LoadConfig(context.Background()) == nil {
		t.Fatalf("expected config to remain while below threshold")
	}
}

func TestDriverNoCommitWhileOutside(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	f.deliver(t, outside(at(30)))
	if len(f.remote.Records()) != 1 {
		t.Fatalf("expected only the inside sample to upsert")
	}
	st := f.store.LoadState(context.Background())
	if st.Inside || st.TotalSeconds != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestDriverCompletesAtThreshold(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	f.deliver(t, inside(at(120)))
	if outcome := f.deliver(t, inside(at(180))); outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %v", outcome)
	}

	records := f.remote.Records()
	if len(records) != 1 || !records[0].Counted || records[0].DurationMinutes != 3 {
		t.Fatalf("unexpected records %+v", records)
	}
	if !records[0].AttendedAt.Equal(at(180)) {
		t.Fatalf("expected attended_at = now")
	}
	if !f.remote.Attended(7, 42) {
		t.Fatalf("expected rsvp marked attended")
	}
	if f.store.LoadConfig(context.Background()) != nil {
		t.Fatalf("expected config cleared")
	}
	if f.registered() {
		t.Fatalf("expected background task unregistered")
	}

	if outcome := f.deliver(t, inside(at(240))); outcome != OutcomeIdle {
		t.Fatalf("expected idle after completion, got %v", outcome)
	}
}

func TestDriverExpiredWindow(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	_ = f.store.SaveState(context.Background(), TrackingState{TotalSeconds: 600, Inside: true})

	late := eventStart.Add(3 * time.Hour)
	if outcome := f.deliver(t, inside(late)); outcome != OutcomeExpired {
		t.Fatalf("expected expired, got %v", outcome)
	}
	if len(f.remote.Records()) != 0 {
		t.Fatalf("expiry must not write attendance")
	}
	if f.store.LoadConfig(context.Background()) != nil || f.registered() {
		t.Fatalf("expected tracking torn down")
	}
}

func TestDriverExpiredEvenWithoutSamples(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.clock.Set(eventStart.Add(-time.Minute))
	outcome, _ := f.driver.HandleBatch(context.Background(), Batch{})
	if outcome != OutcomeExpired {
		t.Fatalf("expected expired before window start, got %v", outcome)
	}
}

func TestDriverLatestOnlyDiscardsEarlierSamples(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	// delivered out of order; the latest by timestamp is inside
	f.deliver(t, inside(at(60)), outside(at(30)))
	if st := f.store.LoadState(context.Background()); st.TotalSeconds != 60 || !st.Inside {
		t.Fatalf("expected only latest sample to count, got %+v", st)
	}
}

func TestDriverFoldAllHonoursEverySample(t *testing.T) {
	f := newDriverFixture(t, BatchFoldAll)
	f.deliver(t, inside(at(0)))
	f.deliver(t, inside(at(60)), outside(at(30)))
	if st := f.store.LoadState(context.Background()); st.TotalSeconds != 0 {
		t.Fatalf("expected the outside sample to break accrual, got %+v", st)
	}

	f.deliver(t, inside(at(90)), inside(at(120)), inside(at(150)))
	if st := f.store.LoadState(context.Background()); st.TotalSeconds != 90 {
		t.Fatalf("expected folded accrual of 90s, got %v", st.TotalSeconds)
	}
}

func TestDriverRemoteFailureRetriesNextInvocation(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	f.deliver(t, inside(at(170)))

	f.remote.failNext = 1
	f.clock.Set(at(200))
	outcome, err := f.driver.HandleBatch(context.Background(), Batch{Samples: []Sample{inside(at(200))}})
	if err == nil || !errors.Is(err, errFlaky) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if outcome != OutcomeTracking {
		t.Fatalf("expected tracking outcome on retryable failure, got %v", outcome)
	}
	if f.store.LoadConfig(context.Background()) == nil {
		t.Fatalf("config must survive a failed commit")
	}
	if st := f.store.LoadState(context.Background()); st.TotalSeconds != 200 {
		t.Fatalf("state must be saved before the commit, got %v", st.TotalSeconds)
	}

	if outcome := f.deliver(t, inside(at(230))); outcome != OutcomeCompleted {
		t.Fatalf("expected completion on retry, got %v", outcome)
	}
}

func TestDriverRSVPFailureKeepsConfig(t *testing.T) {
	f := newDriverFixture(t, BatchLatestOnly)
	f.deliver(t, inside(at(0)))
	f.remote.failRSVP = true
	f.clock.Set(at(200))
	if _, err := f.driver.HandleBatch(context.Background(), Batch{Samples: []Sample{inside(at(200))}}); err == nil {
		t.Fatalf("expected rsvp error")
	}
	if f.store.LoadConfig(context.Background()) == nil {
		t.Fatalf("config must survive a failed rsvp mark")
	}
	if rec := f.remote.Records(); len(rec) != 1 || !rec[0].Counted {
		t.Fatalf("expected counted attendance row")
	}

	f.remote.failRSVP = false
	if outcome := f.deliver(t, inside(at(260))); outcome != OutcomeCompleted {
		t.Fatalf("expected completion, got %v", outcome)
	}
	if len(f.remote.Records()) != 1 {
		t.Fatalf("repeat commit must not add rows")
	}
}

func TestDriverColdStartEquivalence(t *testing.T) {
	kv := kvstore.NewMemory()
	remote := newFlakyRemote()
	registrar := NewMemoryRegistrar()
	fake := clock.Fake(at(0))
	cfg := testConfig()
	_ = NewStore(kv, "device-1", nil).Configure(context.Background(), &cfg)

	// a fresh driver per invocation, as after process restarts
	for _, s := range []Sample{inside(at(0)), inside(at(45)), inside(at(90))} {
		fake.Set(s.Timestamp)
		gate := NewGate(remote, registrar, GateOptions{Clock: fake})
		d := NewDriver(NewStore(kv, "device-1", nil), gate, BatchLatestOnly, nil, nil)
		if _, err := d.HandleBatch(context.Background(), Batch{Samples: []Sample{s}}); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if st := NewStore(kv, "device-1", nil).LoadState(context.Background()); st.TotalSeconds != 90 {
		t.Fatalf("expected 90s across cold starts, got %v", st.TotalSeconds)
	}
}
