package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/kvstore"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/metrics"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/clock"
)

var ErrEventInactive = errors.New("event is not in progress")

// EventSource resolves the geofence and window of an event.
type EventSource interface {
	Event(ctx context.Context, eventID int64) (attendance.Event, error)
}

// Remote is the remote store seen by the service: the gate's writes plus
// the read used to resume a partially attended event.
type Remote interface {
	Recorder
	AttendedMinutes(ctx context.Context, eventID, userID int64) (float64, error)
}

type Options struct {
	ThresholdMinutes float64
	RemoteTimeout    time.Duration
	Policy           BatchPolicy
	Task             TaskOptions
	Clock            clock.Clock
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// Service is what the rest of the application uses to arm, disarm and
// feed geofence attendance tracking, one device at a time.
type Service struct {
	kv        kvstore.Store
	remote    Remote
	events    EventSource
	registrar Registrar
	opts      Options
	gate      *Gate
	log       *slog.Logger
}

func NewService(kv kvstore.Store, remote Remote, events EventSource, registrar Registrar, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Task == (TaskOptions{}) {
		opts.Task = DefaultTaskOptions()
	}
	return &Service{
		kv:        kv,
		remote:    remote,
		events:    events,
		registrar: registrar,
		opts:      opts,
		gate: NewGate(remote, registrar, GateOptions{
			ThresholdMinutes: opts.ThresholdMinutes,
			RemoteTimeout:    opts.RemoteTimeout,
			Clock:            opts.Clock,
			Metrics:          opts.Metrics,
			Logger:           opts.Logger,
		}),
		log: opts.Logger,
	}
}

func (s *Service) store(deviceID string) *Store {
	return NewStore(s.kv, deviceID, s.log)
}

// Driver returns the background entry point for one device.
func (s *Service) Driver(deviceID string) *Driver {
	return NewDriver(s.store(deviceID), s.gate, s.opts.Policy, s.opts.Metrics, s.log)
}

// Start arms tracking of eventID for userID on deviceID. Denied
// permissions return ErrPermissionDenied and leave nothing armed.
func (s *Service) Start(ctx context.Context, deviceID string, userID, eventID int64, perms Permissions) (TrackingConfig, error) {
	if !perms.RequestForeground(ctx) {
		return TrackingConfig{}, ErrPermissionDenied
	}
	if !perms.RequestBackground(ctx) {
		return TrackingConfig{}, ErrPermissionDenied
	}

	evt, err := s.events.Event(ctx, eventID)
	if errors.Is(err, attendance.ErrEventNotFound) {
		return TrackingConfig{}, ErrNoEvent
	}
	if err != nil {
		return TrackingConfig{}, fmt.Errorf("load event %d: %w", eventID, err)
	}

	cfg := TrackingConfig{
		EventID:  evt.ID,
		UserID:   userID,
		Geofence: Geofence{Latitude: evt.Latitude, Longitude: evt.Longitude, RadiusM: evt.RadiusM},
		Window:   Window{Start: evt.StartsAt, End: evt.EndsAt},
	}
	if !s.gate.Active(cfg) {
		return TrackingConfig{}, ErrEventInactive
	}

	minutes, err := s.remote.AttendedMinutes(ctx, eventID, userID)
	if err != nil {
		s.log.Warn("load prior attendance failed, starting from zero", "event_id", eventID, "user_id", userID, "error", err)
		minutes = 0
	}
	cfg.InitialSeconds = minutes * 60

	store := s.store(deviceID)
	if err := store.Configure(ctx, &cfg); err != nil {
		return TrackingConfig{}, fmt.Errorf("configure tracking: %w", err)
	}
	if err := s.registrar.Register(ctx, deviceID, TaskID, s.opts.Task); err != nil {
		if rbErr := store.Configure(ctx, nil); rbErr != nil {
			s.log.Error("roll back tracking config failed", "device_id", deviceID, "error", rbErr)
		}
		return TrackingConfig{}, fmt.Errorf("register background task: %w", err)
	}
	s.log.Info("geofence tracking armed", "device_id", deviceID, "event_id", eventID, "user_id", userID,
		"initial_seconds", cfg.InitialSeconds)
	return cfg, nil
}

// Authorize reports ErrNotOwner when deviceID is armed for a user other
// than userID. An unarmed device belongs to nobody.
func (s *Service) Authorize(ctx context.Context, deviceID string, userID int64) error {
	cfg := s.store(deviceID).LoadConfig(ctx)
	if cfg != nil && cfg.UserID != userID {
		return ErrNotOwner
	}
	return nil
}

// Stop disarms tracking on deviceID. Unregistering is best effort.
func (s *Service) Stop(ctx context.Context, deviceID string) error {
	if err := s.registrar.Unregister(ctx, deviceID, TaskID); err != nil {
		s.log.Warn("unregister background task failed", "device_id", deviceID, "error", err)
	}
	return s.store(deviceID).Configure(ctx, nil)
}

type Snapshot struct {
	Config     *TrackingConfig `json:"config"`
	State      TrackingState   `json:"state"`
	Registered bool            `json:"registered"`
	Counted    bool            `json:"counted"`
}

func (s *Service) Snapshot(ctx context.Context, deviceID string) Snapshot {
	store := s.store(deviceID)
	snap := Snapshot{Config: store.LoadConfig(ctx), State: store.LoadState(ctx)}
	snap.Counted = s.gate.Counted(snap.State.TotalSeconds)
	registered, err := s.registrar.IsRegistered(ctx, deviceID, TaskID)
	if err != nil {
		s.log.Warn("registration lookup failed", "device_id", deviceID, "error", err)
	}
	snap.Registered = registered
	return snap
}
