package tracking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/kvstore"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/codec"
)

const (
	configKey = "geofence_tracking_config"
	stateKey  = "geofence_tracking_state"
)

// Store persists the single active TrackingConfig and its TrackingState
// for one device. Reads never fail: a missing, unreadable or malformed
// value is reported as absent config or zero state. Writes are best
// effort; failures are logged and returned for callers that care.
type Store struct {
	kv     kvstore.Store
	device string
	log    *slog.Logger
}

func NewStore(kv kvstore.Store, deviceID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{kv: kv, device: deviceID, log: logger.With("device_id", deviceID)}
}

func (s *Store) key(name string) string {
	return s.device + ":" + name
}

func (s *Store) LoadConfig(ctx context.Context) *TrackingConfig {
	raw, err := s.kv.Get(ctx, s.key(configKey))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.log.Warn("load tracking config failed", "error", err)
		}
		return nil
	}
	var cfg TrackingConfig
	if err := codec.Unmarshal(raw, &cfg); err != nil {
		s.log.Warn("decode tracking config failed", "error", err)
		return nil
	}
	if !cfg.valid() {
		s.log.Warn("ignoring malformed tracking config", "event_id", cfg.EventID)
		return nil
	}
	return &cfg
}

func (s *Store) SaveConfig(ctx context.Context, cfg TrackingConfig) error {
	raw, err := codec.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key(configKey), raw); err != nil {
		s.log.Warn("save tracking config failed", "error", err)
		return err
	}
	return nil
}

// ClearConfig removes config and state together.
func (s *Store) ClearConfig(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key(configKey), s.key(stateKey)); err != nil {
		s.log.Warn("clear tracking config failed", "error", err)
		return err
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context) TrackingState {
	raw, err := s.kv.Get(ctx, s.key(stateKey))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.log.Warn("load tracking state failed", "error", err)
		}
		return TrackingState{}
	}
	var st TrackingState
	if err := codec.Unmarshal(raw, &st); err != nil {
		s.log.Warn("decode tracking state failed", "error", err)
		return TrackingState{}
	}
	if st.TotalSeconds < 0 || math.IsNaN(st.TotalSeconds) {
		st.TotalSeconds = 0
	}
	return st
}

func (s *Store) SaveState(ctx context.Context, st TrackingState) error {
	raw, err := codec.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key(stateKey), raw); err != nil {
		s.log.Warn("save tracking state failed", "error", err)
		return err
	}
	return nil
}

// Configure arms tracking for cfg, or clears everything when cfg is nil.
// Re-arming never regresses accumulated time and always forces a fresh
// delta baseline on the next sample. State left over from a different
// (event, user) pair is discarded.
func (s *Store) Configure(ctx context.Context, cfg *TrackingConfig) error {
	if cfg == nil {
		return s.ClearConfig(ctx)
	}
	if !cfg.valid() {
		return ErrInvalidConfig
	}
	prev := s.LoadConfig(ctx)
	if err := s.SaveConfig(ctx, *cfg); err != nil {
		return err
	}
	existing := s.LoadState(ctx)
	if prev != nil && (prev.EventID != cfg.EventID || prev.UserID != cfg.UserID) {
		existing = TrackingState{}
	}
	return s.SaveState(ctx, TrackingState{
		TotalSeconds:  math.Max(existing.TotalSeconds, cfg.InitialSeconds),
		LastTimestamp: nil,
		Inside:        existing.Inside,
	})
}

func (s *Store) DeviceID() string {
	return s.device
}
