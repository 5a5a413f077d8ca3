package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/metrics"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/geo"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/stream"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/tracking"
)

// Prompt asks the foreground app to show the "you have arrived" nudge.
// It has no attendance meaning.
type Prompt struct {
	Type      string    `json:"type"`
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	DistanceM float64   `json:"distance_m"`
	At        time.Time `json:"at"`
}

type Prompter interface {
	Prompt(ctx context.Context, p Prompt) error
}

// SessionID is the stream session a user's foreground app listens on.
func SessionID(userID int64) string {
	return "engagement:" + strconv.FormatInt(userID, 10)
}

// HubPrompter delivers prompts over the websocket hub.
type HubPrompter struct {
	hub *stream.Hub
}

func NewHubPrompter(hub *stream.Hub) *HubPrompter {
	return &HubPrompter{hub: hub}
}

func (p *HubPrompter) Prompt(ctx context.Context, prompt Prompt) error {
	payload, err := json.Marshal(prompt)
	if err != nil {
		return err
	}
	return p.hub.Publish(ctx, SessionID(prompt.UserID), payload)
}

// Watcher surfaces at most one prompt per session, the first time a
// foreground location lands inside the event geofence. It never reads or
// writes tracking state.
type Watcher struct {
	prompter Prompter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewWatcher(prompter Prompter, m *metrics.Metrics, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{prompter: prompter, metrics: m, log: logger}
}

// Observe reports whether this sample triggered the prompt. If delivery
// fails the flag is released so a later sample can try again.
func (w *Watcher) Observe(ctx context.Context, sess *Session, eventID, userID int64, fence tracking.Geofence, s tracking.Sample) (bool, error) {
	if sess.Notified() {
		return false, nil
	}
	dist := geo.DistanceMeters(s.Latitude, s.Longitude, fence.Latitude, fence.Longitude)
	if dist > fence.RadiusM {
		return false, nil
	}
	if !sess.claim() {
		return false, nil
	}

	err := w.prompter.Prompt(ctx, Prompt{
		Type:      "geofence_arrival",
		EventID:   eventID,
		UserID:    userID,
		DistanceM: dist,
		At:        s.Timestamp,
	})
	if err != nil {
		sess.Reset()
		return false, fmt.Errorf("deliver engagement prompt: %w", err)
	}
	w.metrics.Prompt()
	w.log.Info("engagement prompt sent", "event_id", eventID, "user_id", userID, "distance_m", dist)
	return true, nil
}
