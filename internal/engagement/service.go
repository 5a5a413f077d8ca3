package engagement

import (
	"context"
	"errors"
	"fmt"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/tracking"
)

var ErrUnknownEvent = errors.New("event not found")

type Service struct {
	events   tracking.EventSource
	sessions *Sessions
	watcher  *Watcher
}

func NewService(events tracking.EventSource, sessions *Sessions, watcher *Watcher) *Service {
	return &Service{events: events, sessions: sessions, watcher: watcher}
}

// Observe feeds one foreground location for userID while they view
// eventID.
func (s *Service) Observe(ctx context.Context, userID, eventID int64, sample tracking.Sample) (bool, error) {
	sess := s.sessions.Get(userID)
	if sess.Notified() {
		return false, nil
	}
	evt, err := s.events.Event(ctx, eventID)
	if errors.Is(err, attendance.ErrEventNotFound) {
		return false, ErrUnknownEvent
	}
	if err != nil {
		return false, fmt.Errorf("load event %d: %w", eventID, err)
	}
	fence := tracking.Geofence{Latitude: evt.Latitude, Longitude: evt.Longitude, RadiusM: evt.RadiusM}
	return s.watcher.Observe(ctx, sess, eventID, userID, fence, sample)
}

// EndSession forgets the prompt for userID.
func (s *Service) EndSession(userID int64) {
	s.sessions.End(userID)
}
