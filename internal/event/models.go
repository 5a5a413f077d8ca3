package event

import (
	"errors"
	"time"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
)

var ErrInvalidEvent = errors.New("event needs a positive radius, valid coordinates and ends_at after starts_at")

type Event struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	RadiusM   float64   `json:"geofence_radius_m"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (e Event) validate() error {
	if e.Title == "" || e.RadiusM <= 0 ||
		e.Latitude < -90 || e.Latitude > 90 || e.Longitude < -180 || e.Longitude > 180 ||
		e.StartsAt.IsZero() || !e.EndsAt.After(e.StartsAt) {
		return ErrInvalidEvent
	}
	return nil
}

func (e Event) geofence() attendance.Event {
	return attendance.Event{
		ID:        e.ID,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		RadiusM:   e.RadiusM,
		StartsAt:  e.StartsAt,
		EndsAt:    e.EndsAt,
	}
}
