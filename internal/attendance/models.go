package attendance

import (
	"errors"
	"math"
	"time"
)

const CheckInGeofence = "geofence"

var ErrEventNotFound = errors.New("event not found")

// Record is one attendance row, unique per (EventID, UserID).
type Record struct {
	ID              string    `json:"id" dynamodbav:"id"`
	EventID         int64     `json:"event_id" dynamodbav:"event_id"`
	UserID          int64     `json:"user_id" dynamodbav:"user_id"`
	CheckInMethod   string    `json:"check_in_method" dynamodbav:"check_in_method"`
	AttendedAt      time.Time `json:"attended_at" dynamodbav:"attended_at"`
	Latitude        float64   `json:"latitude" dynamodbav:"latitude"`
	Longitude       float64   `json:"longitude" dynamodbav:"longitude"`
	Counted         bool      `json:"attendance_counted" dynamodbav:"attendance_counted"`
	DurationMinutes float64   `json:"attendance_duration_minutes" dynamodbav:"attendance_duration_minutes"`
}

// Event carries the fields geofence tracking needs from an event row.
type Event struct {
	ID        int64     `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	RadiusM   float64   `json:"geofence_radius_m"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// DurationMinutes converts dwell seconds to minutes rounded to two decimals.
func DurationMinutes(seconds float64) float64 {
	return math.Round(seconds/60*100) / 100
}
