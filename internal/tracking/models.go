package tracking

import "time"

// TaskID names the background location task registered with the scheduler.
const TaskID = "background-geofence-attendance"

// DefaultThresholdMinutes is the dwell time after which attendance counts.
const DefaultThresholdMinutes = 3.0

type Geofence struct {
	Latitude  float64 `cbor:"latitude" json:"latitude"`
	Longitude float64 `cbor:"longitude" json:"longitude"`
	RadiusM   float64 `cbor:"radius_m" json:"radius_m"`
}

// Window bounds the period in which tracking is meaningful. Both ends
// are inclusive.
type Window struct {
	Start time.Time `cbor:"start" json:"start"`
	End   time.Time `cbor:"end" json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// TrackingConfig identifies the one event this device is tracking.
type TrackingConfig struct {
	EventID        int64    `cbor:"event_id" json:"event_id"`
	UserID         int64    `cbor:"user_id" json:"user_id"`
	Geofence       Geofence `cbor:"geofence" json:"geofence"`
	Window         Window   `cbor:"window" json:"window"`
	InitialSeconds float64  `cbor:"initial_seconds" json:"initial_seconds"`
}

func (c TrackingConfig) valid() bool {
	return c.EventID > 0 && c.UserID > 0 && c.Geofence.RadiusM > 0 &&
		!c.Window.End.Before(c.Window.Start) && c.InitialSeconds >= 0
}

// TrackingState is the dwell accounting carried between invocations.
type TrackingState struct {
	TotalSeconds  float64    `cbor:"total_seconds" json:"total_seconds"`
	LastTimestamp *time.Time `cbor:"last_timestamp" json:"last_timestamp,omitempty"`
	Inside        bool       `cbor:"inside" json:"inside"`
}

// Sample is one location fix delivered by the platform.
type Sample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Batch is what the platform hands the driver on each invocation. Err is
// set when the platform reports a delivery error instead of samples.
type Batch struct {
	Samples []Sample
	Err     error
}

// TaskOptions are passed through to the scheduler on registration.
type TaskOptions struct {
	Accuracy            string        `cbor:"accuracy" json:"accuracy"`
	MinTimeInterval     time.Duration `cbor:"min_time_interval" json:"min_time_interval"`
	MinDistanceInterval float64       `cbor:"min_distance_interval" json:"min_distance_interval"`
	DeferredInterval    time.Duration `cbor:"deferred_interval" json:"deferred_interval"`
}

func DefaultTaskOptions() TaskOptions {
	return TaskOptions{
		Accuracy:            "balanced",
		MinTimeInterval:     time.Minute,
		MinDistanceInterval: 20,
		DeferredInterval:    5 * time.Minute,
	}
}
