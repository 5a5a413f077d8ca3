package attendance

import (
	"context"
	"errors"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the Postgres-backed remote store. Every write is an
// upsert on (event_id, user_id) so repeating it is safe.
type Repository struct {
	db db.Querier
}

func NewRepository(db db.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) UpsertAttendance(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_attendance (id, event_id, user_id, check_in_method, attended_at, latitude, longitude, attendance_counted, attendance_duration_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET check_in_method=EXCLUDED.check_in_method,
		    attended_at=EXCLUDED.attended_at,
		    latitude=EXCLUDED.latitude,
		    longitude=EXCLUDED.longitude,
		    attendance_counted=EXCLUDED.attendance_counted,
		    attendance_duration_minutes=EXCLUDED.attendance_duration_minutes
	`, rec.ID, rec.EventID, rec.UserID, rec.CheckInMethod, rec.AttendedAt, rec.Latitude, rec.Longitude, rec.Counted, rec.DurationMinutes)
	return err
}

func (r *Repository) MarkAttended(ctx context.Context, eventID, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_rsvps (event_id, user_id, attended)
		VALUES ($1,$2,TRUE)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET attended=TRUE, updated_at=NOW()
	`, eventID, userID)
	return err
}

// AttendedMinutes returns the duration already recorded for the pair,
// or zero when no row exists.
func (r *Repository) AttendedMinutes(ctx context.Context, eventID, userID int64) (float64, error) {
	var minutes float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(attendance_duration_minutes,0)
		FROM event_attendance WHERE event_id=$1 AND user_id=$2
	`, eventID, userID).Scan(&minutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return minutes, err
}

func (r *Repository) Event(ctx context.Context, eventID int64) (Event, error) {
	var evt Event
	err := r.db.QueryRow(ctx, `
		SELECT id, latitude, longitude, geofence_radius_m, starts_at, ends_at
		FROM events WHERE id=$1
	`, eventID).Scan(&evt.ID, &evt.Latitude, &evt.Longitude, &evt.RadiusM, &evt.StartsAt, &evt.EndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	if err != nil {
		return Event{}, err
	}
	return evt, nil
}
