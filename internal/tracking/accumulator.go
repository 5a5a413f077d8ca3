package tracking

import (
	"math"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/geo"
)

// Accumulate folds one sample into prev. Seconds are only added for the
// interval between two consecutive samples that were both inside the
// fence; a sample outside breaks accrual without erasing the total.
func Accumulate(prev TrackingState, s Sample, fence Geofence) TrackingState {
	dist := geo.DistanceMeters(s.Latitude, s.Longitude, fence.Latitude, fence.Longitude)
	insideNow := dist <= fence.RadiusM

	base := s.Timestamp
	if prev.LastTimestamp != nil {
		base = *prev.LastTimestamp
	}

	total := prev.TotalSeconds
	if prev.Inside && insideNow {
		delta := math.Round(s.Timestamp.Sub(base).Seconds())
		if delta > 0 {
			total += delta
		}
	}

	ts := s.Timestamp
	return TrackingState{
		TotalSeconds:  total,
		LastTimestamp: &ts,
		Inside:        insideNow,
	}
}
