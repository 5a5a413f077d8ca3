package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceMeters returns the great-circle distance between two coordinates
// using the haversine formula on a mean Earth radius.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sinLng*sinLng

	// rounding can push a past 1 for near-antipodal points
	a = math.Min(1, math.Max(0, a))
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
