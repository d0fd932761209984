package scoring

import "math"

// earthRadiusM is the mean Earth radius used for haversine distances.
const earthRadiusM = 6371000.0

// GeoPoint is a WGS84 coordinate pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMeters returns the great-circle (haversine) distance between two points.
func DistanceMeters(a, b GeoPoint) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLng*sinLng

	// Floating-point error can push sqrt(h) fractionally above 1, where asin
	// is undefined. Clamp before calling.
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BearingDeg returns the initial compass bearing from a to b, in [0, 360).
func BearingDeg(a, b GeoPoint) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLng := radians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	return math.Mod(degrees(math.Atan2(y, x))+360, 360)
}

// AngularDiffDeg returns the smallest absolute circular difference between two
// headings in degrees, in [0, 180]. Handles wraparound: 350 vs 10 is 20, not 340.
func AngularDiffDeg(a, b float64) float64 {
	return math.Abs(math.Mod(a-b+540, 360) - 180)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
