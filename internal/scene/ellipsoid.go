package scene

import "math"

// WGS84 reference ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Cartesian3 is an Earth-centred, Earth-fixed position in meters.
type Cartesian3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromDegrees converts geodetic longitude and latitude in degrees and
// ellipsoidal height in meters to ECEF.
func FromDegrees(lon, lat, height float64) Cartesian3 {
	lambda := lon * math.Pi / 180
	phi := lat * math.Pi / 180

	sinPhi := math.Sin(phi)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinPhi*sinPhi)

	return Cartesian3{
		X: (n + height) * math.Cos(phi) * math.Cos(lambda),
		Y: (n + height) * math.Cos(phi) * math.Sin(lambda),
		Z: (n*(1-wgs84E2) + height) * sinPhi,
	}
}
