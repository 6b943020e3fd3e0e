package model

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used for all great-circle
	// calculations (kilometres).
	EarthRadiusKm = 6371.0

	// KmPerDegree converts between degrees of arc and kilometres at the
	// equator. Geofence radii are stored in kilometres; degrees only appear
	// at the boundaries (WKT, scenario files).
	KmPerDegree = 111.32
)

// KmToDegrees converts a distance in kilometres to degrees of arc.
func KmToDegrees(km float64) float64 { return km / KmPerDegree }

// DegreesToKm converts degrees of arc to kilometres.
func DegreesToKm(deg float64) float64 { return deg * KmPerDegree }

// Location is a WGS84 point in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm returns the haversine distance to other.
func (l Location) DistanceKm(other Location) float64 {
	lat1 := toRadians(l.Lat)
	lat2 := toRadians(other.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(other.Lon - l.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// BearingTo returns the initial great-circle bearing towards other in
// degrees, normalised to [0, 360).
func (l Location) BearingTo(other Location) float64 {
	lat1 := toRadians(l.Lat)
	lat2 := toRadians(other.Lat)
	dLon := toRadians(other.Lon - l.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeBearing(toDegrees(math.Atan2(y, x)))
}

// Destination projects the location distanceKm along the great circle
// starting at bearingDeg.
func (l Location) Destination(distanceKm, bearingDeg float64) Location {
	delta := distanceKm / EarthRadiusKm
	theta := toRadians(bearingDeg)
	lat1 := toRadians(l.Lat)
	lon1 := toRadians(l.Lon)

	sinLat2 := math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta)
	lat2 := math.Asin(clamp(sinLat2, -1, 1))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*sinLat2,
	)

	return Location{
		Lat: toDegrees(lat2),
		Lon: normalizeLongitude(toDegrees(lon2)),
	}
}

func (l Location) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", l.Lat, l.Lon)
}

// NormalizeBearing maps any angle in degrees into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
