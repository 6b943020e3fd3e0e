package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// GeofenceShape identifies the shape of a geofence.
type GeofenceShape string

const (
	GeofenceCircle GeofenceShape = "circle"
	GeofenceWorld  GeofenceShape = "world"
)

// ErrMalformedWKT is returned when a geofence string cannot be parsed.
var ErrMalformedWKT = errors.New("malformed geofence wkt")

// Geofence is either a circle around Center or the whole world.
// RadiusKm is ignored for world geofences.
type Geofence struct {
	Shape    GeofenceShape `json:"shape"`
	Center   Location      `json:"center"`
	RadiusKm float64       `json:"radius_km"`

	// radiusDeg is the radius exactly as given in degrees, kept so a circle
	// read from WKT renders back to the same text. Only valid while
	// RadiusKm still equals its conversion.
	radiusDeg float64
}

// Circle builds a circular geofence with a radius in kilometres.
func Circle(center Location, radiusKm float64) Geofence {
	return Geofence{Shape: GeofenceCircle, Center: center, RadiusKm: radiusKm}
}

// CircleDegrees builds a circular geofence from a radius given in degrees.
func CircleDegrees(center Location, radiusDeg float64) Geofence {
	g := Circle(center, DegreesToKm(radiusDeg))
	g.radiusDeg = radiusDeg
	return g
}

// World returns the geofence matching every location.
func World() Geofence {
	return Geofence{Shape: GeofenceWorld}
}

// IsWorld reports whether g covers the whole world.
func (g Geofence) IsWorld() bool { return g.Shape == GeofenceWorld }

// RadiusDegrees returns the radius in degrees of arc. Circles built from
// degrees return the original value.
func (g Geofence) RadiusDegrees() float64 {
	if g.radiusDeg != 0 && DegreesToKm(g.radiusDeg) == g.RadiusKm {
		return g.radiusDeg
	}
	return KmToDegrees(g.RadiusKm)
}

// worldWKT follows the ENVELOPE(minX, maxX, maxY, minY) ordering.
const worldWKT = "ENVELOPE (-180, 180, 90, -90)"

// WKT renders the geofence as well-known text. Circles become a buffered
// point whose distance is expressed in degrees.
func (g Geofence) WKT() string {
	if g.IsWorld() {
		return worldWKT
	}
	return fmt.Sprintf("BUFFER (POINT (%s %s), %s)",
		formatFloat(g.Center.Lon),
		formatFloat(g.Center.Lat),
		formatFloat(g.RadiusDegrees()),
	)
}

func (g Geofence) String() string {
	if g.IsWorld() {
		return "world"
	}
	return fmt.Sprintf("circle%s r=%.3fkm", g.Center, g.RadiusKm)
}

var bufferPattern = regexp.MustCompile(
	`^BUFFER\s*\(\s*POINT\s*\(\s*(\S+)\s+(\S+)\s*\)\s*,\s*(\S+)\s*\)$`,
)

// ParseWKT inverts WKT.
func ParseWKT(s string) (Geofence, error) {
	s = strings.TrimSpace(s)
	if strings.Join(strings.Fields(s), "") == strings.Join(strings.Fields(worldWKT), "") {
		return World(), nil
	}

	m := bufferPattern.FindStringSubmatch(s)
	if m == nil {
		return Geofence{}, fmt.Errorf("%w: %q", ErrMalformedWKT, s)
	}
	lon, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Geofence{}, fmt.Errorf("%w: longitude %q", ErrMalformedWKT, m[1])
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Geofence{}, fmt.Errorf("%w: latitude %q", ErrMalformedWKT, m[2])
	}
	radiusDeg, err := strconv.ParseFloat(m[3], 64)
	if err != nil || radiusDeg < 0 {
		return Geofence{}, fmt.Errorf("%w: radius %q", ErrMalformedWKT, m[3])
	}
	return CircleDegrees(Location{Lat: lat, Lon: lon}, radiusDeg), nil
}

// BrokerArea is the jurisdiction served by a single broker.
type BrokerArea struct {
	Name string   `json:"name"`
	Area Geofence `json:"area"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
