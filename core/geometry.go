package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/signalsfoundry/iot-tracegen/model"
)

// ErrBrokerOverlap marks a broker layout where a jurisdiction is ambiguous.
var ErrBrokerOverlap = errors.New("broker areas overlap")

// ContainsPoint reports whether p lies inside g. World geofences contain
// every point.
func ContainsPoint(g model.Geofence, p model.Location) bool {
	if g.IsWorld() {
		return true
	}
	return g.Center.DistanceKm(p) <= g.RadiusKm
}

// Intersects reports whether two geofences share at least one point, using
// the circle-circle test on great-circle distance.
func Intersects(a, b model.Geofence) bool {
	if a.IsWorld() || b.IsWorld() {
		return true
	}
	return a.Center.DistanceKm(b.Center) <= a.RadiusKm+b.RadiusKm
}

// ValidateNonOverlapping fails when any broker area intersects more than
// one other area, which would leave clients without an unambiguous home
// broker.
func ValidateNonOverlapping(areas []model.BrokerArea) error {
	return validateOverlaps(areas, 1)
}

// ValidateDisjoint is the strict variant: no two areas may intersect.
func ValidateDisjoint(areas []model.BrokerArea) error {
	return validateOverlaps(areas, 0)
}

func validateOverlaps(areas []model.BrokerArea, allowed int) error {
	for i, a := range areas {
		var overlapping []string
		for j, b := range areas {
			if i == j {
				continue
			}
			if Intersects(a.Area, b.Area) {
				overlapping = append(overlapping, b.Name)
			}
		}
		if len(overlapping) > allowed {
			return fmt.Errorf("%w: %q intersects %v", ErrBrokerOverlap, a.Name, overlapping)
		}
	}
	return nil
}

// RandomInGeofence draws a location uniformly (by area) from g.
func RandomInGeofence(rng *rand.Rand, g model.Geofence) model.Location {
	if g.IsWorld() {
		lat := math.Asin(2*rng.Float64()-1) * 180 / math.Pi
		lon := rng.Float64()*360 - 180
		return model.Location{Lat: lat, Lon: lon}
	}
	// Rounding near the rim can push a sample a hair outside the circle.
	for i := 0; i < 8; i++ {
		distance := g.RadiusKm * math.Sqrt(rng.Float64())
		p := g.Center.Destination(distance, rng.Float64()*360)
		if ContainsPoint(g, p) {
			return p
		}
	}
	return g.Center
}
