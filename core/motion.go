package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/signalsfoundry/iot-tracegen/internal/logging"
	"github.com/signalsfoundry/iot-tracegen/model"
)

const (
	// DirectionJitterDeg is the maximum deviation applied to the heading on
	// each relocation attempt.
	DirectionJitterDeg = 10.0
	// ReverseAfterAttempts is the number of jittered attempts before the
	// heading is turned around.
	ReverseAfterAttempts = 30
	// MaxMoveAttempts bounds the rejection sampling loop.
	MaxMoveAttempts = 32
)

// Move is the input of a single mobility step.
type Move struct {
	From       model.Location
	Direction  float64
	Area       model.Geofence
	TravelTime time.Duration
}

// Step is the outcome of a mobility step. Fallback is set when no attempt
// landed inside the area and the client stayed where it was.
type Step struct {
	Location   model.Location
	DistanceKm float64
	Attempts   int
	Fallback   bool
}

// Moved reports whether the client changed position.
func (s Step) Moved() bool { return s.DistanceKm > 0 }

// MobilityModel proposes the next location of a client that must stay
// inside its broker area.
type MobilityModel interface {
	Next(ctx context.Context, rng *rand.Rand, m Move) Step
}

// StaticMobility never moves.
type StaticMobility struct{}

// Next for static mobility returns the current location.
func (StaticMobility) Next(_ context.Context, _ *rand.Rand, m Move) Step {
	return Step{Location: m.From}
}

// DistanceMobility travels a uniformly drawn distance per step.
type DistanceMobility struct {
	DistanceKm FloatRange
	log        logging.Logger
}

// Next draws a distance and relocates within the area.
func (d *DistanceMobility) Next(ctx context.Context, rng *rand.Rand, m Move) Step {
	return relocate(ctx, d.log, rng, m, d.DistanceKm.sample(rng))
}

// SpeedMobility travels speed * travel time per step, with the speed
// drawn uniformly in km/h.
type SpeedMobility struct {
	SpeedKmh FloatRange
	log      logging.Logger
}

// Next draws a speed and relocates within the area.
func (s *SpeedMobility) Next(ctx context.Context, rng *rand.Rand, m Move) Step {
	speed := s.SpeedKmh.sample(rng)
	return relocate(ctx, s.log, rng, m, speed*m.TravelTime.Hours())
}

// NewMobilityModel chooses the MobilityModel for a profile.
func NewMobilityModel(cfg MobilityConfig, log logging.Logger) MobilityModel {
	if log == nil {
		log = logging.Noop()
	}
	switch cfg.Kind {
	case MobilityDistance:
		return &DistanceMobility{DistanceKm: cfg.DistanceKm, log: log}
	case MobilitySpeed:
		return &SpeedMobility{SpeedKmh: cfg.SpeedKmh, log: log}
	default:
		return StaticMobility{}
	}
}

// relocate projects from m.From along a jittered heading until the
// destination falls inside the area. After ReverseAfterAttempts the heading
// is reversed; after MaxMoveAttempts the client stays put.
func relocate(ctx context.Context, log logging.Logger, rng *rand.Rand, m Move, distanceKm float64) Step {
	if distanceKm <= 0 {
		return Step{Location: m.From}
	}
	for attempt := 1; attempt <= MaxMoveAttempts; attempt++ {
		next := m.From.Destination(distanceKm, attemptHeading(rng, m.Direction, attempt))
		if ContainsPoint(m.Area, next) {
			return Step{Location: next, DistanceKm: distanceKm, Attempts: attempt}
		}
	}
	log.Warn(ctx, "no valid location found, client keeps its position",
		logging.String("from", m.From.String()),
		logging.Float64("distance_km", distanceKm),
		logging.Int("attempts", MaxMoveAttempts),
	)
	return Step{Location: m.From, Attempts: MaxMoveAttempts, Fallback: true}
}

// attemptHeading jitters direction by up to DirectionJitterDeg and turns it
// around once attempt exceeds ReverseAfterAttempts.
func attemptHeading(rng *rand.Rand, direction float64, attempt int) float64 {
	heading := direction + (rng.Float64()*2-1)*DirectionJitterDeg
	if attempt > ReverseAfterAttempts {
		heading += 180
	}
	return model.NormalizeBearing(heading)
}
