package core

import (
	"math/rand"
	"time"
)

// FloatRange is an inclusive range of float values.
type FloatRange struct {
	Min float64
	Max float64
}

// IntRange is an inclusive range of integer values.
type IntRange struct {
	Min int
	Max int
}

// DurationRange is an inclusive range of durations with millisecond
// resolution.
type DurationRange struct {
	Min time.Duration
	Max time.Duration
}

// IsZero reports whether the range was left unset.
func (r DurationRange) IsZero() bool { return r.Min == 0 && r.Max == 0 }

func (r FloatRange) sample(rng *rand.Rand) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func (r IntRange) sample(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

func (r DurationRange) sample(rng *rand.Rand) time.Duration {
	minMs := r.Min.Milliseconds()
	maxMs := r.Max.Milliseconds()
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rng.Int63n(maxMs-minMs+1)) * time.Millisecond
}

// ClampPercent limits a probability to [0, 100].
func ClampPercent(p int) int {
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// chance returns true with the given percentage.
func chance(rng *rand.Rand, percent int) bool {
	percent = ClampPercent(percent)
	return rng.Intn(100)+1 <= percent
}
