package model

import (
	"math"
	"testing"
)

func TestDistanceKm_KnownCities(t *testing.T) {
	frankfurt := Location{Lat: 50.106732, Lon: 8.663124}
	paris := Location{Lat: 48.877366, Lon: 2.359708}

	got := frankfurt.DistanceKm(paris)
	if got < 470 || got > 482 {
		t.Fatalf("DistanceKm(frankfurt, paris) = %.2f, want ~476", got)
	}
	if back := paris.DistanceKm(frankfurt); math.Abs(back-got) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", got, back)
	}
	if d := paris.DistanceKm(paris); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestDestination_RoundTripsDistanceAndBearing(t *testing.T) {
	origin := Location{Lat: 39.961332, Lon: -82.999083}

	for _, bearing := range []float64{0, 45, 90, 180, 270, 359} {
		dest := origin.Destination(12.5, bearing)
		if d := origin.DistanceKm(dest); math.Abs(d-12.5) > 1e-6 {
			t.Fatalf("bearing %v: distance = %v, want 12.5", bearing, d)
		}
		gotBearing := origin.BearingTo(dest)
		diff := math.Abs(gotBearing - bearing)
		if diff > 180 {
			diff = 360 - diff
		}
		if diff > 1e-6 {
			t.Fatalf("bearing %v: BearingTo = %v", bearing, gotBearing)
		}
	}
}

func TestDestination_WrapsLongitude(t *testing.T) {
	start := Location{Lat: 0, Lon: 179.99}
	dest := start.Destination(10, 90)
	if dest.Lon < -180 || dest.Lon >= 180 {
		t.Fatalf("longitude not normalised: %v", dest.Lon)
	}
	if dest.Lon > 0 {
		t.Fatalf("expected wrap to negative longitude, got %v", dest.Lon)
	}
}

func TestNormalizeBearing(t *testing.T) {
	cases := map[float64]float64{
		-10: 350,
		360: 0,
		450: 90,
		90:  90,
	}
	for in, want := range cases {
		if got := NormalizeBearing(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeBearing(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestKmDegreeConversion(t *testing.T) {
	if got := DegreesToKm(1); got != KmPerDegree {
		t.Fatalf("DegreesToKm(1) = %v, want %v", got, KmPerDegree)
	}
	if got := KmToDegrees(DegreesToKm(2.1)); math.Abs(got-2.1) > 1e-12 {
		t.Fatalf("KmToDegrees(DegreesToKm(2.1)) = %v", got)
	}
}
