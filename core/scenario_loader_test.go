package core

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/iot-tracegen/model"
)

const sampleScenario = `
{
  "name": "campus",
  "description": "two campuses",
  "warmup": "3s",
  "runtime": "10m",
  "brokers": [
    { "name": "north", "lat": 52.52, "lon": 13.40, "radius_km": 15, "workload_machines": 2 },
    { "name": "south", "lat": 48.14, "lon": 11.58, "radius_deg": 0.2 }
  ],
  "topics": [
    {
      "name": "weather",
      "publish_probability": 120,
      "subscription_geofence": { "kind": "circle", "radius_km": { "min": 1, "max": 5 }, "sticky": true },
      "message_geofence": { "kind": "world" },
      "payload_bytes": { "min": 20, "max": 40 }
    },
    {
      "name": "alerts",
      "subscription_geofence": { "kind": "none" },
      "message_geofence": { "kind": "area" },
      "payload_bytes": { "min": 8, "max": 8 }
    }
  ],
  "profiles": [
    {
      "name": "student",
      "clients_per_broker": [10, 5],
      "subscribe": ["weather", "alerts"],
      "publish": ["alerts"],
      "ping_each_step": true,
      "step": "travel",
      "step_interval": { "min": "5s", "max": 30000 },
      "mobility": { "kind": "speed", "speed_kmh": { "min": 3, "max": 6 }, "direction": "random" },
      "renewal": { "distance_km": 0.1, "interval": { "min": "1m", "max": "2m" } }
    }
  ]
}
`

func TestLoadScenario_PopulatesConfig(t *testing.T) {
	cfg, warnings, err := LoadScenario(strings.NewReader(sampleScenario))
	if err != nil {
		t.Fatalf("LoadScenario returned error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected the publish probability clamp warning, got %v", warnings)
	}

	if cfg.Name != "campus" || cfg.Warmup != 3*time.Second || cfg.Runtime != 10*time.Minute {
		t.Fatalf("header = %q %v %v", cfg.Name, cfg.Warmup, cfg.Runtime)
	}

	if len(cfg.Brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %d", len(cfg.Brokers))
	}
	if cfg.Brokers[0].Area.RadiusKm != 15 || cfg.Brokers[0].WorkloadMachines != 2 {
		t.Errorf("north broker = %+v", cfg.Brokers[0])
	}
	if got := cfg.Brokers[1].Area.RadiusKm; math.Abs(got-0.2*model.KmPerDegree) > 1e-9 {
		t.Errorf("south radius = %v km, want %v", got, 0.2*model.KmPerDegree)
	}
	if cfg.Brokers[1].WorkloadMachines != 1 {
		t.Errorf("south workload machines = %d, want default 1", cfg.Brokers[1].WorkloadMachines)
	}

	weather := cfg.Topics[0]
	if weather.PublishProbability != 100 {
		t.Errorf("weather probability = %d, want clamped 100", weather.PublishProbability)
	}
	if !weather.Subscription.Sticky || weather.Subscription.RadiusKm != (FloatRange{Min: 1, Max: 5}) {
		t.Errorf("weather subscription = %+v", weather.Subscription)
	}
	if cfg.Topics[1].PublishProbability != 100 {
		t.Errorf("omitted probability should default to 100, got %d", cfg.Topics[1].PublishProbability)
	}
	if cfg.Topics[1].Message.Kind != GeofenceArea {
		t.Errorf("alerts message kind = %q", cfg.Topics[1].Message.Kind)
	}

	p := cfg.Profiles[0]
	if p.StepInterval != (DurationRange{Min: 5 * time.Second, Max: 30 * time.Second}) {
		t.Errorf("step interval = %+v", p.StepInterval)
	}
	if p.Mobility.Probability != 100 || p.Mobility.Direction != DirectionRandom {
		t.Errorf("mobility = %+v", p.Mobility)
	}
	if p.Renewal.Interval != (DurationRange{Min: time.Minute, Max: 2 * time.Minute}) {
		t.Errorf("renewal interval = %+v", p.Renewal.Interval)
	}
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	in := strings.Replace(sampleScenario, `"description"`, `"descripton"`, 1)
	if _, _, err := LoadScenario(strings.NewReader(in)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for a misspelled field, got %v", err)
	}
}

func TestLoadScenario_RejectsBadDurationsAndRadius(t *testing.T) {
	badDuration := strings.Replace(sampleScenario, `"3s"`, `"three seconds"`, 1)
	if _, _, err := LoadScenario(strings.NewReader(badDuration)); err == nil {
		t.Fatalf("expected an error for an unparsable duration")
	}

	bothRadii := strings.Replace(sampleScenario, `"radius_km": 15,`, `"radius_km": 15, "radius_deg": 1,`, 1)
	if _, _, err := LoadScenario(strings.NewReader(bothRadii)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for two radii, got %v", err)
	}
}

func TestMarshalScenario_RoundTrip(t *testing.T) {
	for _, cfg := range Presets() {
		if _, err := cfg.Validate(); err != nil {
			t.Fatalf("preset %s: %v", cfg.Name, err)
		}
		raw, err := MarshalScenario(cfg)
		if err != nil {
			t.Fatalf("MarshalScenario(%s): %v", cfg.Name, err)
		}
		back, _, err := LoadScenario(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("reload %s: %v\n%s", cfg.Name, err, raw)
		}
		if back.Runtime != cfg.Runtime || len(back.Profiles) != len(cfg.Profiles) || len(back.Topics) != len(cfg.Topics) {
			t.Fatalf("reloaded %s differs", cfg.Name)
		}
		for i := range cfg.Brokers {
			if math.Abs(back.Brokers[i].Area.RadiusKm-cfg.Brokers[i].Area.RadiusKm) > 1e-9 {
				t.Fatalf("%s broker %d radius changed", cfg.Name, i)
			}
		}
	}
}
