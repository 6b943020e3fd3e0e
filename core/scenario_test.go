package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/iot-tracegen/model"
)

func TestValidate_NormalisesDefaults(t *testing.T) {
	cfg := testScenario()
	warnings, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if cfg.Brokers[1].WorkloadMachines != 1 {
		t.Fatalf("zero workload machines should default to 1, got %d", cfg.Brokers[1].WorkloadMachines)
	}
	sensor := cfg.Profiles[1]
	if sensor.Mobility.Kind != MobilityStatic || sensor.Mobility.Direction != DirectionFixed {
		t.Fatalf("sensor mobility defaults = %+v", sensor.Mobility)
	}
	if cfg.Profiles[0].PublishSelection != SelectAllTopics {
		t.Fatalf("publish selection default = %q", cfg.Profiles[0].PublishSelection)
	}
}

func TestValidate_ClampsProbabilities(t *testing.T) {
	cfg := testScenario()
	cfg.Topics[0].PublishProbability = 150
	cfg.Profiles[2].Mobility.Probability = -5

	warnings, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", warnings)
	}
	if cfg.Topics[0].PublishProbability != 100 || cfg.Profiles[2].Mobility.Probability != 0 {
		t.Fatalf("probabilities not clamped: %d / %d", cfg.Topics[0].PublishProbability, cfg.Profiles[2].Mobility.Probability)
	}
	if !strings.Contains(warnings[0], "clamped to 100") {
		t.Fatalf("warning text = %q", warnings[0])
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*ScenarioConfig){
		"no brokers":       func(c *ScenarioConfig) { c.Brokers = nil },
		"inverted payload": func(c *ScenarioConfig) { c.Topics[0].PayloadBytes = IntRange{Min: 10, Max: 1} },
		"inverted radius": func(c *ScenarioConfig) {
			c.Topics[0].Message.RadiusKm = FloatRange{Min: 5, Max: 1}
		},
		"inverted step": func(c *ScenarioConfig) {
			c.Profiles[0].StepInterval = DurationRange{Min: time.Minute, Max: time.Second}
		},
		"zero step":        func(c *ScenarioConfig) { c.Profiles[1].StepInterval = DurationRange{} },
		"unknown topic":    func(c *ScenarioConfig) { c.Profiles[0].Subscribe = []string{"missing"} },
		"count mismatch":   func(c *ScenarioConfig) { c.Profiles[0].ClientsPerBroker = []int{1, 2, 3} },
		"short warmup":     func(c *ScenarioConfig) { c.Warmup = time.Millisecond },
		"runtime <= warmup": func(c *ScenarioConfig) { c.Runtime = c.Warmup },
		"speed on ticks":   func(c *ScenarioConfig) { c.Profiles[0].Step = StepTick },
		"duplicate topic":  func(c *ScenarioConfig) { c.Topics[1].Name = c.Topics[0].Name },
		"unknown geofence": func(c *ScenarioConfig) { c.Topics[1].Message.Kind = "polygon" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testScenario()
			mutate(cfg)
			if _, err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_BrokerOverlapIsFatal(t *testing.T) {
	cfg := testScenario()
	center := cfg.Brokers[0].Area.Center
	cfg.Brokers = append(cfg.Brokers, BrokerSpec{
		BrokerArea: model.BrokerArea{Name: "gamma", Area: model.Circle(center.Destination(30, 90), 25)},
	})
	cfg.Profiles[0].ClientsPerBroker = []int{1}

	if _, err := cfg.Validate(); !errors.Is(err, ErrBrokerOverlap) {
		t.Fatalf("expected ErrBrokerOverlap, got %v", err)
	}
}

func TestClientCounts(t *testing.T) {
	cfg := validScenario(t)
	total, subscribers, publishers := cfg.ClientCounts()

	// walker 3+1, sensor 2+2, roamer 1+1
	if total != 10 || subscribers != 6 || publishers != 8 {
		t.Fatalf("ClientCounts = %d/%d/%d, want 10/6/8", total, subscribers, publishers)
	}
	if cfg.SlotSpan() != 4*time.Millisecond {
		t.Fatalf("SlotSpan = %v, want 4ms", cfg.SlotSpan())
	}
}
