package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/iot-tracegen/model"
)

// Broker areas shared by the multi-broker presets. Radii are given in
// degrees of arc.
var (
	columbus  = model.BrokerArea{Name: "Columbus", Area: model.CircleDegrees(model.Location{Lat: 39.961332, Lon: -82.999083}, 5.0)}
	frankfurt = model.BrokerArea{Name: "Frankfurt", Area: model.CircleDegrees(model.Location{Lat: 50.106732, Lon: 8.663124}, 2.1)}
	paris     = model.BrokerArea{Name: "Paris", Area: model.CircleDegrees(model.Location{Lat: 48.877366, Lon: 2.359708}, 2.1)}
)

func threeBrokers(machines int) []BrokerSpec {
	return []BrokerSpec{
		{BrokerArea: columbus, WorkloadMachines: machines},
		{BrokerArea: frankfurt, WorkloadMachines: machines},
		{BrokerArea: paris, WorkloadMachines: machines},
	}
}

func fixedKm(km float64) FloatRange { return FloatRange{Min: km, Max: km} }
func fixedBytes(n int) IntRange     { return IntRange{Min: n, Max: n} }

var presets = map[string]func() *ScenarioConfig{
	"hiking":   hikingScenario,
	"opendata": openDataScenario,
	"datadis":  dataDistributionScenario,
	"matchall": matchAllScenario,
}

// PresetNames lists the built-in scenarios in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns a fresh copy of every built-in scenario.
func Presets() []*ScenarioConfig {
	out := make([]*ScenarioConfig, 0, len(presets))
	for _, name := range PresetNames() {
		out = append(out, presets[name]())
	}
	return out
}

// Preset returns a fresh copy of the named built-in scenario.
func Preset(name string) (*ScenarioConfig, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownScenario, name, PresetNames())
	}
	return build(), nil
}

// hikingScenario: hikers walking in a fixed direction who report road
// conditions and broadcast short texts to other hikers nearby.
func hikingScenario() *ScenarioConfig {
	return &ScenarioConfig{
		Name:        "hiking",
		Description: "hikers with road condition reports and sticky text broadcast subscriptions",
		Brokers:     threeBrokers(3),
		Warmup:      5 * time.Second,
		Runtime:     15 * time.Minute,
		Topics: []TopicPolicy{
			{
				Name:               "road",
				PublishProbability: 10,
				Subscription:       GeofencePolicy{Kind: GeofenceCircle, RadiusKm: fixedKm(0.5)},
				Message:            GeofencePolicy{Kind: GeofenceCircle, RadiusKm: fixedKm(0.5)},
				PayloadBytes:       fixedBytes(100),
			},
			{
				Name:               "text",
				PublishProbability: 50,
				Subscription:       GeofencePolicy{Kind: GeofenceCircle, RadiusKm: FloatRange{Min: 1, Max: 50}, Sticky: true},
				Message:            GeofencePolicy{Kind: GeofenceCircle, RadiusKm: FloatRange{Min: 1, Max: 50}},
				PayloadBytes:       IntRange{Min: 10, Max: 1000},
			},
		},
		Profiles: []ClientProfile{
			{
				Name:             "hiker",
				ClientsPerBroker: []int{1200},
				Subscribe:        []string{"road", "text"},
				Publish:          []string{"road", "text"},
				PingEachStep:     true,
				Step:             StepTravel,
				StepInterval:     DurationRange{Min: 5 * time.Second, Max: 30 * time.Second},
				Mobility: MobilityConfig{
					Kind:        MobilitySpeed,
					SpeedKmh:    FloatRange{Min: 2, Max: 8},
					Probability: 100,
					Direction:   DirectionFixed,
				},
				Renewal: RenewalPolicy{DistanceKm: 0.05},
			},
		},
	}
}

// openDataScenario: stationary environmental sensors publishing world-wide
// and roaming subscribers interested in their surroundings.
func openDataScenario() *ScenarioConfig {
	subscription := GeofencePolicy{Kind: GeofenceCircle, RadiusKm: FloatRange{Min: 1, Max: 100}}
	world := GeofencePolicy{Kind: GeofenceWorld}
	return &ScenarioConfig{
		Name:        "opendata",
		Description: "static open data sensors and roaming subscribers",
		Brokers:     threeBrokers(3),
		Warmup:      5 * time.Second,
		Runtime:     30 * time.Minute,
		Topics: []TopicPolicy{
			{Name: "temperature", PublishProbability: 100, Subscription: subscription, Message: world, PayloadBytes: fixedBytes(100)},
			{Name: "humidity", PublishProbability: 100, Subscription: subscription, Message: world, PayloadBytes: IntRange{Min: 130, Max: 180}},
			{Name: "barometric_pressure", PublishProbability: 100, Subscription: subscription, Message: world, PayloadBytes: IntRange{Min: 210, Max: 240}},
		},
		Profiles: []ClientProfile{
			{
				Name:             "publisher",
				ClientsPerBroker: []int{800},
				Publish:          []string{"temperature", "humidity", "barometric_pressure"},
				PublishSelection: SelectOneTopic,
				Step:             StepTick,
				StepInterval:     DurationRange{Min: 5 * time.Second, Max: 15 * time.Second},
				Mobility:         MobilityConfig{Kind: MobilityStatic},
			},
			{
				Name:             "subscriber",
				ClientsPerBroker: []int{400},
				Subscribe:        []string{"temperature", "humidity", "barometric_pressure"},
				Step:             StepTick,
				StepInterval:     DurationRange{Min: 3 * time.Second, Max: 6 * time.Second},
				Mobility: MobilityConfig{
					Kind:        MobilityDistance,
					DistanceKm:  FloatRange{Min: 0.5, Max: 100},
					Probability: 10,
					Direction:   DirectionRandom,
				},
				Renewal: RenewalPolicy{OnMove: true},
			},
		},
	}
}

// dataDistributionScenario: few mobile publishers with local message
// geofences and subscribers without geofences that renew periodically.
func dataDistributionScenario() *ScenarioConfig {
	none := GeofencePolicy{Kind: GeofenceNone}
	return &ScenarioConfig{
		Name:        "datadis",
		Description: "mobile publishers with local message geofences and periodic subscription renewal",
		Brokers:     threeBrokers(3),
		Warmup:      3 * time.Second,
		Runtime:     30 * time.Minute,
		Topics: []TopicPolicy{
			{
				Name:               "temperature",
				PublishProbability: 100,
				Subscription:       none,
				Message:            GeofencePolicy{Kind: GeofenceCircle, RadiusKm: FloatRange{Min: 1, Max: 10}},
				PayloadBytes:       fixedBytes(100),
			},
			{
				Name:               "humidity",
				PublishProbability: 100,
				Subscription:       none,
				Message:            GeofencePolicy{Kind: GeofenceCircle, RadiusKm: FloatRange{Min: 1, Max: 10}},
				PayloadBytes:       IntRange{Min: 50, Max: 150},
			},
			{
				Name:               "public_announcement",
				PublishProbability: 100,
				Subscription:       none,
				Message:            GeofencePolicy{Kind: GeofenceCircle, RadiusKm: FloatRange{Min: 40, Max: 120}},
				PayloadBytes:       IntRange{Min: 10, Max: 75},
			},
		},
		Profiles: []ClientProfile{
			{
				Name:             "publisher",
				ClientsPerBroker: []int{3},
				Publish:          []string{"temperature", "humidity", "public_announcement"},
				PublishSelection: SelectOneTopic,
				Step:             StepTick,
				StepInterval:     DurationRange{Min: 2 * time.Second, Max: 70 * time.Second},
				Mobility: MobilityConfig{
					Kind:        MobilityDistance,
					DistanceKm:  FloatRange{Min: 1, Max: 20},
					Probability: 50,
					Direction:   DirectionRandom,
				},
			},
			{
				Name:             "subscriber",
				ClientsPerBroker: []int{2},
				Subscribe:        []string{"temperature", "humidity", "public_announcement"},
				PingEachStep:     true,
				Step:             StepTick,
				StepInterval:     DurationRange{Min: 3 * time.Second, Max: 12 * time.Second},
				Mobility: MobilityConfig{
					Kind:        MobilityDistance,
					DistanceKm:  FloatRange{Min: 1, Max: 20},
					Probability: 100,
					Direction:   DirectionRandom,
				},
				Renewal: RenewalPolicy{Interval: DurationRange{Min: 5 * time.Minute, Max: 60 * time.Minute}},
			},
		},
	}
}

// matchAllScenario: every client subscribes to and publishes into the same
// area, so every message matches every subscription.
func matchAllScenario() *ScenarioConfig {
	area := GeofencePolicy{Kind: GeofenceArea}
	return &ScenarioConfig{
		Name:        "matchall",
		Description: "single area where every message matches every subscriber",
		Brokers: []BrokerSpec{{
			BrokerArea:       model.BrokerArea{Name: "matchall", Area: model.Circle(model.Location{Lat: 20, Lon: 20}, 50)},
			WorkloadMachines: 1,
		}},
		Warmup:  5 * time.Second,
		Runtime: time.Minute,
		Topics: []TopicPolicy{
			{Name: "data", PublishProbability: 100, Subscription: area, Message: area, PayloadBytes: fixedBytes(20)},
		},
		Profiles: []ClientProfile{
			{
				Name:             "client",
				ClientsPerBroker: []int{100},
				Subscribe:        []string{"data"},
				Publish:          []string{"data"},
				Step:             StepTick,
				StepInterval:     DurationRange{Min: time.Second, Max: 5 * time.Second},
				Mobility:         MobilityConfig{Kind: MobilityStatic},
			},
		},
	}
}
