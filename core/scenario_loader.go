package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/iot-tracegen/model"
)

// scenarioJSON is the on-disk scenario format. toConfig maps it onto
// ScenarioConfig before validation.
type scenarioJSON struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Warmup      durationJSON  `json:"warmup"`
	Runtime     durationJSON  `json:"runtime"`
	Brokers     []brokerJSON  `json:"brokers"`
	Topics      []topicJSON   `json:"topics"`
	Profiles    []profileJSON `json:"profiles"`
}

type brokerJSON struct {
	Name             string   `json:"name"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	RadiusKm         *float64 `json:"radius_km,omitempty"`
	RadiusDeg        *float64 `json:"radius_deg,omitempty"` // converted with KmPerDegree
	World            bool     `json:"world,omitempty"`
	WorkloadMachines int      `json:"workload_machines,omitempty"`
}

type topicJSON struct {
	Name               string       `json:"name"`
	PublishProbability *int         `json:"publish_probability,omitempty"` // defaults to 100
	Subscription       geofenceJSON `json:"subscription_geofence"`
	Message            geofenceJSON `json:"message_geofence"`
	PayloadBytes       intRangeJSON `json:"payload_bytes"`
}

type geofenceJSON struct {
	Kind     string         `json:"kind"` // "none" | "world" | "circle" | "area"
	RadiusKm floatRangeJSON `json:"radius_km"`
	Sticky   bool           `json:"sticky,omitempty"`
}

type profileJSON struct {
	Name             string            `json:"name"`
	ClientsPerBroker []int             `json:"clients_per_broker"`
	Subscribe        []string          `json:"subscribe,omitempty"`
	Publish          []string          `json:"publish,omitempty"`
	PublishSelection string            `json:"publish_selection,omitempty"`
	PingEachStep     bool              `json:"ping_each_step,omitempty"`
	Step             string            `json:"step"`
	StepInterval     durationRangeJSON `json:"step_interval"`
	Mobility         mobilityJSON      `json:"mobility"`
	Renewal          renewalJSON       `json:"renewal"`
}

type mobilityJSON struct {
	Kind        string         `json:"kind"`
	DistanceKm  floatRangeJSON `json:"distance_km"`
	SpeedKmh    floatRangeJSON `json:"speed_kmh"`
	Probability *int           `json:"probability,omitempty"` // defaults to 100
	Direction   string         `json:"direction,omitempty"`
}

type renewalJSON struct {
	DistanceKm float64           `json:"distance_km,omitempty"`
	Interval   durationRangeJSON `json:"interval"`
	OnMove     bool              `json:"on_move,omitempty"`
}

type floatRangeJSON struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type intRangeJSON struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type durationRangeJSON struct {
	Min durationJSON `json:"min"`
	Max durationJSON `json:"max"`
}

// durationJSON accepts Go duration strings ("5s", "15m") or a plain number
// of milliseconds.
type durationJSON time.Duration

func (d durationJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *durationJSON) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = durationJSON(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = durationJSON(time.Duration(ms) * time.Millisecond)
	return nil
}

// LoadScenario decodes a JSON scenario from r and validates it. Warnings
// produced by validation, such as clamped probabilities, are returned
// alongside the config.
func LoadScenario(r io.Reader) (*ScenarioConfig, []string, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("%w: decode failed: %v", ErrInvalidConfig, err)
	}

	cfg, err := payload.toConfig()
	if err != nil {
		return nil, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}

// LoadScenarioFile is LoadScenario on a file path.
func LoadScenarioFile(path string) (*ScenarioConfig, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return LoadScenario(f)
}

// MarshalScenario renders cfg in the same JSON format LoadScenario reads.
func MarshalScenario(cfg *ScenarioConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fromConfig(cfg)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *scenarioJSON) toConfig() (*ScenarioConfig, error) {
	cfg := &ScenarioConfig{
		Name:        s.Name,
		Description: s.Description,
		Warmup:      time.Duration(s.Warmup),
		Runtime:     time.Duration(s.Runtime),
	}

	for _, b := range s.Brokers {
		center := model.Location{Lat: b.Lat, Lon: b.Lon}
		var area model.Geofence
		switch {
		case b.World:
			area = model.World()
		case b.RadiusKm != nil && b.RadiusDeg != nil:
			return nil, fmt.Errorf("%w: broker %q sets both radius_km and radius_deg", ErrInvalidConfig, b.Name)
		case b.RadiusKm != nil:
			area = model.Circle(center, *b.RadiusKm)
		case b.RadiusDeg != nil:
			area = model.CircleDegrees(center, *b.RadiusDeg)
		default:
			return nil, fmt.Errorf("%w: broker %q has no radius", ErrInvalidConfig, b.Name)
		}
		cfg.Brokers = append(cfg.Brokers, BrokerSpec{
			BrokerArea:       model.BrokerArea{Name: b.Name, Area: area},
			WorkloadMachines: b.WorkloadMachines,
		})
	}

	for _, t := range s.Topics {
		cfg.Topics = append(cfg.Topics, TopicPolicy{
			Name:               t.Name,
			PublishProbability: percentOrDefault(t.PublishProbability),
			Subscription:       t.Subscription.toPolicy(),
			Message:            t.Message.toPolicy(),
			PayloadBytes:       IntRange(t.PayloadBytes),
		})
	}

	for _, p := range s.Profiles {
		cfg.Profiles = append(cfg.Profiles, ClientProfile{
			Name:             p.Name,
			ClientsPerBroker: p.ClientsPerBroker,
			Subscribe:        p.Subscribe,
			Publish:          p.Publish,
			PublishSelection: TopicSelection(strings.ToLower(p.PublishSelection)),
			PingEachStep:     p.PingEachStep,
			Step:             StepMode(strings.ToLower(p.Step)),
			StepInterval:     p.StepInterval.toRange(),
			Mobility: MobilityConfig{
				Kind:        MobilityKind(strings.ToLower(p.Mobility.Kind)),
				DistanceKm:  FloatRange(p.Mobility.DistanceKm),
				SpeedKmh:    FloatRange(p.Mobility.SpeedKmh),
				Probability: percentOrDefault(p.Mobility.Probability),
				Direction:   DirectionMode(strings.ToLower(p.Mobility.Direction)),
			},
			Renewal: RenewalPolicy{
				DistanceKm: p.Renewal.DistanceKm,
				Interval:   p.Renewal.Interval.toRange(),
				OnMove:     p.Renewal.OnMove,
			},
		})
	}
	return cfg, nil
}

func fromConfig(cfg *ScenarioConfig) scenarioJSON {
	out := scenarioJSON{
		Name:        cfg.Name,
		Description: cfg.Description,
		Warmup:      durationJSON(cfg.Warmup),
		Runtime:     durationJSON(cfg.Runtime),
	}
	for _, b := range cfg.Brokers {
		bj := brokerJSON{
			Name:             b.Name,
			Lat:              b.Area.Center.Lat,
			Lon:              b.Area.Center.Lon,
			WorkloadMachines: b.WorkloadMachines,
		}
		if b.Area.IsWorld() {
			bj.World = true
		} else {
			r := b.Area.RadiusKm
			bj.RadiusKm = &r
		}
		out.Brokers = append(out.Brokers, bj)
	}
	for _, t := range cfg.Topics {
		p := t.PublishProbability
		out.Topics = append(out.Topics, topicJSON{
			Name:               t.Name,
			PublishProbability: &p,
			Subscription:       geofenceFromPolicy(t.Subscription),
			Message:            geofenceFromPolicy(t.Message),
			PayloadBytes:       intRangeJSON(t.PayloadBytes),
		})
	}
	for _, p := range cfg.Profiles {
		prob := p.Mobility.Probability
		out.Profiles = append(out.Profiles, profileJSON{
			Name:             p.Name,
			ClientsPerBroker: p.ClientsPerBroker,
			Subscribe:        p.Subscribe,
			Publish:          p.Publish,
			PublishSelection: string(p.PublishSelection),
			PingEachStep:     p.PingEachStep,
			Step:             string(p.Step),
			StepInterval:     durationRangeFrom(p.StepInterval),
			Mobility: mobilityJSON{
				Kind:        string(p.Mobility.Kind),
				DistanceKm:  floatRangeJSON(p.Mobility.DistanceKm),
				SpeedKmh:    floatRangeJSON(p.Mobility.SpeedKmh),
				Probability: &prob,
				Direction:   string(p.Mobility.Direction),
			},
			Renewal: renewalJSON{
				DistanceKm: p.Renewal.DistanceKm,
				Interval:   durationRangeFrom(p.Renewal.Interval),
				OnMove:     p.Renewal.OnMove,
			},
		})
	}
	return out
}

func (g geofenceJSON) toPolicy() GeofencePolicy {
	return GeofencePolicy{
		Kind:     GeofenceKind(strings.ToLower(strings.TrimSpace(g.Kind))),
		RadiusKm: FloatRange(g.RadiusKm),
		Sticky:   g.Sticky,
	}
}

func geofenceFromPolicy(p GeofencePolicy) geofenceJSON {
	return geofenceJSON{Kind: string(p.Kind), RadiusKm: floatRangeJSON(p.RadiusKm), Sticky: p.Sticky}
}

func (r durationRangeJSON) toRange() DurationRange {
	return DurationRange{Min: time.Duration(r.Min), Max: time.Duration(r.Max)}
}

func durationRangeFrom(r DurationRange) durationRangeJSON {
	return durationRangeJSON{Min: durationJSON(r.Min), Max: durationJSON(r.Max)}
}

func percentOrDefault(p *int) int {
	if p == nil {
		return 100
	}
	return *p
}
