package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/iot-tracegen/model"
)

var (
	ErrInvalidConfig   = errors.New("invalid scenario config")
	ErrUnknownScenario = errors.New("unknown scenario")
)

// GeofenceKind selects how a topic geofence is produced.
type GeofenceKind string

const (
	GeofenceNone   GeofenceKind = "none"
	GeofenceWorld  GeofenceKind = "world"
	GeofenceCircle GeofenceKind = "circle"
	// GeofenceArea reuses the owning broker's area.
	GeofenceArea GeofenceKind = "area"
)

// GeofencePolicy describes the geofence attached to a subscription or a
// message. Sticky circles are drawn once per client around its starting
// location and reused for every emission.
type GeofencePolicy struct {
	Kind     GeofenceKind
	RadiusKm FloatRange
	Sticky   bool
}

// TopicPolicy is the content policy of a single topic.
type TopicPolicy struct {
	Name               string
	PublishProbability int
	Subscription       GeofencePolicy
	Message            GeofencePolicy
	PayloadBytes       IntRange
}

// TopicSelection decides which of a profile's publish topics a client uses.
type TopicSelection string

const (
	SelectAllTopics TopicSelection = "all"
	// SelectOneTopic picks a single topic per client, like a sensor that
	// only measures one quantity.
	SelectOneTopic TopicSelection = "one"
)

// StepMode decides how the clock advances between loop iterations.
type StepMode string

const (
	// StepTravel samples a travel time; the client is moving for the whole
	// gap, which is what speed based mobility needs.
	StepTravel StepMode = "travel"
	// StepTick samples an idle gap; moves are instantaneous.
	StepTick StepMode = "tick"
)

// MobilityKind selects the MobilityModel implementation.
type MobilityKind string

const (
	MobilityStatic   MobilityKind = "static"
	MobilityDistance MobilityKind = "distance"
	MobilitySpeed    MobilityKind = "speed"
)

// DirectionMode selects between one heading per client and a fresh heading
// on every move.
type DirectionMode string

const (
	DirectionFixed  DirectionMode = "fixed"
	DirectionRandom DirectionMode = "random"
)

// MobilityConfig configures client movement.
type MobilityConfig struct {
	Kind        MobilityKind
	DistanceKm  FloatRange
	SpeedKmh    FloatRange
	Probability int
	Direction   DirectionMode
}

// RenewalPolicy controls when subscriptions are re-sent.
type RenewalPolicy struct {
	DistanceKm float64
	Interval   DurationRange
	OnMove     bool
}

// ClientProfile describes one kind of client in a scenario.
type ClientProfile struct {
	Name             string
	ClientsPerBroker []int
	Subscribe        []string
	Publish          []string
	PublishSelection TopicSelection
	PingEachStep     bool
	Step             StepMode
	StepInterval     DurationRange
	Mobility         MobilityConfig
	Renewal          RenewalPolicy
}

// Subscribes reports whether clients of this profile subscribe to anything.
func (p *ClientProfile) Subscribes() bool { return len(p.Subscribe) > 0 }

// Publishes reports whether clients of this profile publish anything.
func (p *ClientProfile) Publishes() bool { return len(p.Publish) > 0 }

// Clients returns the number of clients of this profile at broker index b.
// A single entry applies to every broker.
func (p *ClientProfile) Clients(b int) int {
	switch {
	case len(p.ClientsPerBroker) == 1:
		return p.ClientsPerBroker[0]
	case b < len(p.ClientsPerBroker):
		return p.ClientsPerBroker[b]
	default:
		return 0
	}
}

// BrokerSpec is a broker jurisdiction plus the number of workload machines
// its clients are spread across.
type BrokerSpec struct {
	model.BrokerArea
	WorkloadMachines int
}

// ScenarioConfig is the explicit, serialisable description of a
// generation run.
type ScenarioConfig struct {
	Name        string
	Description string
	Brokers     []BrokerSpec
	Warmup      time.Duration
	Runtime     time.Duration
	Topics      []TopicPolicy
	Profiles    []ClientProfile
}

// Areas returns the broker areas in configuration order.
func (c *ScenarioConfig) Areas() []model.BrokerArea {
	areas := make([]model.BrokerArea, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		areas = append(areas, b.BrokerArea)
	}
	return areas
}

// TopicIndex returns the position of the named topic, or -1.
func (c *ScenarioConfig) TopicIndex(name string) int {
	for i, t := range c.Topics {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// SlotSpan is the largest millisecond offset used by co-timed actions:
// subscribe slots follow the ping, publish slots follow the subscribes.
func (c *ScenarioConfig) SlotSpan() time.Duration {
	return time.Duration(2*len(c.Topics)) * time.Millisecond
}

// ClientCounts returns the total, subscribing and publishing client counts.
func (c *ScenarioConfig) ClientCounts() (total, subscribers, publishers int) {
	for i := range c.Profiles {
		p := &c.Profiles[i]
		for b := range c.Brokers {
			n := p.Clients(b)
			total += n
			if p.Subscribes() {
				subscribers += n
			}
			if p.Publishes() {
				publishers += n
			}
		}
	}
	return total, subscribers, publishers
}

// Validate checks the configuration and normalises it in place. Values that
// are out of range but usable, such as probabilities above 100, are clamped
// and reported as warnings; everything else is an error wrapping
// ErrInvalidConfig or ErrBrokerOverlap.
func (c *ScenarioConfig) Validate() ([]string, error) {
	var warnings []string

	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("%w: at least one broker is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Brokers))
	for i := range c.Brokers {
		b := &c.Brokers[i]
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("%w: broker %d has no name", ErrInvalidConfig, i)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("%w: duplicate broker %q", ErrInvalidConfig, b.Name)
		}
		seen[b.Name] = true
		if !b.Area.IsWorld() && b.Area.RadiusKm < 0 {
			return nil, fmt.Errorf("%w: broker %q has a negative radius", ErrInvalidConfig, b.Name)
		}
		if b.WorkloadMachines < 0 {
			return nil, fmt.Errorf("%w: broker %q has negative workload machines", ErrInvalidConfig, b.Name)
		}
		if b.WorkloadMachines == 0 {
			b.WorkloadMachines = 1
		}
	}
	if err := ValidateNonOverlapping(c.Areas()); err != nil {
		return nil, err
	}

	if c.Runtime <= 0 {
		return nil, fmt.Errorf("%w: runtime must be positive", ErrInvalidConfig)
	}
	if c.Warmup < c.SlotSpan() {
		return nil, fmt.Errorf("%w: warmup %s is shorter than the %s action slot span", ErrInvalidConfig, c.Warmup, c.SlotSpan())
	}
	if c.Runtime < c.Warmup+c.SlotSpan() {
		return nil, fmt.Errorf("%w: runtime %s does not extend past warmup %s", ErrInvalidConfig, c.Runtime, c.Warmup)
	}

	topics := make(map[string]bool, len(c.Topics))
	for i := range c.Topics {
		t := &c.Topics[i]
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("%w: topic %d has no name", ErrInvalidConfig, i)
		}
		if topics[t.Name] {
			return nil, fmt.Errorf("%w: duplicate topic %q", ErrInvalidConfig, t.Name)
		}
		topics[t.Name] = true
		if p := ClampPercent(t.PublishProbability); p != t.PublishProbability {
			warnings = append(warnings, fmt.Sprintf("topic %q publish probability %d clamped to %d", t.Name, t.PublishProbability, p))
			t.PublishProbability = p
		}
		if err := validateIntRange("topic "+t.Name+" payload bytes", t.PayloadBytes); err != nil {
			return nil, err
		}
		if t.PayloadBytes.Min < 0 {
			return nil, fmt.Errorf("%w: topic %q payload size is negative", ErrInvalidConfig, t.Name)
		}
		if err := validateGeofencePolicy("topic "+t.Name+" subscription geofence", &t.Subscription); err != nil {
			return nil, err
		}
		if err := validateGeofencePolicy("topic "+t.Name+" message geofence", &t.Message); err != nil {
			return nil, err
		}
	}

	if len(c.Profiles) == 0 {
		return nil, fmt.Errorf("%w: at least one client profile is required", ErrInvalidConfig)
	}
	profiles := make(map[string]bool, len(c.Profiles))
	for i := range c.Profiles {
		w, err := c.validateProfile(&c.Profiles[i], topics)
		if err != nil {
			return nil, err
		}
		if profiles[c.Profiles[i].Name] {
			return nil, fmt.Errorf("%w: duplicate profile %q", ErrInvalidConfig, c.Profiles[i].Name)
		}
		profiles[c.Profiles[i].Name] = true
		warnings = append(warnings, w...)
	}
	return warnings, nil
}

func (c *ScenarioConfig) validateProfile(p *ClientProfile, topics map[string]bool) ([]string, error) {
	var warnings []string
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: profile has no name", ErrInvalidConfig)
	}
	if n := len(p.ClientsPerBroker); n != 1 && n != len(c.Brokers) {
		return nil, fmt.Errorf("%w: profile %q lists %d client counts for %d brokers", ErrInvalidConfig, p.Name, n, len(c.Brokers))
	}
	for _, n := range p.ClientsPerBroker {
		if n < 0 {
			return nil, fmt.Errorf("%w: profile %q has a negative client count", ErrInvalidConfig, p.Name)
		}
	}
	for _, name := range append(append([]string(nil), p.Subscribe...), p.Publish...) {
		if !topics[name] {
			return nil, fmt.Errorf("%w: profile %q references unknown topic %q", ErrInvalidConfig, p.Name, name)
		}
	}

	switch p.PublishSelection {
	case "":
		p.PublishSelection = SelectAllTopics
	case SelectAllTopics, SelectOneTopic:
	default:
		return nil, fmt.Errorf("%w: profile %q has unknown publish selection %q", ErrInvalidConfig, p.Name, p.PublishSelection)
	}

	switch p.Step {
	case "":
		p.Step = StepTick
	case StepTick, StepTravel:
	default:
		return nil, fmt.Errorf("%w: profile %q has unknown step mode %q", ErrInvalidConfig, p.Name, p.Step)
	}
	if err := validateDurationRange("profile "+p.Name+" step interval", p.StepInterval); err != nil {
		return nil, err
	}
	if p.StepInterval.Min < time.Millisecond {
		return nil, fmt.Errorf("%w: profile %q step interval must be at least 1ms", ErrInvalidConfig, p.Name)
	}

	m := &p.Mobility
	switch m.Kind {
	case "":
		m.Kind = MobilityStatic
	case MobilityStatic:
	case MobilityDistance:
		if err := validateFloatRange("profile "+p.Name+" travel distance", m.DistanceKm); err != nil {
			return nil, err
		}
		if m.DistanceKm.Min < 0 {
			return nil, fmt.Errorf("%w: profile %q travel distance is negative", ErrInvalidConfig, p.Name)
		}
	case MobilitySpeed:
		if err := validateFloatRange("profile "+p.Name+" travel speed", m.SpeedKmh); err != nil {
			return nil, err
		}
		if m.SpeedKmh.Min < 0 {
			return nil, fmt.Errorf("%w: profile %q travel speed is negative", ErrInvalidConfig, p.Name)
		}
		if p.Step != StepTravel {
			return nil, fmt.Errorf("%w: profile %q uses speed mobility without travel steps", ErrInvalidConfig, p.Name)
		}
	default:
		return nil, fmt.Errorf("%w: profile %q has unknown mobility %q", ErrInvalidConfig, p.Name, m.Kind)
	}
	if clamped := ClampPercent(m.Probability); clamped != m.Probability {
		warnings = append(warnings, fmt.Sprintf("profile %q mobility probability %d clamped to %d", p.Name, m.Probability, clamped))
		m.Probability = clamped
	}
	switch m.Direction {
	case "":
		m.Direction = DirectionFixed
	case DirectionFixed, DirectionRandom:
	default:
		return nil, fmt.Errorf("%w: profile %q has unknown direction mode %q", ErrInvalidConfig, p.Name, m.Direction)
	}

	if p.Renewal.DistanceKm < 0 {
		return nil, fmt.Errorf("%w: profile %q renewal distance is negative", ErrInvalidConfig, p.Name)
	}
	if err := validateDurationRange("profile "+p.Name+" renewal interval", p.Renewal.Interval); err != nil {
		return nil, err
	}
	if !p.Renewal.Interval.IsZero() && p.Renewal.Interval.Min < time.Millisecond {
		return nil, fmt.Errorf("%w: profile %q renewal interval must be at least 1ms", ErrInvalidConfig, p.Name)
	}
	return warnings, nil
}

func validateGeofencePolicy(what string, g *GeofencePolicy) error {
	switch g.Kind {
	case "":
		g.Kind = GeofenceNone
		return nil
	case GeofenceNone, GeofenceWorld, GeofenceArea:
		return nil
	case GeofenceCircle:
		if err := validateFloatRange(what+" radius", g.RadiusKm); err != nil {
			return err
		}
		if g.RadiusKm.Min < 0 {
			return fmt.Errorf("%w: %s radius is negative", ErrInvalidConfig, what)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidConfig, what, g.Kind)
	}
}

func validateFloatRange(what string, r FloatRange) error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s min %v exceeds max %v", ErrInvalidConfig, what, r.Min, r.Max)
	}
	return nil
}

func validateIntRange(what string, r IntRange) error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s min %d exceeds max %d", ErrInvalidConfig, what, r.Min, r.Max)
	}
	return nil
}

func validateDurationRange(what string, r DurationRange) error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s min %s exceeds max %s", ErrInvalidConfig, what, r.Min, r.Max)
	}
	if r.Min < 0 {
		return fmt.Errorf("%w: %s is negative", ErrInvalidConfig, what)
	}
	return nil
}
