package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/signalsfoundry/iot-tracegen/internal/logging"
	"github.com/signalsfoundry/iot-tracegen/model"
	"github.com/signalsfoundry/iot-tracegen/timectrl"
)

// Phase is the lifecycle state of an ActionTimeline.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWarmup
	PhaseRunning
	PhaseFinalizing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseWarmup:
		return "warmup"
	case PhaseRunning:
		return "running"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Trace is the generated output of one client.
type Trace struct {
	Actions       []model.Action
	StartLocation model.Location
	FinalLocation model.Location
	Stats         Stats
}

// ActionTimeline generates the actions of a single client. It owns all
// client state: location, heading, last subscribed location, renewal
// deadline and the virtual clock. A timeline is used once and is not safe
// for concurrent use.
type ActionTimeline struct {
	cfg      *ScenarioConfig
	profile  *ClientProfile
	broker   model.BrokerArea
	areas    []model.BrokerArea
	rng      *rand.Rand
	log      logging.Logger
	mobility MobilityModel
	clock    *timectrl.Clock

	phase          Phase
	location       model.Location
	start          model.Location
	direction      float64
	lastSubscribed model.Location
	nextRenewal    time.Duration
	pendingRenewal bool

	subscribeTopics []int
	publishTopics   []int
	stickySub       map[int]*model.Geofence
	stickyMsg       map[int]*model.Geofence

	actions []model.Action
	stats   Stats
}

// NewActionTimeline prepares a timeline for one client of profile homed at
// broker. cfg must have passed Validate.
func NewActionTimeline(cfg *ScenarioConfig, profile *ClientProfile, broker model.BrokerArea, rng *rand.Rand, log logging.Logger) *ActionTimeline {
	if log == nil {
		log = logging.Noop()
	}
	return &ActionTimeline{
		cfg:       cfg,
		profile:   profile,
		broker:    broker,
		areas:     cfg.Areas(),
		rng:       rng,
		log:       log,
		mobility:  NewMobilityModel(profile.Mobility, log),
		clock:     timectrl.NewClock(0),
		stickySub: make(map[int]*model.Geofence),
		stickyMsg: make(map[int]*model.Geofence),
	}
}

// Phase returns the current lifecycle state.
func (t *ActionTimeline) Phase() Phase { return t.phase }

// Generate runs the client from Init to Done and returns its trace.
// Timestamps are non-decreasing and every location lies inside the
// broker area. The context is only checked between loop iterations.
func (t *ActionTimeline) Generate(ctx context.Context) (Trace, error) {
	t.init()

	t.phase = PhaseWarmup
	t.warmup()

	t.phase = PhaseRunning
	t.clock.SetTime(t.cfg.Warmup)
	span := t.cfg.SlotSpan()
	for t.clock.Now()+span <= t.cfg.Runtime {
		if err := ctx.Err(); err != nil {
			return Trace{}, err
		}
		t.step(ctx)
	}

	t.phase = PhaseFinalizing
	t.clock.SetTime(t.cfg.Runtime)
	t.ping(t.cfg.Runtime.Milliseconds())

	t.phase = PhaseDone
	return Trace{
		Actions:       t.actions,
		StartLocation: t.start,
		FinalLocation: t.location,
		Stats:         t.stats,
	}, nil
}

func (t *ActionTimeline) init() {
	t.location = RandomInGeofence(t.rng, t.broker.Area)
	t.start = t.location
	t.lastSubscribed = t.location
	t.direction = t.rng.Float64() * 360

	for _, name := range t.profile.Subscribe {
		t.subscribeTopics = append(t.subscribeTopics, t.cfg.TopicIndex(name))
	}
	for _, name := range t.profile.Publish {
		t.publishTopics = append(t.publishTopics, t.cfg.TopicIndex(name))
	}
	if t.profile.PublishSelection == SelectOneTopic && len(t.publishTopics) > 1 {
		t.publishTopics = []int{t.publishTopics[t.rng.Intn(len(t.publishTopics))]}
	}

	for _, i := range t.subscribeTopics {
		if p := t.cfg.Topics[i].Subscription; p.Sticky {
			t.stickySub[i] = t.newGeofence(p)
		}
	}
	for _, i := range t.publishTopics {
		if p := t.cfg.Topics[i].Message; p.Sticky {
			t.stickyMsg[i] = t.newGeofence(p)
		}
	}
}

// warmup announces the client at a random point before the running phase,
// leaving room for all co-timed slots.
func (t *ActionTimeline) warmup() {
	latest := t.cfg.Warmup - t.cfg.SlotSpan()
	offset := DurationRange{Max: latest}.sample(t.rng)
	t.clock.SetTime(offset)

	ts := t.clock.Millis()
	t.ping(ts)
	t.subscribe(ts)
}

func (t *ActionTimeline) step(ctx context.Context) {
	ts := t.clock.Millis()

	if t.profile.PingEachStep {
		t.ping(ts)
	}
	// Renewals only ping through PingEachStep; a subscriber's location
	// matters through its geofence, not through a ping.
	if t.renewalDue() {
		t.subscribe(ts)
	}
	t.publish(ts)

	gap := t.profile.StepInterval.sample(t.rng)
	t.move(ctx, gap)
	t.clock.Advance(gap)
}

func (t *ActionTimeline) renewalDue() bool {
	if len(t.subscribeTopics) == 0 {
		return false
	}
	r := t.profile.Renewal
	switch {
	case t.pendingRenewal:
		return true
	case r.DistanceKm > 0 && t.location.DistanceKm(t.lastSubscribed) >= r.DistanceKm:
		return true
	case !r.Interval.IsZero() && t.clock.Now() >= t.nextRenewal:
		return true
	default:
		return false
	}
}

func (t *ActionTimeline) move(ctx context.Context, gap time.Duration) {
	m := t.profile.Mobility
	if m.Kind == MobilityStatic || !chance(t.rng, m.Probability) {
		return
	}
	if m.Direction == DirectionRandom {
		t.direction = t.rng.Float64() * 360
	}
	travel := time.Duration(0)
	if t.profile.Step == StepTravel {
		travel = gap
	}
	step := t.mobility.Next(ctx, t.rng, Move{
		From:       t.location,
		Direction:  t.direction,
		Area:       t.broker.Area,
		TravelTime: travel,
	})
	t.stats.AddStep(step)
	t.location = step.Location
	if step.Fallback {
		// Turn towards the middle of the area; the old heading had no room.
		t.direction = t.location.BearingTo(t.broker.Area.Center)
	}
	if step.Moved() && t.profile.Renewal.OnMove {
		t.pendingRenewal = true
	}
}

func (t *ActionTimeline) ping(ts int64) {
	t.actions = append(t.actions, model.NewPing(ts, t.location))
	t.stats.AddPing()
}

func (t *ActionTimeline) subscribe(ts int64) {
	if len(t.subscribeTopics) == 0 {
		return
	}
	for _, i := range t.subscribeTopics {
		topic := &t.cfg.Topics[i]
		g, ok := t.stickySub[i]
		if !ok {
			g = t.newGeofence(topic.Subscription)
		}
		if g != nil {
			t.stats.AddSubscriptionOverlap(*g, t.areas)
		}
		t.actions = append(t.actions, model.NewSubscribe(ts+1+int64(i), t.location, topic.Name, g))
		t.stats.AddSubscribe()
	}
	t.lastSubscribed = t.location
	t.pendingRenewal = false
	if iv := t.profile.Renewal.Interval; !iv.IsZero() {
		t.nextRenewal = t.clock.Now() + iv.sample(t.rng)
	}
}

func (t *ActionTimeline) publish(ts int64) {
	n := int64(len(t.cfg.Topics))
	for _, i := range t.publishTopics {
		topic := &t.cfg.Topics[i]
		if !chance(t.rng, topic.PublishProbability) {
			continue
		}
		g, ok := t.stickyMsg[i]
		if !ok {
			g = t.newGeofence(topic.Message)
		}
		if g != nil {
			t.stats.AddMessageOverlap(*g, t.areas)
		}
		size := topic.PayloadBytes.sample(t.rng)
		t.actions = append(t.actions, model.NewPublish(ts+1+n+int64(i), t.location, topic.Name, g, size))
		t.stats.AddPublish(size)
	}
}

// newGeofence materialises a geofence policy at the current location.
func (t *ActionTimeline) newGeofence(p GeofencePolicy) *model.Geofence {
	var g model.Geofence
	switch p.Kind {
	case GeofenceWorld:
		g = model.World()
	case GeofenceArea:
		g = t.broker.Area
	case GeofenceCircle:
		g = model.Circle(t.location, p.RadiusKm.sample(t.rng))
	default:
		return nil
	}
	return &g
}
