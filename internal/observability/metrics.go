package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/iot-tracegen/core"
)

// GeneratorCollector bundles Prometheus metrics describing a trace
// generation run.
type GeneratorCollector struct {
	gatherer prometheus.Gatherer

	Actions          *prometheus.CounterVec
	Clients          *prometheus.CounterVec
	GeofenceOverlaps *prometheus.CounterVec
	PayloadBytes     prometheus.Counter
	DistanceKm       prometheus.Counter

	MobilitySteps     prometheus.Counter
	MobilityAttempts  prometheus.Counter
	MobilityFallbacks prometheus.Counter

	HomeMismatches prometheus.Counter

	ClientDurations *prometheus.HistogramVec
	ClientsExpected prometheus.Gauge
}

// NewGeneratorCollector registers generation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewGeneratorCollector(reg prometheus.Registerer) (*GeneratorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	actions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracegen_actions_total",
		Help: "Generated client actions, labeled by kind.",
	}, []string{"kind"}), "tracegen_actions_total")
	if err != nil {
		return nil, err
	}

	clients, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracegen_clients_total",
		Help: "Generated clients, labeled by broker and profile.",
	}, []string{"broker", "profile"}), "tracegen_clients_total")
	if err != nil {
		return nil, err
	}

	overlaps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracegen_geofence_overlaps_total",
		Help: "Foreign broker areas intersected by generated geofences, labeled by scope (subscription or message).",
	}, []string{"scope"}), "tracegen_geofence_overlaps_total")
	if err != nil {
		return nil, err
	}

	payload, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_payload_bytes_total",
		Help: "Total payload bytes of generated publications.",
	}), "tracegen_payload_bytes_total")
	if err != nil {
		return nil, err
	}

	distance, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_distance_km_total",
		Help: "Total distance travelled by generated clients in kilometres.",
	}), "tracegen_distance_km_total")
	if err != nil {
		return nil, err
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_mobility_steps_total",
		Help: "Mobility steps attempted by generated clients.",
	}), "tracegen_mobility_steps_total")
	if err != nil {
		return nil, err
	}

	attempts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_mobility_attempts_total",
		Help: "Candidate locations sampled while relocating clients.",
	}), "tracegen_mobility_attempts_total")
	if err != nil {
		return nil, err
	}

	fallbacks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_mobility_fallbacks_total",
		Help: "Mobility steps that found no valid location and kept the client in place.",
	}), "tracegen_mobility_fallbacks_total")
	if err != nil {
		return nil, err
	}

	mismatches, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_home_broker_mismatches_total",
		Help: "Clients whose final location resolves to a broker other than the one they were generated for.",
	}), "tracegen_home_broker_mismatches_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracegen_client_duration_seconds",
		Help:    "Wall-clock time spent generating and writing one client trace.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"profile"}), "tracegen_client_duration_seconds")
	if err != nil {
		return nil, err
	}

	expected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracegen_clients_expected",
		Help: "Number of clients the current run will generate.",
	}), "tracegen_clients_expected")
	if err != nil {
		return nil, err
	}

	return &GeneratorCollector{
		gatherer:          gatherer,
		Actions:           actions,
		Clients:           clients,
		GeofenceOverlaps:  overlaps,
		PayloadBytes:      payload,
		DistanceKm:        distance,
		MobilitySteps:     steps,
		MobilityAttempts:  attempts,
		MobilityFallbacks: fallbacks,
		HomeMismatches:    mismatches,
		ClientDurations:   durations,
		ClientsExpected:   expected,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GeneratorCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetExpectedClients records the size of the run.
func (c *GeneratorCollector) SetExpectedClients(n int) {
	if c == nil || c.ClientsExpected == nil {
		return
	}
	c.ClientsExpected.Set(float64(n))
}

// ObserveClient adds the statistics of one finished client.
func (c *GeneratorCollector) ObserveClient(broker, profile string, s core.Stats, d time.Duration) {
	if c == nil {
		return
	}
	c.Clients.WithLabelValues(broker, profile).Inc()
	c.Actions.WithLabelValues("ping").Add(float64(s.Pings))
	c.Actions.WithLabelValues("subscribe").Add(float64(s.Subscribes))
	c.Actions.WithLabelValues("publish").Add(float64(s.Publishes))
	c.GeofenceOverlaps.WithLabelValues("subscription").Add(float64(s.SubscriptionOverlaps))
	c.GeofenceOverlaps.WithLabelValues("message").Add(float64(s.MessageOverlaps))
	c.PayloadBytes.Add(float64(s.PayloadBytes))
	c.DistanceKm.Add(s.DistanceKm)
	c.MobilitySteps.Add(float64(s.MobilitySteps))
	c.MobilityAttempts.Add(float64(s.MobilityAttempts))
	c.MobilityFallbacks.Add(float64(s.MobilityFallbacks))
	c.ClientDurations.WithLabelValues(profile).Observe(d.Seconds())
}

// ObserveHomeMismatch counts a client that ended up in another broker's
// jurisdiction.
func (c *GeneratorCollector) ObserveHomeMismatch() {
	if c == nil || c.HomeMismatches == nil {
		return
	}
	c.HomeMismatches.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
