package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/iot-tracegen/model"
)

// Stats accumulates counters over generated actions. A Stats value is owned
// by a single goroutine; use Merge to combine per-worker values.
type Stats struct {
	Pings                int     `json:"pings"`
	Subscribes           int     `json:"subscribes"`
	Publishes            int     `json:"publishes"`
	PayloadBytes         int64   `json:"payload_bytes"`
	DistanceKm           float64 `json:"distance_km"`
	SubscriptionOverlaps int     `json:"subscription_overlaps"`
	MessageOverlaps      int     `json:"message_overlaps"`

	MobilitySteps     int `json:"mobility_steps"`
	MobilityAttempts  int `json:"mobility_attempts"`
	MobilityFallbacks int `json:"mobility_fallbacks"`
}

func (s *Stats) AddPing() {
	if s != nil {
		s.Pings++
	}
}

func (s *Stats) AddSubscribe() {
	if s != nil {
		s.Subscribes++
	}
}

// AddPublish counts one publication and its payload.
func (s *Stats) AddPublish(payloadBytes int) {
	if s == nil {
		return
	}
	s.Publishes++
	s.PayloadBytes += int64(payloadBytes)
}

// AddStep records the outcome of one mobility step. Distance is only
// counted for accepted moves.
func (s *Stats) AddStep(step Step) {
	if s == nil {
		return
	}
	s.MobilitySteps++
	s.MobilityAttempts += step.Attempts
	if step.Fallback {
		s.MobilityFallbacks++
		return
	}
	s.DistanceKm += step.DistanceKm
}

// AddSubscriptionOverlap adds the overlap count of a subscription geofence.
func (s *Stats) AddSubscriptionOverlap(g model.Geofence, areas []model.BrokerArea) {
	if s != nil {
		s.SubscriptionOverlaps += CountOverlaps(g, areas)
	}
}

// AddMessageOverlap adds the overlap count of a message geofence.
func (s *Stats) AddMessageOverlap(g model.Geofence, areas []model.BrokerArea) {
	if s != nil {
		s.MessageOverlaps += CountOverlaps(g, areas)
	}
}

// Merge adds o into s field by field.
func (s *Stats) Merge(o Stats) {
	if s == nil {
		return
	}
	s.Pings += o.Pings
	s.Subscribes += o.Subscribes
	s.Publishes += o.Publishes
	s.PayloadBytes += o.PayloadBytes
	s.DistanceKm += o.DistanceKm
	s.SubscriptionOverlaps += o.SubscriptionOverlaps
	s.MessageOverlaps += o.MessageOverlaps
	s.MobilitySteps += o.MobilitySteps
	s.MobilityAttempts += o.MobilityAttempts
	s.MobilityFallbacks += o.MobilityFallbacks
}

// CountOverlaps returns the number of broker areas g intersects beyond the
// client's own broker. Geofences are created inside the owning area, so
// the result is never negative for well-formed input; a geofence touching
// no area counts as zero.
func CountOverlaps(g model.Geofence, areas []model.BrokerArea) int {
	n := -1
	for _, a := range areas {
		if Intersects(g, a.Area) {
			n++
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// Ratio is a quotient that may be undefined because its divisor was zero.
type Ratio struct {
	Value   float64
	Defined bool
}

func ratio(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: num / den, Defined: true}
}

func (r Ratio) String() string {
	if !r.Defined {
		return "n/a"
	}
	return strconv.FormatFloat(r.Value, 'f', 3, 64)
}

// MarshalJSON renders undefined ratios as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// SummaryInput carries the run shape the summary divides by.
type SummaryInput struct {
	Clients     int
	Subscribers int
	Publishers  int
	Runtime     time.Duration
}

// Summary is the aggregate report over a whole run.
type Summary struct {
	Stats

	Clients        int           `json:"clients"`
	Subscribers    int           `json:"subscribers"`
	Publishers     int           `json:"publishers"`
	Runtime        time.Duration `json:"runtime_ns"`
	PingRate       Ratio         `json:"ping_rate"`
	SubscribeRate  Ratio         `json:"subscribe_rate"`
	PublishRate    Ratio         `json:"publish_rate"`
	BytesPerPub    Ratio         `json:"bytes_per_message"`
	KmPerClient    Ratio         `json:"km_per_client"`
	AverageKmh     Ratio         `json:"average_kmh"`
	PingsPerClient Ratio         `json:"pings_per_client"`
	SubsPerSub     Ratio         `json:"subscribes_per_subscriber"`
	PubsPerPub     Ratio         `json:"publishes_per_publisher"`
}

// Summary derives rates and per-client figures. Every division is guarded.
func (s *Stats) Summary(in SummaryInput) Summary {
	runtimeS := in.Runtime.Seconds()
	kmPerClient := ratio(s.DistanceKm, float64(in.Clients))
	avg := Ratio{}
	if kmPerClient.Defined {
		avg = ratio(kmPerClient.Value, in.Runtime.Hours())
	}
	return Summary{
		Stats:          *s,
		Clients:        in.Clients,
		Subscribers:    in.Subscribers,
		Publishers:     in.Publishers,
		Runtime:        in.Runtime,
		PingRate:       ratio(float64(s.Pings), runtimeS),
		SubscribeRate:  ratio(float64(s.Subscribes), runtimeS),
		PublishRate:    ratio(float64(s.Publishes), runtimeS),
		BytesPerPub:    ratio(float64(s.PayloadBytes), float64(s.Publishes)),
		KmPerClient:    kmPerClient,
		AverageKmh:     avg,
		PingsPerClient: ratio(float64(s.Pings), float64(in.Clients)),
		SubsPerSub:     ratio(float64(s.Subscribes), float64(in.Subscribers)),
		PubsPerPub:     ratio(float64(s.Publishes), float64(in.Publishers)),
	}
}

// String renders the plain-text characteristics report.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("Data set characteristics:\n")
	fmt.Fprintf(&b, "    Number of clients: %d (%d subscribing, %d publishing)\n", s.Clients, s.Subscribers, s.Publishers)
	fmt.Fprintf(&b, "    Number of ping messages: %d (%s messages/s, %s per client)\n", s.Pings, s.PingRate, s.PingsPerClient)
	fmt.Fprintf(&b, "    Number of subscribe messages: %d (%s messages/s, %s per subscriber)\n", s.Subscribes, s.SubscribeRate, s.SubsPerSub)
	fmt.Fprintf(&b, "    Number of publish messages: %d (%s messages/s, %s per publisher)\n", s.Publishes, s.PublishRate, s.PubsPerPub)
	fmt.Fprintf(&b, "    Publish payload size: %.3fKB (%s bytes/message)\n", float64(s.PayloadBytes)/1000, s.BytesPerPub)
	fmt.Fprintf(&b, "    Client distance travelled: %.3fkm (%s km/client)\n", s.DistanceKm, s.KmPerClient)
	fmt.Fprintf(&b, "    Client average speed: %s km/h\n", s.AverageKmh)
	fmt.Fprintf(&b, "    Mobility steps: %d (%d attempts, %d fallbacks)\n", s.MobilitySteps, s.MobilityAttempts, s.MobilityFallbacks)
	fmt.Fprintf(&b, "    Number of message geofence broker overlaps: %d\n", s.MessageOverlaps)
	fmt.Fprintf(&b, "    Number of subscription geofence broker overlaps: %d\n", s.SubscriptionOverlaps)
	return b.String()
}
