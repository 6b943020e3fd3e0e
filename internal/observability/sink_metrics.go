package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SinkCollector exposes metrics about trace output.
type SinkCollector struct {
	gatherer prometheus.Gatherer

	WriteDuration prometheus.Histogram
	FilesWritten  prometheus.Counter
	RecordsTotal  prometheus.Counter
	WriteErrors   prometheus.Counter
}

// NewSinkCollector registers sink metrics against the provided registerer.
func NewSinkCollector(reg prometheus.Registerer) (*SinkCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	writeHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracegen_sink_write_duration_seconds",
		Help:    "Duration of writing one client trace to the sink.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
	})
	writeHistogram, err := registerHistogram(reg, writeHistogram, "tracegen_sink_write_duration_seconds")
	if err != nil {
		return nil, err
	}

	files := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_sink_traces_total",
		Help: "Client traces written to the sink.",
	})
	files, err = registerCounter(reg, files, "tracegen_sink_traces_total")
	if err != nil {
		return nil, err
	}

	records := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_sink_records_total",
		Help: "Action records written to the sink.",
	})
	records, err = registerCounter(reg, records, "tracegen_sink_records_total")
	if err != nil {
		return nil, err
	}

	writeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracegen_sink_write_errors_total",
		Help: "Failed sink writes.",
	})
	writeErrors, err = registerCounter(reg, writeErrors, "tracegen_sink_write_errors_total")
	if err != nil {
		return nil, err
	}

	return &SinkCollector{
		gatherer:      gatherer,
		WriteDuration: writeHistogram,
		FilesWritten:  files,
		RecordsTotal:  records,
		WriteErrors:   writeErrors,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SinkCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveWrite records the outcome of one trace write.
func (c *SinkCollector) ObserveWrite(records int, d time.Duration, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.WriteErrors.Inc()
		return
	}
	c.WriteDuration.Observe(d.Seconds())
	c.FilesWritten.Inc()
	c.RecordsTotal.Add(float64(records))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
