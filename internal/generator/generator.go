// Package generator drives trace generation for a whole scenario: it fans
// clients out to a worker pool, writes every trace to a sink and reduces the
// per-worker statistics into the run summary.
package generator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/iot-tracegen/core"
	"github.com/signalsfoundry/iot-tracegen/internal/logging"
	"github.com/signalsfoundry/iot-tracegen/internal/observability"
	"github.com/signalsfoundry/iot-tracegen/internal/sink"
	"github.com/signalsfoundry/iot-tracegen/kb"
	"github.com/signalsfoundry/iot-tracegen/model"
)

// Options configures a Generator. Only Sink is required.
type Options struct {
	Seed    int64
	Workers int
	Sink    sink.Sink

	Logger      logging.Logger
	Metrics     *observability.GeneratorCollector
	SinkMetrics *observability.SinkCollector
	KB          *kb.KnowledgeBase
}

// Result describes a finished run.
type Result struct {
	Summary  core.Summary
	Warnings []string
	Clients  int
	Elapsed  time.Duration

	// HomeMismatches counts clients whose final location the knowledge base
	// attributes to another broker. Non-zero only when broker areas overlap.
	HomeMismatches int
}

// Generator runs one scenario.
type Generator struct {
	cfg  *core.ScenarioConfig
	opts Options
	log  logging.Logger
	kb   *kb.KnowledgeBase

	mismatches atomic.Int64
}

type job struct {
	broker   int
	profile  int
	index    int
	sequence int
}

// New validates the options. The scenario itself is validated by Run.
func New(cfg *core.ScenarioConfig, opts Options) (*Generator, error) {
	if cfg == nil {
		return nil, errors.New("generator: scenario is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("generator: sink is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	store := opts.KB
	if store == nil {
		store = kb.NewKnowledgeBase()
	}
	return &Generator{cfg: cfg, opts: opts, log: log, kb: store}, nil
}

// KnowledgeBase returns the broker and client directory of the run.
func (g *Generator) KnowledgeBase() *kb.KnowledgeBase { return g.kb }

// Run validates the scenario, generates every client and writes the
// summary. Configuration errors are returned before any client runs.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "generator.Run",
		trace.WithAttributes(
			attribute.String("scenario", g.cfg.Name),
			attribute.Int64("seed", g.opts.Seed),
			attribute.Int("workers", g.opts.Workers),
		))
	defer span.End()

	warnings, err := g.cfg.Validate()
	for _, w := range warnings {
		g.log.Warn(ctx, "scenario adjusted", logging.String("scenario", g.cfg.Name), logging.String("warning", w))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid scenario")
		return nil, fmt.Errorf("generator: %w", err)
	}

	for _, b := range g.cfg.Brokers {
		if err := g.kb.AddBroker(kb.Broker{BrokerArea: b.BrokerArea, WorkloadMachines: b.WorkloadMachines}); err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
	}

	jobs := g.jobs()
	total, subscribers, publishers := g.cfg.ClientCounts()
	g.kb.SetExpectedClients(total)
	g.opts.Metrics.SetExpectedClients(total)
	unsubscribe := g.kb.Subscribe(g.progress(ctx))
	defer unsubscribe()

	g.log.Info(ctx, "generation started",
		logging.String("scenario", g.cfg.Name),
		logging.Int("brokers", len(g.cfg.Brokers)),
		logging.Int("clients", total),
		logging.Int("workers", g.opts.Workers),
		logging.Int64("seed", g.opts.Seed),
	)

	stats, err := g.runWorkers(ctx, jobs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	summary := stats.Summary(core.SummaryInput{
		Clients:     total,
		Subscribers: subscribers,
		Publishers:  publishers,
		Runtime:     g.cfg.Runtime,
	})
	setup, err := core.MarshalScenario(g.cfg)
	if err != nil {
		return nil, fmt.Errorf("generator: encode setup: %w", err)
	}
	if err := g.opts.Sink.WriteSummary(ctx, setup, summary); err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	res := &Result{
		Summary:        summary,
		Warnings:       warnings,
		Clients:        total,
		Elapsed:        time.Since(started),
		HomeMismatches: int(g.mismatches.Load()),
	}
	g.log.Info(ctx, "generation finished",
		logging.String("scenario", g.cfg.Name),
		logging.Int("clients", total),
		logging.Int("actions", summary.Pings+summary.Subscribes+summary.Publishes),
		logging.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// jobs enumerates clients broker by broker. sequence numbers clients within
// a broker across profiles and selects the workload machine.
func (g *Generator) jobs() []job {
	var out []job
	for b := range g.cfg.Brokers {
		seq := 0
		for p := range g.cfg.Profiles {
			n := g.cfg.Profiles[p].Clients(b)
			for i := 0; i < n; i++ {
				out = append(out, job{broker: b, profile: p, index: i, sequence: seq})
				seq++
			}
		}
	}
	return out
}

func (g *Generator) runWorkers(ctx context.Context, jobs []job) (core.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan job)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    core.Stats
		firstErr error
	)

	workers := g.opts.Workers
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local core.Stats
			for j := range queue {
				s, err := g.runClient(ctx, j)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
					continue
				}
				local.Merge(s)
			}
			mu.Lock()
			total.Merge(local)
			mu.Unlock()
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if firstErr != nil {
		return core.Stats{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return core.Stats{}, err
	}
	return total, nil
}

func (g *Generator) runClient(ctx context.Context, j job) (core.Stats, error) {
	if err := ctx.Err(); err != nil {
		return core.Stats{}, err
	}
	started := time.Now()
	broker := g.cfg.Brokers[j.broker]
	profile := &g.cfg.Profiles[j.profile]

	rng := rand.New(rand.NewSource(ClientSeed(g.opts.Seed, broker.Name, profile.Name, j.index)))
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return core.Stats{}, fmt.Errorf("generator: client id: %w", err)
	}
	clientID := id.String()

	ctx, span := observability.Tracer().Start(ctx, "generator.client",
		trace.WithAttributes(
			attribute.String("broker", broker.Name),
			attribute.String("profile", profile.Name),
			attribute.String("client_id", clientID),
		))
	defer span.End()

	log := g.log.With(
		logging.String("broker", broker.Name),
		logging.String("profile", profile.Name),
		logging.String("client_id", clientID),
	)
	tl := core.NewActionTimeline(g.cfg, profile, broker.BrokerArea, rng, log)
	tr, err := tl.Generate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate")
		return core.Stats{}, err
	}

	machine := g.kb.MachineFor(broker.Name, j.sequence)
	ct := sink.ClientTrace{
		ClientID: clientID,
		Broker:   broker.Name,
		Profile:  profile.Name,
		Machine:  machine,
		Trace:    tr,
	}
	writeStart := time.Now()
	err = g.opts.Sink.Write(ctx, ct)
	g.opts.SinkMetrics.ObserveWrite(len(tr.Actions), time.Since(writeStart), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write")
		return core.Stats{}, fmt.Errorf("generator: write client %s: %w", clientID, err)
	}

	if err := g.kb.RecordClient(kb.ClientRecord{
		ID:            clientID,
		Broker:        broker.Name,
		Profile:       profile.Name,
		Machine:       machine,
		Actions:       len(tr.Actions),
		FinalLocation: tr.FinalLocation,
	}); err != nil {
		return core.Stats{}, fmt.Errorf("generator: %w", err)
	}

	g.checkHome(ctx, log, broker.Name, tr.FinalLocation)

	span.SetAttributes(attribute.Int("actions", len(tr.Actions)))
	g.opts.Metrics.ObserveClient(broker.Name, profile.Name, tr.Stats, time.Since(started))
	return tr.Stats, nil
}

// checkHome resolves the client's final location back to a broker. Clients
// never leave their area, so a different answer means they stopped inside
// an overlap with an earlier registered broker.
func (g *Generator) checkHome(ctx context.Context, log logging.Logger, broker string, loc model.Location) {
	home, ok := g.kb.HomeBroker(loc)
	if ok && home.Name == broker {
		return
	}
	g.mismatches.Add(1)
	g.opts.Metrics.ObserveHomeMismatch()
	if !ok {
		log.Warn(ctx, "final location outside every broker area",
			logging.Float64("lat", loc.Lat), logging.Float64("lon", loc.Lon))
		return
	}
	log.Debug(ctx, "final location resolves to another broker", logging.String("home", home.Name))
}

// progress logs every 5% of recorded clients.
func (g *Generator) progress(ctx context.Context) func(kb.Event) {
	return func(ev kb.Event) {
		if ev.Type != kb.EventClientRecorded || ev.Expected == 0 {
			return
		}
		step := ev.Expected / 20
		if step < 1 {
			step = 1
		}
		if ev.Recorded%step != 0 && ev.Recorded != ev.Expected {
			return
		}
		g.log.Info(ctx, "generation progress",
			logging.Int("recorded", ev.Recorded),
			logging.Int("expected", ev.Expected),
			logging.Int("percent", ev.Recorded*100/ev.Expected),
		)
	}
}

// ClientSeed derives the random seed of one client from the run seed and
// the client's position in the scenario, so output does not depend on
// worker scheduling.
func ClientSeed(seed int64, broker, profile string, index int) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	h.Write(buf[:])
	h.Write([]byte(broker))
	h.Write([]byte{0})
	h.Write([]byte(profile))
	h.Write([]byte{0})
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	h.Write(buf[:])
	return int64(h.Sum64())
}
