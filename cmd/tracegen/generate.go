package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/iot-tracegen/internal/generator"
	"github.com/signalsfoundry/iot-tracegen/internal/logging"
	"github.com/signalsfoundry/iot-tracegen/internal/observability"
	"github.com/signalsfoundry/iot-tracegen/internal/sink"
)

type generateOptions struct {
	scenario    string
	config      string
	out         string
	seed        int64
	workers     int
	clean       bool
	metricsAddr string
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate client traces for a scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seed") {
				if v := os.Getenv("TRACEGEN_SEED"); v != "" {
					if _, err := fmt.Sscan(v, &opts.seed); err != nil {
						return fmt.Errorf("TRACEGEN_SEED: %w", err)
					}
				} else {
					opts.seed = time.Now().UnixNano()
				}
			}
			return runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.scenario, "scenario", "s", "", "built-in scenario name (see 'scenarios list')")
	f.StringVarP(&opts.config, "config", "c", "", "path to a scenario JSON file")
	f.StringVarP(&opts.out, "out", "o", envString("TRACEGEN_OUT", "out"), "output directory")
	f.Int64Var(&opts.seed, "seed", 0, "random seed; equal seeds produce identical traces")
	f.IntVarP(&opts.workers, "workers", "w", envInt("TRACEGEN_WORKERS", 0), "number of generation workers (0 = GOMAXPROCS)")
	f.BoolVar(&opts.clean, "clean", false, "remove existing traces from the output directory first")
	f.StringVar(&opts.metricsAddr, "metrics-addr", envString("TRACEGEN_METRICS_ADDR", ""), "HTTP address for Prometheus /metrics (disabled when empty)")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, log := logging.WithRunLogger(ctx, logging.NewFromEnv())

	cfg, _, err := loadScenario(opts.scenario, opts.config)
	if err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	var (
		collector   *observability.GeneratorCollector
		sinkMetrics *observability.SinkCollector
	)
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if collector, err = observability.NewGeneratorCollector(reg); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		if sinkMetrics, err = observability.NewSinkCollector(reg); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		srv := serveMetrics(opts.metricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out, err := sink.NewDirSink(opts.out, sink.DirOptions{Clean: opts.clean})
	if err != nil {
		return err
	}
	defer out.Close()

	gen, err := generator.New(cfg, generator.Options{
		Seed:        opts.seed,
		Workers:     opts.workers,
		Sink:        out,
		Logger:      log,
		Metrics:     collector,
		SinkMetrics: sinkMetrics,
	})
	if err != nil {
		return err
	}
	res, err := gen.Run(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Generated %d clients for scenario %q (seed %d) into %s in %s\n",
		res.Clients, cfg.Name, opts.seed, out.Dir(), res.Elapsed.Round(time.Millisecond))
	fmt.Fprint(w, res.Summary.String())
	if res.HomeMismatches > 0 {
		fmt.Fprintf(w, "%d clients ended inside an overlapping broker area\n", res.HomeMismatches)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.GeneratorCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
