package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing should produce invalid span contexts")
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestInitTracingStdoutFlushesOnShutdown(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &out,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), TracingConfig{}, nil)
	})

	_, span := Tracer().Start(context.Background(), "generator.client")
	if !span.SpanContext().IsValid() {
		t.Fatalf("enabled tracing produced an invalid span context")
	}
	span.End()

	// Batched spans only reach the writer once the provider is flushed.
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	got := out.String()
	for _, want := range []string{`"Name": "generator.client"`, `"Value": "tracegen"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("exporter output missing %s:\n%s", want, got)
		}
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil || !strings.Contains(err.Error(), "zipkin") {
		t.Fatalf("InitTracing error = %v, want unsupported exporter", err)
	}
}

func TestShutdownWithTimeoutIgnoresNil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, nil)
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("TRACEGEN_TRACING_ENABLED", "true")
	t.Setenv("TRACEGEN_TRACING_EXPORTER", "OTLP")
	t.Setenv("TRACEGEN_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("TRACEGEN_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("TracingConfigFromEnv = %+v", cfg)
	}
	if cfg.ServiceName != "tracegen" {
		t.Fatalf("default service name = %q", cfg.ServiceName)
	}
}

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("TRACEGEN_TRACING_ENABLED", "")
	t.Setenv("TRACEGEN_TRACING_EXPORTER", "")
	t.Setenv("TRACEGEN_TRACING_SAMPLE_RATIO", "7")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled || cfg.Exporter != "stdout" || cfg.SampleRatio != 1 {
		t.Fatalf("TracingConfigFromEnv = %+v", cfg)
	}
}
