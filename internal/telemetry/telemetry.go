// Package telemetry wires the Orchestrator's run counters into an
// OpenTelemetry meter backed by a Prometheus exporter, following the
// teacher's runtime telemetry setup but scoped to a single scheduled batch
// process rather than a long-lived service (no OTLP trace export).
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/talk-less/talkless/config"
)

// Telemetry owns the meter provider's lifecycle and, when enabled, a
// background /metrics server.
type Telemetry struct {
	mp     *sdkmetric.MeterProvider
	server *http.Server
}

// Setup initializes an otel meter backed by a Prometheus registry. When
// cfg.Enabled is false it returns a noop meter so callers can record
// metrics unconditionally.
func Setup(cfg config.TelemetryConfig) (*Telemetry, otelmetric.Meter, error) {
	if !cfg.Enabled {
		return &Telemetry{}, otel.Meter("talkless"), nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	meter := mp.Meter("talkless")

	t := &Telemetry{mp: mp}
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		t.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Printf("telemetry: metrics server error: %v\n", err)
			}
		}()
	}
	return t, meter, nil
}

// Shutdown flushes the meter provider and stops the metrics server.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var err error
	if t.server != nil {
		if e := t.server.Shutdown(ctx); e != nil {
			err = fmt.Errorf("metrics server shutdown: %w", e)
		}
	}
	if t.mp != nil {
		if e := t.mp.Shutdown(ctx); e != nil {
			if err != nil {
				err = fmt.Errorf("%v; meter shutdown: %w", err, e)
			} else {
				err = fmt.Errorf("meter shutdown: %w", e)
			}
		}
	}
	return err
}

// Counters bundles the run-level counters the Orchestrator increments,
// mirroring internal/worker/processor.go's Int64Counter fields.
type Counters struct {
	ArticlesFetched otelmetric.Int64Counter
	GroupsFormed    otelmetric.Int64Counter
	SummariesOK     otelmetric.Int64Counter
	SummariesFailed otelmetric.Int64Counter
}

// NewCounters registers the Orchestrator's counters against meter. The
// first registration error is returned at once (the caller logs it),
// leaving that counter and every counter after it nil; nil counters are
// not safe to Add on, so the Orchestrator nil-checks each one before use.
func NewCounters(meter otelmetric.Meter) (Counters, error) {
	var c Counters
	var err error
	if c.ArticlesFetched, err = meter.Int64Counter("talkless_articles_fetched"); err != nil {
		return c, err
	}
	if c.GroupsFormed, err = meter.Int64Counter("talkless_groups_formed"); err != nil {
		return c, err
	}
	if c.SummariesOK, err = meter.Int64Counter("talkless_summaries_generated"); err != nil {
		return c, err
	}
	if c.SummariesFailed, err = meter.Int64Counter("talkless_summaries_failed"); err != nil {
		return c, err
	}
	return c, nil
}
