package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/distinctcount/pkg/config"
	"github.com/Sumatoshi-tech/distinctcount/pkg/observability"
	"github.com/Sumatoshi-tech/distinctcount/pkg/version"
)

const (
	logLevelDebug = "debug"
	logLevelError = "error"
	logFormatJSON = "json"
)

// app carries the per-invocation configuration and telemetry providers.
type app struct {
	cfg      *config.Config
	opts     *rootOptions
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.SketchMetrics
	registry *prometheus.Registry
	shutdown func(ctx context.Context) error
}

// loadConfig reads the configuration and applies the persistent flag overrides.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}

	switch {
	case opts.verbose:
		cfg.Logging.Level = logLevelDebug
	case opts.quiet:
		cfg.Logging.Level = logLevelError
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Telemetry.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == logFormatJSON
	obsCfg.LogWriter = cmd.ErrOrStderr()
	obsCfg.DebugTrace = opts.verbose

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewSketchMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &app{
		cfg:      cfg,
		opts:     opts,
		logger:   providers.Logger,
		tracer:   providers.Tracer,
		metrics:  metrics,
		registry: providers.Registry,
		shutdown: providers.Shutdown,
	}, nil
}

// close writes the metrics file, if requested, and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var writeErr error

	if a.opts.metricsFile != "" {
		writeErr = observability.WriteTextfile(a.registry, a.opts.metricsFile)
	}

	return errors.Join(writeErr, a.shutdown(ctx))
}

// runTraced runs fn as the traced operation op with a fully initialized app.
func runTraced(cmd *cobra.Command, opts *rootOptions, op string, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, a.close(context.WithoutCancel(cmd.Context())))
	}()

	return observability.TraceOperation(cmd.Context(), a.tracer, a.metrics, op, func(ctx context.Context) error {
		return fn(ctx, a)
	})
}
