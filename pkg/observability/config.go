// Package observability wires OpenTelemetry tracing, Prometheus-backed
// metrics and slog logging for sketch operations.
package observability

import (
	"io"
	"log/slog"
)

// AppMode records how sketches are being driven.
type AppMode string

const (
	// ModeCLI is the distinctcount command.
	ModeCLI AppMode = "cli"
	// ModeLibrary is a program embedding the hll package.
	ModeLibrary AppMode = "library"
)

const (
	defaultServiceName        = "distinctcount"
	defaultShutdownTimeoutSec = 5
)

// Config controls Init.
type Config struct {
	// LogWriter receives log records; nil means os.Stderr.
	LogWriter io.Writer

	// OTLPHeaders are sent as gRPC metadata with every export.
	OTLPHeaders map[string]string

	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is a collector address such as "localhost:4317". When
	// empty nothing leaves the process.
	OTLPEndpoint string

	// SampleRatio samples root spans by trace ID when positive and no
	// OTEL_TRACES_SAMPLER is set.
	SampleRatio float64

	LogLevel slog.Level

	// ShutdownTimeoutSec bounds the final flush.
	ShutdownTimeoutSec int

	OTLPInsecure bool

	// DebugTrace samples every span and logs attributes dropped before export.
	DebugTrace bool

	LogJSON bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
