// Package config provides configuration loading and validation for distinctcount.
package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
	"github.com/Sumatoshi-tech/distinctcount/pkg/persist"
)

// Sentinel validation errors.
var (
	ErrInvalidPrecision    = errors.New("config: precision must be in [3, 26]")
	ErrInvalidVariant      = errors.New("config: unknown sketch variant")
	ErrInvalidEstimator    = errors.New("config: unknown estimator for variant")
	ErrInvalidLogLevel     = errors.New("config: unknown log level")
	ErrInvalidLogFormat    = errors.New("config: unknown log format")
	ErrInvalidCodec        = errors.New("config: unknown snapshot codec")
	ErrInvalidMemoryBudget = errors.New("config: invalid memory budget")
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Config holds all configuration for distinctcount.
type Config struct {
	Sketch    SketchConfig    `mapstructure:"sketch"    yaml:"sketch"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"  yaml:"snapshot"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// SketchConfig selects the register layout and size of new sketches.
type SketchConfig struct {
	Variant string `mapstructure:"variant" yaml:"variant"`
	// MemoryBudget, when set, overrides Precision with the largest precision
	// whose register state fits the budget.
	MemoryBudget string `mapstructure:"memory_budget" yaml:"memory_budget"`
	// Estimator is empty for the variant default.
	Estimator  string `mapstructure:"estimator"  yaml:"estimator"`
	Precision  int    `mapstructure:"precision"  yaml:"precision"`
	Martingale bool   `mapstructure:"martingale" yaml:"martingale"`
}

// SnapshotConfig holds snapshot persistence settings.
type SnapshotConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Codec     string `mapstructure:"codec"     yaml:"codec"`
	Compress  bool   `mapstructure:"compress"  yaml:"compress"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig holds OpenTelemetry settings. An empty OTLPEndpoint
// disables export.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"  yaml:"service_name"`
	Environment  string `mapstructure:"environment"   yaml:"environment"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return &Config{
		Sketch: SketchConfig{
			Variant:      DefaultSketchVariant,
			Precision:    DefaultSketchPrecision,
			MemoryBudget: DefaultSketchMemoryBudget,
			Estimator:    DefaultSketchEstimator,
			Martingale:   DefaultSketchMartingale,
		},
		Snapshot: SnapshotConfig{
			Directory: DefaultSnapshotDirectory,
			Codec:     DefaultSnapshotCodec,
			Compress:  DefaultSnapshotCompress,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  DefaultServiceName,
			OTLPInsecure: DefaultOTLPInsecure,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("distinctcount")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/distinctcount")
	}

	viperCfg.SetEnvPrefix("DISTINCTCOUNT")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(viperCfg *viper.Viper) {
	defaults := Default()

	viperCfg.SetDefault("sketch.variant", defaults.Sketch.Variant)
	viperCfg.SetDefault("sketch.precision", defaults.Sketch.Precision)
	viperCfg.SetDefault("sketch.memory_budget", defaults.Sketch.MemoryBudget)
	viperCfg.SetDefault("sketch.estimator", defaults.Sketch.Estimator)
	viperCfg.SetDefault("sketch.martingale", defaults.Sketch.Martingale)

	viperCfg.SetDefault("snapshot.directory", defaults.Snapshot.Directory)
	viperCfg.SetDefault("snapshot.codec", defaults.Snapshot.Codec)
	viperCfg.SetDefault("snapshot.compress", defaults.Snapshot.Compress)

	viperCfg.SetDefault("logging.level", defaults.Logging.Level)
	viperCfg.SetDefault("logging.format", defaults.Logging.Format)

	viperCfg.SetDefault("telemetry.service_name", defaults.Telemetry.ServiceName)
	viperCfg.SetDefault("telemetry.environment", defaults.Telemetry.Environment)
	viperCfg.SetDefault("telemetry.otlp_endpoint", defaults.Telemetry.OTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", defaults.Telemetry.OTLPInsecure)
}

// Validate checks every section and returns the first violation.
func (c *Config) Validate() error {
	variant, err := hll.ParseVariant(c.Sketch.Variant)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidVariant, c.Sketch.Variant)
	}

	if c.Sketch.Precision < distinct.MinP || c.Sketch.Precision > distinct.MaxP {
		return fmt.Errorf("%w: %d", ErrInvalidPrecision, c.Sketch.Precision)
	}

	if c.Sketch.Estimator != "" && !slices.Contains(variant.Estimators(), c.Sketch.Estimator) {
		return fmt.Errorf("%w: %q is not one of %v", ErrInvalidEstimator, c.Sketch.Estimator, variant.Estimators())
	}

	_, err = c.Resolve()
	if err != nil {
		return err
	}

	_, err = persist.CodecByName(c.Snapshot.Codec, c.Snapshot.Compress)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, c.Snapshot.Codec)
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	if !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// Resolve returns the precision new sketches are created with. Without a
// memory budget that is Sketch.Precision, otherwise the largest precision
// whose register state does not exceed the budget.
func (c *Config) Resolve() (int, error) {
	if c.Sketch.MemoryBudget == "" {
		return c.Sketch.Precision, nil
	}

	variant, err := hll.ParseVariant(c.Sketch.Variant)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVariant, c.Sketch.Variant)
	}

	budget, err := humanize.ParseBytes(c.Sketch.MemoryBudget)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMemoryBudget, c.Sketch.MemoryBudget, err)
	}

	for p := distinct.MaxP; p >= distinct.MinP; p-- {
		if uint64(variant.StateSize(p)) <= budget {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: %s is smaller than the minimal state of %s",
		ErrInvalidMemoryBudget, c.Sketch.MemoryBudget,
		humanize.IBytes(uint64(variant.StateSize(distinct.MinP))))
}

// WriteYAML writes cfg as YAML.
func WriteYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}
