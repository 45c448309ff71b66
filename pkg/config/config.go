// Package config loads treefind configuration from a YAML file and
// TREEFIND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidInputSize   = errors.New("invalid max input size")
	ErrInvalidMaxNodes    = errors.New("max nodes must not be negative")
	ErrInvalidRenderDepth = errors.New("render max depth must be positive")
	ErrInvalidSampleRatio = errors.New("sample ratio must be between 0 and 1")
)

// Config holds all treefind configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Server    ServerConfig    `mapstructure:"server"`
	Render    RenderConfig    `mapstructure:"render"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LimitsConfig bounds untrusted tree input.
type LimitsConfig struct {
	// MaxInputSize is a human-readable size such as "1MiB". "0" disables the check.
	MaxInputSize string `mapstructure:"max_input_size"`
	// MaxNodes of zero disables the check.
	MaxNodes int `mapstructure:"max_nodes"`

	maxInputBytes int
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RenderConfig holds view configuration.
type RenderConfig struct {
	Color       bool   `mapstructure:"color"`
	ChartWidth  string `mapstructure:"chart_width"`
	ChartHeight string `mapstructure:"chart_height"`
	// MaxDepth bounds the levels the views draw.
	MaxDepth int `mapstructure:"max_depth"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
}

// LoadConfig loads configuration from configPath, or from treefind.yaml in
// the usual locations when configPath is empty. A missing default file is
// not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("treefind")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/treefind")
	}

	viperCfg.SetEnvPrefix("TREEFIND")
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

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration LoadConfig yields without a file or environment.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always decode and validate.
	_ = viperCfg.Unmarshal(&config)
	_ = validateConfig(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("limits.max_input_size", DefaultMaxInputSize)
	viperCfg.SetDefault("limits.max_nodes", DefaultMaxNodes)

	viperCfg.SetDefault("server.host", DefaultHost)
	viperCfg.SetDefault("server.port", DefaultPort)
	viperCfg.SetDefault("server.read_timeout", DefaultReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultIdleTimeout)

	viperCfg.SetDefault("render.color", DefaultRenderColor)
	viperCfg.SetDefault("render.chart_width", DefaultChartWidth)
	viperCfg.SetDefault("render.chart_height", DefaultChartHeight)
	viperCfg.SetDefault("render.max_depth", DefaultRenderMaxDepth)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.debug_trace", false)
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(config.Logging.Level))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	size, err := humanize.ParseBytes(config.Limits.MaxInputSize)
	if err != nil || size > math.MaxInt32 {
		return fmt.Errorf("%w: %q", ErrInvalidInputSize, config.Limits.MaxInputSize)
	}

	config.Limits.maxInputBytes = int(size)

	if config.Limits.MaxNodes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, config.Limits.MaxNodes)
	}

	if config.Render.MaxDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRenderDepth, config.Render.MaxDepth)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

// MaxInputBytes returns the parsed input size limit.
func (l LimitsConfig) MaxInputBytes() int {
	return l.maxInputBytes
}

// SlogLevel returns the configured level, defaulting to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level

	if level.UnmarshalText([]byte(l.Level)) != nil {
		return slog.LevelInfo
	}

	return level
}

// BuildOptions returns builder options carrying the configured limits.
func (c *Config) BuildOptions() builder.Options {
	opts := builder.DefaultOptions()
	opts.MaxInputBytes = c.Limits.MaxInputBytes()
	opts.MaxNodes = c.Limits.MaxNodes

	return opts
}

// Observability returns the telemetry configuration for the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Mode = mode
	cfg.Environment = c.Telemetry.Environment
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.DebugTrace = c.Telemetry.DebugTrace
	cfg.LogLevel = c.Logging.SlogLevel()
	cfg.LogJSON = c.Logging.Format == LogFormatJSON
	cfg.Prometheus = mode == observability.ModeServe

	return cfg
}
