package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treefind/pkg/config"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "treefind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, config.DefaultMaxNodes, cfg.Limits.MaxNodes)
	assert.Equal(t, 1<<20, cfg.Limits.MaxInputBytes())
	assert.Equal(t, slog.LevelInfo, cfg.Logging.SlogLevel())
	assert.True(t, cfg.Render.Color)
	assert.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 0)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
logging:
  level: debug
  format: json
limits:
  max_input_size: 64KB
  max_nodes: 500
server:
  port: 9000
  read_timeout: 2s
render:
  color: false
  max_depth: 8
telemetry:
  otlp_endpoint: "collector:4317"
  otlp_headers: "x-token=abc"
  sample_ratio: 0.25
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
	assert.Equal(t, 64_000, cfg.Limits.MaxInputBytes())
	assert.Equal(t, 500, cfg.Limits.MaxNodes)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.False(t, cfg.Render.Color)
	assert.Equal(t, 8, cfg.Render.MaxDepth)

	opts := cfg.BuildOptions()
	assert.Equal(t, 64_000, opts.MaxInputBytes)
	assert.Equal(t, 500, opts.MaxNodes)

	obs := cfg.Observability(observability.ModeServe, "1.0.0")
	assert.Equal(t, "collector:4317", obs.OTLPEndpoint)
	assert.Equal(t, map[string]string{"x-token": "abc"}, obs.OTLPHeaders)
	assert.True(t, obs.LogJSON)
	assert.True(t, obs.Prometheus)
	assert.Equal(t, "1.0.0", obs.ServiceVersion)
	assert.InDelta(t, 0.25, obs.SampleRatio, 0)

	assert.False(t, cfg.Observability(observability.ModeCLI, "").Prometheus)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"port", "server:\n  port: 70000\n", config.ErrInvalidPort},
		{"level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"size", "limits:\n  max_input_size: lots\n", config.ErrInvalidInputSize},
		{"nodes", "limits:\n  max_nodes: -1\n", config.ErrInvalidMaxNodes},
		{"depth", "render:\n  max_depth: 0\n", config.ErrInvalidRenderDepth},
		{"ratio", "telemetry:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("TREEFIND_SERVER_PORT", "7070")
	t.Setenv("TREEFIND_LIMITS_MAX_NODES", "12")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Limits.MaxNodes)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, 1<<20, cfg.Limits.MaxInputBytes())
	assert.Equal(t, config.DefaultChartWidth, cfg.Render.ChartWidth)
	assert.Equal(t, config.DefaultRenderMaxDepth, cfg.Render.MaxDepth)
	assert.Equal(t, 10_000, cfg.Limits.MaxNodes)
}
