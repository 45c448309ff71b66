package config

// Default configuration values.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8080
	DefaultReadTimeout  = "10s"
	DefaultWriteTimeout = "10s"
	DefaultIdleTimeout  = "60s"

	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText

	DefaultMaxInputSize = "1MiB"
	DefaultMaxNodes     = 10_000

	DefaultRenderColor    = true
	DefaultChartWidth     = "900px"
	DefaultChartHeight    = "600px"
	DefaultRenderMaxDepth = 32

	DefaultSampleRatio = 1.0
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const maxPort = 65535
