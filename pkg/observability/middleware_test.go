package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treefind/pkg/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(t *testing.T, red *observability.REDMetrics) (*gin.Engine, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	engine := gin.New()
	engine.Use(observability.GinMiddleware(tp.Tracer("test"), red))

	return engine, exporter
}

func TestGinMiddleware_UsesRouteTemplate(t *testing.T) {
	t.Parallel()

	engine, exporter := newTestEngine(t, nil)
	engine.GET("/api/nodes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nodes/abc", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/nodes/:id", spans[0].Name)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
}

func TestGinMiddleware_MarksServerErrors(t *testing.T) {
	t.Parallel()

	engine, exporter := newTestEngine(t, nil)
	engine.POST("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	engine.POST("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/boom", http.NoBody))
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/bad", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
	assert.NotEqual(t, "Error", spans[1].Status.Code.String(), "client errors keep the span ok")
}

func TestGinMiddleware_PropagatesContext(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, nil)

	var seen trace.SpanContext

	engine.GET("/ctx", func(c *gin.Context) {
		seen = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ctx", http.NoBody)
	otel.GetTextMapPropagator().Inject(context.Background(), propagation.HeaderCarrier(req.Header))

	engine.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, seen.IsValid())
}

func TestGinMiddleware_RecordsRED(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	red, err := observability.NewREDMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	engine, _ := newTestEngine(t, red)
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	reqTotal := findMetric(collectMetrics(t, reader), "treefind.requests.total")
	require.NotNil(t, reqTotal)
	assert.Equal(t, int64(1), counterTotal(t, reqTotal))
}
