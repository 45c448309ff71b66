package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const httpStatusServerError = 500

// GinMiddleware creates a server span per request and records RED metrics.
// Span names use the route template, "METHOD /route", falling back to the
// raw path for unmatched routes. red may be nil.
func GinMiddleware(tracer trace.Tracer, red *REDMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		op := c.Request.Method + " " + route

		// Extract W3C traceparent, tracestate and baggage from incoming headers.
		parentCtx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(parentCtx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		var done func()
		if red != nil {
			done = red.TrackInflight(ctx, op)
		}

		start := time.Now()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		code := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(code))

		status := StatusOK
		if code >= httpStatusServerError {
			status = StatusError

			span.SetStatus(codes.Error, http.StatusText(code))
		}

		if red != nil {
			done()
			red.RecordRequest(ctx, op, status, time.Since(start))
		}
	}
}
