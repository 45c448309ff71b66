// Package server exposes a session over HTTP.
//
// Routes:
//
//	POST /api/tree        build a tree from {"text", "format"}
//	GET  /api/tree        snapshot of the tree with marker colors
//	GET  /api/tree/chart  HTML chart of the snapshot
//	GET  /api/schema      JSON Schema of the structured input form
//	POST /api/find        search for {"query"} and recolor the tree
//	GET  /healthz         liveness
//	GET  /readyz          readiness
//	GET  /metrics         Prometheus exposition, when enabled
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/treefind/pkg/config"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/session"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	requestIDHeader        = "X-Request-ID"
	requestIDKey           = "request_id"

	// bodyOverhead covers the JSON framing around the text field.
	bodyOverhead = 4 << 10
	// jsonEscapeFactor is the worst-case growth of a string escaped as \uXXXX.
	jsonEscapeFactor = 6
	// findBodyLimit bounds POST /api/find bodies.
	findBodyLimit = 16 << 10
)

// Deps are the collaborators of a Server. Nil fields get no-op defaults.
type Deps struct {
	Logger *slog.Logger
	Tracer trace.Tracer
	RED    *observability.REDMetrics
	// MetricsHandler serves GET /metrics. Nil leaves the route unregistered.
	MetricsHandler http.Handler
	// ReadyChecks gate GET /readyz.
	ReadyChecks []observability.ReadyCheck
}

// Server routes HTTP requests to a session.
type Server struct {
	session *session.Session
	cfg     config.ServerConfig
	chart   render.HTMLOptions
	deps    Deps
	valid   *requestValidator
	engine  *gin.Engine
	// buildBodyLimit of zero leaves build bodies unbounded.
	buildBodyLimit int64
}

// New wires the routes. maxInputBytes bounds the "text" field of build
// requests; zero or negative disables the check.
func New(sess *session.Session, cfg config.ServerConfig, chart render.HTMLOptions, maxInputBytes int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("treefind")
	}

	srv := &Server{
		session: sess,
		cfg:     cfg,
		chart:   chart,
		deps:    deps,
		valid:   newRequestValidator(maxInputBytes),
	}

	if maxInputBytes > 0 {
		srv.buildBodyLimit = int64(maxInputBytes)*jsonEscapeFactor + bodyOverhead
	}

	srv.engine = srv.routes()

	return srv
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestID())
	router.Use(observability.GinMiddleware(s.deps.Tracer, s.deps.RED))

	router.GET("/healthz", gin.WrapH(observability.HealthHandler()))
	router.GET("/readyz", gin.WrapH(observability.ReadyHandler(s.deps.ReadyChecks...)))

	if s.deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(s.deps.MetricsHandler))
	}

	api := router.Group("/api")
	{
		api.POST("/tree", s.handleBuild)
		api.GET("/tree", s.handleSnapshot)
		api.GET("/tree/chart", s.handleChart)
		api.GET("/schema", s.handleSchema)
		api.POST("/find", s.handleFind)
	}

	return router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.deps.Logger.InfoContext(ctx, "server listening", "addr", httpServer.Addr)

		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	s.deps.Logger.InfoContext(ctx, "server shutting down")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return errors.Wrap(err, "shutdown")
	}

	return nil
}

// requestID propagates or mints X-Request-ID and stores a request-scoped logger.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := getOrCreateRequestID(c)

		c.Header(requestIDHeader, id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

func (s *Server) logger(c *gin.Context) *slog.Logger {
	return s.deps.Logger.With(requestIDKey, c.GetString(requestIDKey))
}
