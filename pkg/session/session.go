// Package session owns the tree, node store and last search path of one caller.
//
// A Session replaces any process-wide "current tree": callers hold one and
// route builds and searches through it. Operations are serialized, and a
// build requested while another is running is rejected rather than queued.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/highlight"
	"github.com/Sumatoshi-tech/treefind/pkg/observability"
	"github.com/Sumatoshi-tech/treefind/pkg/search"
	"github.com/Sumatoshi-tech/treefind/pkg/store"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// ErrBuildInFlight is returned by BuildTree while another build is running.
var ErrBuildInFlight = errors.New("build already in progress")

const (
	opBuild = "treefind.session.build"
	opFind  = "treefind.session.find"
)

// Deps are the collaborators of a Session. Nil fields get no-op defaults.
type Deps struct {
	Logger *slog.Logger
	Tracer trace.Tracer
	RED    *observability.REDMetrics
	Tree   *observability.TreeMetrics
}

// Session serializes builds and searches over one node store.
type Session struct {
	opts builder.Options
	deps Deps

	building atomic.Bool

	mu       sync.Mutex
	store    *store.Store
	previous tree.Path
}

// New returns a Session holding an empty tree. opts tune every build.
func New(opts builder.Options, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("treefind")
	}

	if deps.RED == nil || deps.Tree == nil {
		red, tm := observability.NoopMetrics()

		if deps.RED == nil {
			deps.RED = red
		}

		if deps.Tree == nil {
			deps.Tree = tm
		}
	}

	return &Session{opts: opts, deps: deps, store: store.New()}
}

// BuildTree parses text and installs the result as the current tree.
//
// On success the previous path is reverted, the store switches to the new
// generation and the path is cleared. On failure nothing changes and the
// error is a *builder.ParseError, ErrBuildInFlight or the context error.
func (s *Session) BuildTree(ctx context.Context, text string) (*tree.Tree, error) {
	return s.build(ctx, text, s.opts)
}

// BuildTreeAs is BuildTree with an explicit input format.
func (s *Session) BuildTreeAs(ctx context.Context, text string, format builder.Format) (*tree.Tree, error) {
	opts := s.opts
	opts.Format = format

	return s.build(ctx, text, opts)
}

func (s *Session) build(ctx context.Context, text string, opts builder.Options) (*tree.Tree, error) {
	if !s.building.CompareAndSwap(false, true) {
		s.deps.Logger.WarnContext(ctx, "build rejected", "reason", ErrBuildInFlight.Error())

		return nil, ErrBuildInFlight
	}
	defer s.building.Store(false)

	ctx, span := s.deps.Tracer.Start(ctx, opBuild, trace.WithAttributes(
		attribute.Int("tree.input_bytes", len(text)),
		attribute.String("tree.format", string(opts.Format)),
	))
	defer span.End()

	done := s.deps.RED.TrackInflight(ctx, opBuild)
	defer done()

	start := time.Now()

	built, err := builder.BuildWith(text, opts)
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		s.fail(ctx, span, opBuild, start, err)
		s.deps.Logger.WarnContext(ctx, "build failed", "error", err)

		return nil, err
	}

	s.mu.Lock()

	revertErr := highlight.Revert(s.store, s.previous)
	s.store.Replace(built)
	s.previous = nil

	s.mu.Unlock()

	if revertErr != nil {
		s.deps.Logger.WarnContext(ctx, "revert before rebuild failed", "error", revertErr)
	}

	height := built.Height()

	span.SetAttributes(attribute.Int("tree.nodes", built.Len()), attribute.Int("tree.height", height))
	s.deps.Tree.RecordBuild(ctx, built.Len(), height)
	s.deps.RED.RecordRequest(ctx, opBuild, observability.StatusOK, time.Since(start))
	s.deps.Logger.InfoContext(ctx, "tree built",
		"nodes", built.Len(), "height", height, "generation", built.Generation())

	return built, nil
}

// Result describes one search.
type Result struct {
	Query  string    `json:"query"`
	Target float64   `json:"target"`
	Path   tree.Path `json:"path"`
	Values []float64 `json:"values"`
	// Searched is false when the query was empty or not a finite number.
	Searched bool `json:"searched"`
	// Invalid is set for non-empty queries that are not finite numbers.
	Invalid bool `json:"invalid,omitempty"`
	// Matched reports whether the frontier equals Target.
	Matched bool `json:"matched"`
}

// Frontier returns the last value of the path.
func (r Result) Frontier() (float64, bool) {
	if len(r.Values) == 0 {
		return 0, false
	}

	return r.Values[len(r.Values)-1], true
}

// FindValue searches the current tree for raw and recolors the store.
//
// A query that is empty or not a finite number runs no search: the previous
// path is reverted and the result has Searched unset. Such queries are not
// errors. Errors come only from the store.
func (s *Session) FindValue(ctx context.Context, raw string) (Result, error) {
	ctx, span := s.deps.Tracer.Start(ctx, opFind)
	defer span.End()

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.store.Tree()
	result := Result{Query: raw}

	path, err := highlight.ApplyQuery(s.store, t, s.previous, raw)

	switch {
	case errors.Is(err, highlight.ErrInvalidTarget):
		result.Invalid = true
		s.previous = nil
	case err != nil:
		s.fail(ctx, span, opFind, start, err)

		return Result{}, err
	default:
		s.previous = path
	}

	outcome := observability.OutcomeInvalid

	if path != nil {
		result.Searched = true
		result.Target, _ = highlight.ParseTarget(raw)
		result.Path = path.Clone()
		result.Values = search.Values(t, path)
		result.Matched = search.Matches(t, path, result.Target)

		switch {
		case len(path) == 0:
			outcome = observability.OutcomeEmpty
		case result.Matched:
			outcome = observability.OutcomeMatch
		default:
			outcome = observability.OutcomeNearMiss
		}

		s.deps.Tree.RecordSearch(ctx, outcome, len(path))
	} else if result.Invalid {
		s.deps.Tree.RecordSearch(ctx, outcome, 0)
	}

	span.SetAttributes(
		attribute.Int("search.depth", len(path)),
		attribute.Bool("search.matched", result.Matched),
		attribute.Bool("search.ran", result.Searched),
	)
	s.deps.RED.RecordRequest(ctx, opFind, observability.StatusOK, time.Since(start))
	s.deps.Logger.DebugContext(ctx, "search applied",
		"searched", result.Searched, "depth", len(path), "matched", result.Matched)

	return result, nil
}

// Snapshot is a consistent view of the tree and its colors.
type Snapshot struct {
	Generation string      `json:"generation"`
	Root       tree.NodeID `json:"root,omitempty"`
	Height     int         `json:"height"`
	Nodes      []tree.Node `json:"nodes"`
	Path       tree.Path   `json:"path"`
}

// Node looks up a node of the snapshot by ID.
func (snap Snapshot) Node(id tree.NodeID) (tree.Node, bool) {
	idx := id.Index()
	if id.Generation() != snap.Generation || idx < 0 || idx >= len(snap.Nodes) {
		return tree.Node{}, false
	}

	return snap.Nodes[idx], true
}

// Snapshot returns the nodes with their colors in insertion order.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, nodes := s.store.Nodes()

	return Snapshot{
		Generation: t.Generation(),
		Root:       t.Root(),
		Height:     t.Height(),
		Nodes:      nodes,
		Path:       s.previous.Clone(),
	}
}

// Tree returns the current tree.
func (s *Session) Tree() *tree.Tree {
	return s.store.Tree()
}

func (s *Session) fail(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.deps.RED.RecordRequest(ctx, op, observability.StatusError, time.Since(start))
}
