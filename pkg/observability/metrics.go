package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const (
	metricRequestsTotal    = "treefind.requests.total"
	metricRequestDuration  = "treefind.request.duration.seconds"
	metricErrorsTotal      = "treefind.errors.total"
	metricInflightRequests = "treefind.inflight.requests"

	metricTreeNodes      = "treefind.tree.nodes"
	metricTreeHeight     = "treefind.tree.height"
	metricSearchDepth    = "treefind.search.depth"
	metricSearchOutcomes = "treefind.search.outcomes.total"

	attrOp      = "op"
	attrStatus  = "status"
	attrOutcome = "outcome"

	// StatusOK and StatusError are the status values RecordRequest expects.
	StatusOK    = "ok"
	StatusError = "error"

	// Search outcomes.
	OutcomeMatch    = "match"
	OutcomeNearMiss = "near_miss"
	OutcomeEmpty    = "empty"
	OutcomeInvalid  = "invalid"
)

// Builds and searches are interactive, so buckets stop at ten seconds.
var durationBucketBoundaries = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

var (
	sizeBucketBoundaries  = []float64{0, 1, 10, 100, 1_000, 10_000, 100_000}
	depthBucketBoundaries = []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 1024}
)

// REDMetrics holds the Rate, Error and Duration instruments.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	red := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return red, nil
}

// RecordRequest records a completed operation.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// TreeMetrics holds instruments describing built trees and searches.
type TreeMetrics struct {
	nodes    metric.Int64Histogram
	height   metric.Int64Histogram
	depth    metric.Int64Histogram
	outcomes metric.Int64Counter
}

// NewTreeMetrics creates the tree and search instruments from mt.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &TreeMetrics{
		nodes:    b.intHistogram(metricTreeNodes, "Nodes in each built tree", "{node}", sizeBucketBoundaries...),
		height:   b.intHistogram(metricTreeHeight, "Height of each built tree", "{node}", depthBucketBoundaries...),
		depth:    b.intHistogram(metricSearchDepth, "Nodes visited by each search", "{node}", depthBucketBoundaries...),
		outcomes: b.counter(metricSearchOutcomes, "Searches by outcome", "{search}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordBuild records the shape of a freshly built tree.
func (tm *TreeMetrics) RecordBuild(ctx context.Context, nodes, height int) {
	tm.nodes.Record(ctx, int64(nodes))
	tm.height.Record(ctx, int64(height))
}

// RecordSearch records one search. Depth is ignored when no search ran.
func (tm *TreeMetrics) RecordSearch(ctx context.Context, outcome string, depth int) {
	tm.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))

	if outcome != OutcomeInvalid {
		tm.depth.Record(ctx, int64(depth))
	}
}

// NoopMetrics returns RED and tree instruments that record nothing.
func NoopMetrics() (*REDMetrics, *TreeMetrics) {
	mt := noopmetric.NewMeterProvider().Meter(meterName)

	// Noop instruments never fail.
	red, _ := NewREDMetrics(mt)
	tm, _ := NewTreeMetrics(mt)

	return red, tm
}
