// Package cosmosgremlin is a typed client layer for Gremlin-compatible graph
// databases such as the Azure Cosmos DB Gremlin API.
//
// Queries are submitted through a Runner (the transport) and every raw result
// item is classified into a wire.Element and materialized into the caller's
// type. Traversals carry their source and result types so that
//
//	people, err := cosmosgremlin.QueryTraversal(ctx, client, cosmosgremlin.V[Person]())
//
// returns a Result[Person] without the type being spelled out twice.
package cosmosgremlin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

const tracerName = "github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin"

// Runner submits query text to a graph database and returns the raw result
// items in the order the database produced them. Raw items are the output of
// wire.Decode or equivalent values (*wire.Object, []any and primitives).
//
// Connection management, retries and authentication belong to the Runner.
type Runner interface {
	Submit(ctx context.Context, q Statement) ([]any, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, q Statement) ([]any, error)

// Submit calls f.
func (f RunnerFunc) Submit(ctx context.Context, q Statement) ([]any, error) { return f(ctx, q) }

// Client is the query execution entry point. It is safe for concurrent use.
type Client struct {
	runner       Runner
	materializer *Materializer
	logger       *zap.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for query diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithConversionPolicy overrides how raw scalars are decoded.
func WithConversionPolicy(policy *ConversionPolicy) Option {
	return func(c *Client) { c.materializer = NewMaterializer(policy) }
}

// NewClient creates a Client that submits queries through runner.
//
// Parameters:
//   - runner: the transport used for every query.
//   - opts: optional logger, metrics, tracer and conversion policy.
//
// Returns:
//
//	A ready to use Client. Without options it logs nothing, records no
//	metrics and uses the global OpenTelemetry tracer provider.
func NewClient(runner Runner, opts ...Option) *Client {
	c := &Client{
		runner:       runner,
		materializer: NewMaterializer(nil),
		logger:       zap.NewNop(),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Materializer returns the materializer the client decodes results with.
func (c *Client) Materializer() *Materializer { return c.materializer }

// call tracks one query from submission to materialization.
type call struct {
	client *Client
	query  Statement
	site   string
	start  time.Time
	span   trace.Span
}

func (c *Client) begin(ctx context.Context, q Statement, site string) (context.Context, *call) {
	ctx, span := c.tracer.Start(ctx, "cosmosgremlin.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "gremlin"),
			attribute.String("db.statement", q.Text),
			attribute.String("code.call_site", site),
		),
	)
	return ctx, &call{client: c, query: q, site: site, start: time.Now(), span: span}
}

func (cl *call) end(results int, err error) {
	defer cl.span.End()
	elapsed := time.Since(cl.start)
	outcome := outcomeOf(err)
	cl.client.metrics.observe(outcome, elapsed, results)

	fields := []zap.Field{
		zap.String("query", cl.query.Text),
		zap.String("call_site", cl.site),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		cl.span.RecordError(err)
		cl.span.SetStatus(codes.Error, outcome)
		cl.client.logger.Warn("graph query failed", append(fields, zap.String("outcome", outcome), zap.Error(err))...)
		return
	}
	cl.span.SetAttributes(attribute.Int("db.result_count", results))
	cl.client.logger.Debug("graph query completed", append(fields, zap.Int("results", results))...)
}

func outcomeOf(err error) string {
	var (
		argErr       *ArgumentError
		transportErr *TransportError
		decodeErr    *DecodeError
	)
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &argErr):
		return outcomeArgumentError
	case errors.As(err, &transportErr):
		return outcomeTransportError
	case errors.As(err, &decodeErr):
		return outcomeDecodeError
	}
	return outcomeError
}

// rejected records a call that failed before anything was submitted, such as
// a traversal that could not be rendered.
func (c *Client) rejected(ctx context.Context, cfg callConfig, err error) {
	_, cl := c.begin(ctx, Statement{}, cfg.site)
	cl.end(0, err)
}

// roundTrip validates q and submits it.
func (c *Client) roundTrip(ctx context.Context, q Statement) ([]any, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, &ArgumentError{Name: "query"}
	}
	raw, err := c.runner.Submit(ctx, q)
	if err != nil {
		return nil, &TransportError{Query: q.Text, Err: err}
	}
	return raw, nil
}

// execute submits q and materializes every item into T. On any failure it
// returns a nil Result; partial results are never exposed.
func execute[T any](ctx context.Context, c *Client, q Statement, cfg callConfig) (res Result[T], err error) {
	ctx, cl := c.begin(ctx, q, cfg.site)
	defer func() { cl.end(len(res), err) }()

	raw, err := c.roundTrip(ctx, q)
	if err != nil {
		return nil, err
	}
	return materializeAll[T](c.materializer, raw)
}

func materializeAll[T any](m *Materializer, raw []any) (Result[T], error) {
	elements, err := wire.ClassifyAll(raw)
	if err != nil {
		return nil, err
	}
	out := make(Result[T], 0, len(elements))
	for i, el := range elements {
		v, err := Materialize[T](m, el)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.Path = fmt.Sprintf("[%d]", i) + prefixDot(de.Path)
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func prefixDot(path string) string {
	if path == "" || strings.HasPrefix(path, "[") {
		return path
	}
	return "." + path
}

// Execute submits query text and discards the results.
func Execute(ctx context.Context, c *Client, gremlin string, opts ...CallOption) error {
	cfg := newCallConfig(opts, 1)
	return c.submitOnly(ctx, Statement{Text: gremlin}, cfg)
}

// ExecuteTraversal renders t, submits it and discards the results.
func ExecuteTraversal[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) error {
	cfg := newCallConfig(opts, 1)
	q, err := t.Translate()
	if err != nil {
		c.rejected(ctx, cfg, err)
		return err
	}
	return c.submitOnly(ctx, q, cfg)
}

func (c *Client) submitOnly(ctx context.Context, q Statement, cfg callConfig) (err error) {
	var n int
	ctx, cl := c.begin(ctx, q, cfg.site)
	defer func() { cl.end(n, err) }()

	raw, err := c.roundTrip(ctx, q)
	n = len(raw)
	return err
}

// Query submits Gremlin text and materializes every result into T.
//
// Parameters:
//   - ctx: the context for the round trip; cancellation is honoured by the Runner.
//   - c: the client to submit through.
//   - gremlin: the query text. Empty text fails with an *ArgumentError.
//   - opts: optional call annotations such as WithCallSite.
//
// Returns:
//
//	The results in database order, or an error. On error no partial result
//	is returned.
func Query[T any](ctx context.Context, c *Client, gremlin string, opts ...CallOption) (Result[T], error) {
	return execute[T](ctx, c, Statement{Text: gremlin}, newCallConfig(opts, 1))
}

// QueryWithBindings is Query with parameter bindings.
func QueryWithBindings[T any](ctx context.Context, c *Client, gremlin string, bindings map[string]any, opts ...CallOption) (Result[T], error) {
	return execute[T](ctx, c, Statement{Text: gremlin, Bindings: bindings}, newCallConfig(opts, 1))
}

// QueryFirst returns the first result, or ErrEmptyResult.
func QueryFirst[T any](ctx context.Context, c *Client, gremlin string, opts ...CallOption) (T, error) {
	res, err := execute[T](ctx, c, Statement{Text: gremlin}, newCallConfig(opts, 1))
	return pickFrom(res, err, firstPolicy)
}

// QueryFirstOrDefault returns the first result, or the zero value when there
// are none.
func QueryFirstOrDefault[T any](ctx context.Context, c *Client, gremlin string, opts ...CallOption) (T, error) {
	res, err := execute[T](ctx, c, Statement{Text: gremlin}, newCallConfig(opts, 1))
	return pickFrom(res, err, firstOrDefaultPolicy)
}

// QuerySingle returns the only result, or a *CardinalityError when there is
// not exactly one.
func QuerySingle[T any](ctx context.Context, c *Client, gremlin string, opts ...CallOption) (T, error) {
	res, err := execute[T](ctx, c, Statement{Text: gremlin}, newCallConfig(opts, 1))
	return pickFrom(res, err, singlePolicy)
}

// QuerySingleOrDefault returns the only result, the zero value when there
// are none, or a *CardinalityError when there are several.
func QuerySingleOrDefault[T any](ctx context.Context, c *Client, gremlin string, opts ...CallOption) (T, error) {
	res, err := execute[T](ctx, c, Statement{Text: gremlin}, newCallConfig(opts, 1))
	return pickFrom(res, err, singleOrDefaultPolicy)
}

// QueryTraversal renders t and materializes every result into its result
// type E.
func QueryTraversal[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) (Result[E], error) {
	return queryTraversal(ctx, c, t, newCallConfig(opts, 1))
}

// QueryTraversalFirst is QueryFirst for a typed traversal.
func QueryTraversalFirst[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) (E, error) {
	res, err := queryTraversal(ctx, c, t, newCallConfig(opts, 1))
	return pickFrom(res, err, firstPolicy)
}

// QueryTraversalFirstOrDefault is QueryFirstOrDefault for a typed traversal.
func QueryTraversalFirstOrDefault[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) (E, error) {
	res, err := queryTraversal(ctx, c, t, newCallConfig(opts, 1))
	return pickFrom(res, err, firstOrDefaultPolicy)
}

// QueryTraversalSingle is QuerySingle for a typed traversal.
func QueryTraversalSingle[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) (E, error) {
	res, err := queryTraversal(ctx, c, t, newCallConfig(opts, 1))
	return pickFrom(res, err, singlePolicy)
}

// QueryTraversalSingleOrDefault is QuerySingleOrDefault for a typed traversal.
func QueryTraversalSingleOrDefault[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) (E, error) {
	res, err := queryTraversal(ctx, c, t, newCallConfig(opts, 1))
	return pickFrom(res, err, singleOrDefaultPolicy)
}

func queryTraversal[S, E any](ctx context.Context, c *Client, t Traversal[S, E], cfg callConfig) (Result[E], error) {
	q, err := t.Translate()
	if err != nil {
		c.rejected(ctx, cfg, err)
		return nil, err
	}
	return execute[E](ctx, c, q, cfg)
}

func pickFrom[T any](res Result[T], err error, policy cardinality) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return pick([]T(res), policy)
}
