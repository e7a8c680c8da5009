package chain

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/emilythestrangee/filblog/backend/internal/chain"

type metrics struct {
	calls        metric.Int64Counter
	callDuration metric.Float64Histogram
	txStates     metric.Int64Counter
}

type observability struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	onState func(TxState, common.Hash)
}

func defaultObservability() observability {
	return observability{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the structured logger used for call and transaction logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.obs.logger = logger
		}
	}
}

// WithTracer sets the tracer; nil disables tracing.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.obs.tracer = tracer
	}
}

// WithDefaultTracer uses the global OpenTelemetry tracer provider.
func WithDefaultTracer() Option {
	return WithTracer(otel.Tracer(instrumentationName))
}

// WithMeter enables call and transaction metrics.
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.obs.metrics = initMetrics(meter)
	}
}

// WithDefaultMeter uses the global OpenTelemetry meter provider.
func WithDefaultMeter() Option {
	return WithMeter(otel.Meter(instrumentationName))
}

// WithStateHook registers fn to observe every transaction state change.
func WithStateHook(fn func(TxState, common.Hash)) Option {
	return func(c *Client) {
		c.obs.onState = fn
	}
}

func initMetrics(meter metric.Meter) *metrics {
	calls, _ := meter.Int64Counter("blog.contract.calls",
		metric.WithDescription("Contract calls and transactions issued"),
		metric.WithUnit("{call}"),
	)
	duration, _ := meter.Float64Histogram("blog.contract.duration",
		metric.WithDescription("Contract call duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 5000, 15000, 60000),
	)
	states, _ := meter.Int64Counter("blog.contract.tx_states",
		metric.WithDescription("Transaction state transitions"),
		metric.WithUnit("{transition}"),
	)
	return &metrics{calls: calls, callDuration: duration, txStates: states}
}

type span struct {
	s trace.Span
}

func (w span) end(err error) {
	if w.s == nil {
		return
	}
	if err != nil {
		w.s.RecordError(err)
		w.s.SetStatus(codes.Error, err.Error())
	}
	w.s.End()
}

func (o *observability) start(ctx context.Context, method string, write bool) (context.Context, span) {
	if o.tracer == nil {
		return ctx, span{}
	}
	ctx, s := o.tracer.Start(ctx, "Blog."+method, trace.WithAttributes(
		attribute.String("contract.method", method),
		attribute.Bool("contract.write", write),
	))
	return ctx, span{s}
}

func (o *observability) record(ctx context.Context, method string, write bool, took time.Duration, err error) {
	if o.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("contract.method", method),
			attribute.Bool("contract.write", write),
			attribute.Bool("error", err != nil),
		)
		o.metrics.calls.Add(ctx, 1, attrs)
		o.metrics.callDuration.Record(ctx, float64(took.Milliseconds()), attrs)
	}
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelError, "contract call failed",
			slog.String("method", method),
			slog.Duration("duration", took),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "contract call",
		slog.String("method", method),
		slog.Duration("duration", took),
	)
}

func (o *observability) state(ctx context.Context, method string, st TxState, hash common.Hash) {
	if o.metrics != nil {
		o.metrics.txStates.Add(ctx, 1, metric.WithAttributes(
			attribute.String("contract.method", method),
			attribute.String("tx.state", st.String()),
		))
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "transaction "+st.String(),
		slog.String("method", method),
		slog.String("tx", hash.Hex()),
	)
	if o.onState != nil {
		o.onState(st, hash)
	}
}
