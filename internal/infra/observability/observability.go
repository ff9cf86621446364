// Package observability provides the metrics context and lightweight tracing
// for the credits service.
//
// Metrics are registered on an explicitly supplied prometheus.Registerer and
// handed to the components that need them; nothing registers on the global
// default registry.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans
// ═══════════════════════════════════════════════════════════════════════════

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// Span represents one ledger or pricing operation within a request trace.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent spans in memory for inspection.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
	metrics  *Metrics
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 10_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 10_000,
	}
}

// NewTracer creates a new tracer. m may be nil.
func NewTracer(cfg TracerConfig, m *Metrics) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = 10_000
	}
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
		metrics:  m,
	}
}

// StartSpan begins a new span. The caller must call EndSpan.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation}
	}
	return &Span{
		TraceID:   TraceIDFromContext(ctx),
		SpanID:    uuid.NewString(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if t == nil || !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
	}
	if t.metrics != nil {
		t.metrics.OperationDuration.WithLabelValues(span.Operation, span.Status.String()).Observe(span.Duration.Seconds())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

func (s SpanStatus) String() string {
	if s == SpanError {
		return "error"
	}
	return "ok"
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "credits-trace-id"
	spanIDKey  contextKey = "credits-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context with the given span ID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

// TraceIDFromContext returns the trace ID, generating one when absent.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return uuid.NewString()
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Metrics Context
// ═══════════════════════════════════════════════════════════════════════════

// Metrics groups every collector the service exports.
type Metrics struct {
	// Cache
	CacheRequests    *prometheus.CounterVec
	CacheFetchErrors *prometheus.CounterVec
	CacheEvictions   *prometheus.CounterVec

	// Oracles
	OracleLatency  *prometheus.HistogramVec
	OracleFailures *prometheus.CounterVec

	// Pricing
	Quotes             *prometheus.CounterVec
	AdjustmentsApplied *prometheus.CounterVec

	// Ledger
	Reservations      *prometheus.CounterVec
	Refunds           *prometheus.CounterVec
	ReservedWinc      prometheus.Counter
	CryptoPayments    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Read-through cache lookups by cache and result (hit/miss).",
		}, []string{"cache", "result"}),
		CacheFetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Upstream fetches that failed and were dropped from the cache.",
		}, []string{"cache"}),
		CacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted by capacity.",
		}, []string{"cache"}),

		OracleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "credits",
			Subsystem: "oracle",
			Name:      "request_seconds",
			Help:      "Upstream oracle request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"oracle"}),
		OracleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "oracle",
			Name:      "failures_total",
			Help:      "Upstream oracle requests that failed after retries.",
		}, []string{"oracle"}),

		Quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Price quotes by kind (bytes/payment/crypto) and outcome.",
		}, []string{"kind", "outcome"}),
		AdjustmentsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "pricing",
			Name:      "adjustments_applied_total",
			Help:      "Adjustments applied to quotes by catalog id.",
		}, []string{"catalog_id"}),

		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "reservations_total",
			Help:      "Balance reservations by outcome.",
		}, []string{"outcome"}),
		Refunds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "refunds_total",
			Help:      "Reservation refunds by outcome (refunded/noop/error).",
		}, []string{"outcome"}),
		ReservedWinc: f.NewCounter(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "reserved_winc_total",
			Help:      "Total winc reserved (lossy float).",
		}),
		CryptoPayments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "crypto_payments_total",
			Help:      "Crypto payment transitions by token and status.",
		}, []string{"token", "status"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "operation_seconds",
			Help:      "Traced operation duration by operation and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
}

// ─── cache.Observer ─────────────────────────────────────────────────────────

func (m *Metrics) CacheHit(name string)  { m.CacheRequests.WithLabelValues(name, "hit").Inc() }
func (m *Metrics) CacheMiss(name string) { m.CacheRequests.WithLabelValues(name, "miss").Inc() }

func (m *Metrics) CacheFetchError(name string) { m.CacheFetchErrors.WithLabelValues(name).Inc() }

func (m *Metrics) CacheEviction(name string) { m.CacheEvictions.WithLabelValues(name).Inc() }
