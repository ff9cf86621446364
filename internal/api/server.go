// Package api provides the HTTP surface of the credits service: price quotes,
// balances, reservations, approvals and crypto payment submission.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/app/ledger"
	"github.com/tutu-network/credits/internal/app/pricing"
	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// Pricer is the pricing engine as the API uses it.
type Pricer interface {
	PriceForBytes(ctx context.Context, bytes int64, payer string) (pricing.BytesQuote, error)
	CreditsForPayment(ctx context.Context, payment domain.Payment, promoCodes []string, payer string) (pricing.PaymentQuote, error)
	CreditsForCryptoPayment(ctx context.Context, amount domain.Winc, token domain.Token, mode domain.FeeMode) (pricing.CryptoQuote, error)
	CurrencyLimits(ctx context.Context) (map[domain.Currency]pricing.Limits, error)
}

// Ledger is the credit ledger as the API uses it.
type Ledger interface {
	GetBalance(ctx context.Context, address string) (domain.Balance, error)
	ReserveBalance(ctx context.Context, req ledger.ReserveRequest) (domain.Reservation, error)
	RefundBalance(ctx context.Context, signer, dataItemID string) (domain.Reservation, bool, error)
	FinalizeReservation(ctx context.Context, dataItemID string) (domain.Reservation, error)
	CreateApproval(ctx context.Context, req ledger.ApprovalRequest) (domain.Approval, error)
	GetApprovals(ctx context.Context, payer, approved string) ([]domain.Approval, error)
	RevokeApprovals(ctx context.Context, payer, approved, approvalID string) ([]domain.Approval, error)
	SubmitCryptoPayment(ctx context.Context, token domain.Token, txID string) (domain.CryptoPayment, error)
	GetCryptoPayment(ctx context.Context, txID string) (domain.CryptoPayment, error)
	CreditPaymentReceipt(ctx context.Context, r domain.PaymentReceipt) (domain.PaymentReceipt, bool, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls the HTTP server.
type Config struct {
	RequestTimeout time.Duration // per request (default: 30s)
	MaxBodyBytes   int64         // request body cap (default: 64 KiB)

	// AdminToken guards the routes that move or mint credits. When empty
	// those routes answer 401 to everyone.
	AdminToken string
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string
}

// DefaultConfig returns production server defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		MaxBodyBytes:   64 << 10,
		CORSOrigins:    []string{"*"},
	}
}

// Deps are the server's collaborators. Health, Gatherer, Tracer and Logger
// may be nil.
type Deps struct {
	Pricer   Pricer
	Ledger   Ledger
	Health   Pinger
	Gatherer prometheus.Gatherer
	Tracer   *observability.Tracer
	Logger   *zap.Logger
}

// Server is the credits HTTP API server.
type Server struct {
	cfg      Config
	pricer   Pricer
	ledger   Ledger
	health   Pinger
	gatherer prometheus.Gatherer
	tracer   *observability.Tracer
	logger   *zap.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps) *Server {
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		pricer:   deps.Pricer,
		ledger:   deps.Ledger,
		health:   deps.Health,
		gatherer: deps.Gatherer,
		tracer:   deps.Tracer,
		logger:   logger.Named("api"),
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.traceMiddleware)
	r.Use(s.logMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.tracer != nil {
		r.Get("/debug/spans", s.handleSpans)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/price/bytes/{bytes}", s.handlePriceBytes)
		r.Get("/price/crypto/{token}/{amount}", s.handlePriceCrypto)
		r.Get("/price/{currency}/{amount}", s.handlePricePayment)
		r.Get("/currencies", s.handleCurrencies)

		r.Get("/balance", s.handleBalance)
		r.Get("/approvals", s.handleGetApprovals)

		// Submitted transactions are verified on chain before crediting.
		r.Post("/crypto-payments/{token}/{txId}", s.handleSubmitCryptoPayment)
		r.Get("/crypto-payments/{txId}", s.handleGetCryptoPayment)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Post("/reserve-balance/{signer}", s.handleReserve)
			r.Post("/refund-balance/{signer}", s.handleRefund)
			r.Post("/finalize/{dataItemId}", s.handleFinalize)

			r.Post("/approvals", s.handleCreateApproval)
			r.Post("/approvals/revoke", s.handleRevokeApprovals)

			r.Post("/payment-receipts", s.handlePaymentReceipt)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSpans returns the most recent ledger spans, newest last.
func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, domain.ErrInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": s.tracer.SpanCount(),
		"spans": s.tracer.Spans(limit),
	})
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// traceMiddleware carries the request id into the trace context so ledger
// spans from one request share a trace id.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set("X-Trace-Id", id)
			r = r.WithContext(observability.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("traceId", middleware.GetReqID(r.Context())))
	})
}

// requireToken admits requests carrying "Authorization: Bearer <AdminToken>".
func (s *Server) requireToken(next http.Handler) http.Handler {
	want := []byte(s.cfg.AdminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if len(want) == 0 || !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			s.writeError(w, r, domain.ErrUnauthorized())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers browser clients from the configured origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allow := s.allowedOrigin(r.Header.Get("Origin")); allow != "" {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if allow != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status. Errors without a domain kind are logged
// and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("traceId", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "internal error", "type": "internal"},
		})
		return
	}
	body := map[string]any{
		"message": de.Message,
		"type":    string(de.Kind),
	}
	if len(de.Fields) > 0 {
		body["fields"] = de.Fields
	}
	writeJSON(w, de.Kind.HTTPStatus(), map[string]any{"error": body})
}

// decodeBody reads a JSON request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidRequest("malformed request body: " + err.Error())
	}
	return nil
}
