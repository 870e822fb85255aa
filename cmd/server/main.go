// Package main is the entry point for the portfolio engine service: risk
// scoring, allocation targets, performance analytics, and rebalance advice
// behind a small JSON API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/defi-portfolio-engine/internal/aggregate"
	"github.com/yourorg/defi-portfolio-engine/internal/allocation"
	"github.com/yourorg/defi-portfolio-engine/internal/analytics"
	"github.com/yourorg/defi-portfolio-engine/internal/chain"
	"github.com/yourorg/defi-portfolio-engine/internal/circuitbreaker"
	"github.com/yourorg/defi-portfolio-engine/internal/config"
	"github.com/yourorg/defi-portfolio-engine/internal/export"
	"github.com/yourorg/defi-portfolio-engine/internal/fetch"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/yourorg/defi-portfolio-engine/internal/otel"
	"github.com/yourorg/defi-portfolio-engine/internal/rebalance"
	"github.com/yourorg/defi-portfolio-engine/internal/risk"
	"github.com/yourorg/defi-portfolio-engine/internal/security"
	"github.com/yourorg/defi-portfolio-engine/internal/store"
	"github.com/yourorg/defi-portfolio-engine/internal/validation"
	"golang.org/x/time/rate"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server holds the wired-up service: engines are stateless, everything
// stateful (store, breaker, signer, exporter) lives here.
type Server struct {
	cfg config.Config

	// Per-protocol market-data clients
	providers []fetch.Provider

	// Native-token price lookup for display values
	price *fetch.PriceClient

	// Profile and snapshot persistence
	store *store.Store

	// Market-data guard in front of the allocation path
	breaker *circuitbreaker.CircuitBreaker

	// On-chain vault reader, nil unless CHAIN_ENABLED
	vault *chain.VaultReader

	// Signs analytics payloads for downstream verification
	signer *security.Signer

	// Rebalance alert webhook, nil when not configured
	exporter *export.AlertExporter

	// Rate limiting for the public API
	limiter *rate.Limiter

	metrics        *serverMetrics
	validationOpts validation.Options

	httpServer *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	breakerState    prometheus.Gauge
	protocolAPY     *prometheus.GaugeVec
	quoteCount      prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_requests_total",
				Help: "Total number of API requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_provider_errors_total",
				Help: "Total number of market-data provider errors",
			},
			[]string{"provider"},
		),
		breakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_breaker_state",
				Help: "Market-data guard state (0=closed, 1=open, 2=half-open)",
			},
		),
		protocolAPY: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portfolio_protocol_apy",
				Help: "Blended APY per protocol in percent",
			},
			[]string{"protocol"},
		),
		quoteCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_quote_count",
				Help: "Number of APY quotes in the last accepted batch",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.providerErrors,
		m.breakerState,
		m.protocolAPY,
		m.quoteCount,
	)

	return m
}

func main() {
	setupLogging()

	cfg := config.Load()

	shutdownTracing := otel.InitTracer(cfg)
	defer shutdownTracing()

	server, err := NewServer(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize server: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer wires all components from configuration.
func NewServer(cfg config.Config) (*Server, error) {
	st, err := store.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	signer, err := security.NewSigner()
	if err != nil {
		return nil, fmt.Errorf("signer initialization failed: %w", err)
	}

	metrics := registerMetrics()

	breaker := circuitbreaker.New(circuitbreaker.Thresholds{
		MaxAPY:       cfg.MaxAPY,
		MaxAPYChange: cfg.MaxAPYChange,
		MinSources:   cfg.MinSources,
	}).
		WithResetDelay(cfg.GuardResetDelay).
		WithTripCallback(func(reason string, quotes []model.APYQuote) {
			logrus.WithField("quote_count", len(quotes)).
				Warnf("Market-data guard tripped: %s", reason)
		})

	server := &Server{
		cfg:            cfg,
		providers:      fetch.NewProviders(cfg),
		price:          fetch.NewPriceClient(cfg),
		store:          st,
		breaker:        breaker,
		signer:         signer,
		exporter:       export.NewAlertExporter(cfg.WebhookURL, cfg.WebhookAPIKey, 50, time.Minute),
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		metrics:        metrics,
		validationOpts: validation.DefaultOptions(),
	}
	server.validationOpts.MaxAPY = cfg.MaxAPY

	if cfg.ChainEnabled {
		vault, err := chain.NewVaultReader(cfg.RPCEndpoint, cfg.VaultAddress)
		if err != nil {
			return nil, fmt.Errorf("vault reader initialization failed: %w", err)
		}
		if err := vault.VerifyNetwork(ctx, chain.NetworkEthereum); err != nil {
			logrus.Warnf("Vault network verification failed: %v", err)
		}
		server.vault = vault
	}

	logrus.WithFields(logrus.Fields{
		"port":             cfg.Port,
		"aggregation_mode": cfg.AggregationMode,
		"chain_enabled":    cfg.ChainEnabled,
		"provider_count":   len(server.providers),
		"signer":           signer.Address(),
	}).Info("Server initialized")

	return server, nil
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/risk/assess", s.limited(s.handleRiskAssess))
	mux.HandleFunc("/allocation", s.limited(s.handleAllocation))
	mux.HandleFunc("/portfolio/metrics", s.limited(s.handlePortfolioMetrics))
	mux.HandleFunc("/portfolio/snapshot", s.limited(s.handleSnapshot))
	mux.HandleFunc("/rebalance", s.limited(s.handleRebalance))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	mux.HandleFunc("/circuit", s.handleCircuitStatus)

	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	s.exporter.Stop()
	if s.vault != nil {
		s.vault.Close()
	}
	if err := s.store.Close(); err != nil {
		logrus.Warnf("Store close failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// limited wraps a handler with rate limiting and request metrics.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.errorResponse(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		start := time.Now()
		next(w, r)
		s.metrics.requestDuration.WithLabelValues(r.URL.Path).
			Observe(time.Since(start).Seconds())
	}
}

// assessRequest is the payload for POST /risk/assess.
type assessRequest struct {
	// UserID is optional; when present the resulting profile is persisted
	// as the user's authoritative profile
	UserID  string                      `json:"user_id,omitempty"`
	Answers []model.QuestionnaireAnswer `json:"answers"`
}

// handleRiskAssess scores a questionnaire and optionally persists the profile.
func (s *Server) handleRiskAssess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateAnswers(req.Answers); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	assessment, err := risk.Score(req.Answers)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.UserID != "" {
		rec := model.RiskProfileRecord{
			UserID:     req.UserID,
			Score:      assessment.Score,
			Profile:    assessment.Profile,
			Version:    assessment.Version,
			AssessedAt: time.Now().UTC(),
		}
		if err := s.store.SaveProfile(r.Context(), rec); err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				s.errorResponse(w, r, http.StatusBadRequest, err.Error())
			} else {
				s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
			}
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": req.UserID,
			"score":   assessment.Score,
			"profile": assessment.Profile,
		}).Info("Risk profile updated")
	}

	s.jsonResponse(w, r, http.StatusOK, assessment)
}

// handleAllocation returns the target allocation for a risk score, priced
// with current blended market APYs.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	score, err := queryInt(r, "score")
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	apys, err := s.marketAPYs(r.Context())
	if err != nil {
		s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}

	strategy, err := allocation.Build(score, apys)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.jsonResponse(w, r, http.StatusOK, strategy)
}

// handlePortfolioMetrics computes performance analytics over a user's
// snapshot history and returns them as a signed payload.
func (s *Server) handlePortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		s.errorResponse(w, r, http.StatusBadRequest, "missing user parameter")
		return
	}
	limit := queryIntOrDefault(r, "limit", 0)

	history, err := s.store.History(r.Context(), userID, limit)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	if err := validation.ValidateHistory(history); err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	history = validation.NormalizeHistory(history)

	principal, err := s.store.Principal(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	metrics := analytics.Compute(history, principal, analytics.Options{
		RiskFreeRate: s.cfg.RiskFreeRate,
	})

	signed, err := s.signer.Sign(metrics)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, r, http.StatusOK, signed)
}

// snapshotRequest is the payload for POST /portfolio/snapshot.
type snapshotRequest struct {
	UserID     string                      `json:"user_id"`
	TotalValue float64                     `json:"total_value"`
	Protocols  [model.NumProtocols]float64 `json:"protocols"`

	// Deposited, when positive, updates the user's recorded principal
	Deposited float64 `json:"deposited,omitempty"`
}

// handleSnapshot appends one valuation snapshot to a user's history.
// Histories are append-only; there is no way to edit or remove one.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		s.errorResponse(w, r, http.StatusBadRequest, "missing user_id")
		return
	}

	snap := model.PortfolioSnapshot{
		Timestamp:  time.Now().UTC(),
		TotalValue: req.TotalValue,
		Protocols:  req.Protocols,
	}
	if err := validation.ValidateHistory([]model.PortfolioSnapshot{snap}); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.AppendSnapshot(r.Context(), req.UserID, snap); err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Deposited > 0 {
		if err := s.store.SetPrincipal(r.Context(), req.UserID, req.Deposited); err != nil {
			s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.jsonResponse(w, r, http.StatusCreated, map[string]interface{}{
		"status":    "recorded",
		"timestamp": snap.Timestamp.Format(time.RFC3339),
	})
}

// handleRebalance compares a user's current allocation against their target
// and reports whether the drift justifies rebalancing.
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		s.errorResponse(w, r, http.StatusBadRequest, "missing user parameter")
		return
	}

	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, r, http.StatusNotFound, err.Error())
		return
	}

	apys, err := s.marketAPYs(r.Context())
	if err != nil {
		s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}

	strategy, err := allocation.Build(profile.Score, apys)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	current, err := s.currentAllocation(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	threshold := s.cfg.DriftThresholdPct
	if s.vault != nil {
		if bps, err := s.vault.DriftThresholdBps(r.Context()); err == nil && bps > 0 {
			threshold = float64(bps) / 100
		} else if err != nil {
			logrus.Warnf("Falling back to configured drift threshold: %v", err)
		}
	}

	rec := rebalance.Recommend(current, strategy.AsAllocation(), threshold)
	s.exporter.Add(userID, rec)

	s.jsonResponse(w, r, http.StatusOK, rec)
}

// currentAllocation prefers the on-chain vault state and falls back to the
// latest stored snapshot when no vault is configured.
func (s *Server) currentAllocation(ctx context.Context, userID string) (model.Allocation, error) {
	if s.vault != nil {
		return s.vault.CurrentAllocation(ctx)
	}

	history, err := s.store.History(ctx, userID, 1)
	if err != nil {
		return model.Allocation{}, err
	}
	if len(history) == 0 {
		return model.Allocation{}, fmt.Errorf("no snapshots recorded for user %s", userID)
	}
	return history[0].CurrentAllocation(), nil
}

// marketAPYs fetches quotes from all providers, filters and guards them, and
// blends them into one APY per protocol. When the guard trips it serves the
// last known-good batch instead of failing outright.
func (s *Server) marketAPYs(ctx context.Context) (model.ProtocolAPYs, error) {
	ctx, span := otel.Tracer().Start(ctx, "market_apys")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	quotes, err := s.fetchAllQuotes(ctx)
	if err != nil {
		otel.RecordError(ctx, err)
		return model.ProtocolAPYs{}, err
	}

	quotes = validation.FilterQuotes(quotes, s.validationOpts)
	if len(quotes) == 0 {
		err := fmt.Errorf("no valid quotes available after filtering")
		otel.RecordError(ctx, err)
		return model.ProtocolAPYs{}, err
	}

	if err := s.breaker.Check(quotes); err != nil {
		lastGood := s.breaker.LastGoodQuotes()
		if lastGood == nil {
			otel.RecordError(ctx, err)
			return model.ProtocolAPYs{}, fmt.Errorf("market data unavailable: %w", err)
		}
		logrus.Info("Serving last known-good quotes while the guard is engaged")
		quotes = lastGood
	}
	s.metrics.breakerState.Set(float64(s.breaker.GetState()))
	s.metrics.quoteCount.Set(float64(len(quotes)))

	apys, err := aggregate.ByMode(s.cfg.AggregationMode, quotes)
	if err != nil {
		otel.RecordError(ctx, err)
		return model.ProtocolAPYs{}, err
	}

	s.metrics.protocolAPY.WithLabelValues(model.ProtocolLending.String()).Set(apys.Lending)
	s.metrics.protocolAPY.WithLabelValues(model.ProtocolLiquidityPool.String()).Set(apys.LiquidityPool)
	s.metrics.protocolAPY.WithLabelValues(model.ProtocolYieldFarm.String()).Set(apys.YieldFarm)

	return apys, nil
}

// fetchAllQuotes fans out to all providers concurrently and collects whatever
// they return. Individual provider failures are tolerated as long as at least
// one provider delivers.
func (s *Server) fetchAllQuotes(ctx context.Context) ([]model.APYQuote, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		quotes []model.APYQuote
		errs   []error
	)

	for _, provider := range s.providers {
		wg.Add(1)
		go func(p fetch.Provider) {
			defer wg.Done()

			providerQuotes, err := p.FetchQuotes(ctx)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.metrics.providerErrors.WithLabelValues(fmt.Sprintf("%T", p)).Inc()
				errs = append(errs, err)
				return
			}

			quotes = append(quotes, providerQuotes...)
		}(provider)
	}

	wg.Wait()

	if len(quotes) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all providers failed: %v", errs[0])
	}

	return quotes, nil
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "operational",
		"uptime":    time.Since(startTime).String(),
		"version":   "1.0.0",
		"providers": len(s.providers),
		"signer":    s.signer.Address(),
		"configuration": map[string]interface{}{
			"aggregation_mode":    s.cfg.AggregationMode,
			"drift_threshold_pct": s.cfg.DriftThresholdPct,
			"risk_free_rate":      s.cfg.RiskFreeRate,
			"chain_enabled":       s.cfg.ChainEnabled,
		},
		"questionnaire_version": risk.QuestionnaireVersion,
		"circuit_state":         s.breaker.GetState(),
	}

	// Display-only enrichments; both are best effort and never fail the
	// status response.
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if price, err := s.price.NativeTokenUSD(ctx); err == nil {
		status["native_token_usd"] = price
	}
	if s.vault != nil {
		if total, err := s.vault.TotalValue(ctx); err == nil {
			status["vault_total_value"] = total.String()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleCircuitStatus allows viewing and resetting the market-data guard
func (s *Server) handleCircuitStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state": s.breaker.GetState(),
	}

	if r.Method == http.MethodPost && r.URL.Query().Get("action") == "reset" {
		s.breaker.Reset()
		response["state"] = s.breaker.GetState()
		response["message"] = "circuit breaker reset"
	}

	if lastGood := s.breaker.LastGoodQuotes(); lastGood != nil {
		response["last_good_quote_count"] = len(lastGood)
		response["last_good_timestamp"] = time.Unix(lastGood[0].CollectedAt, 0).Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
