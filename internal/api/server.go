// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/reputation-engine/internal/circuitbreaker"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/models"
	"github.com/reputation-engine/internal/service"
	"github.com/reputation-engine/internal/types"
)

// Service interfaces for dependency injection and testing

// AggregationServiceInterface covers the read-only fetch operations
type AggregationServiceInterface interface {
	FetchActivity(ctx context.Context, address string) (types.ActivitySummary, error)
	FetchHoldings(ctx context.Context, address string) (types.HoldingsSnapshot, error)
	Invalidate(ctx context.Context, address string) error
	FetchSocialMetrics(ctx context.Context, fid int64) (types.SocialMetrics, error)
}

// ProfileServiceInterface covers the profile operations
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GetOrCreateProfile(ctx context.Context, id int64, address, referralCode string) (*models.Profile, error)
	RecalculateScore(ctx context.Context, id int64) (*models.Profile, error)
	CheckIn(ctx context.Context, id int64, proofRef string) (*service.CheckInResult, error)
	OpenBox(ctx context.Context, id int64, tier int, proofRef string) (*service.OpenBoxResult, error)
	ClaimTask(ctx context.Context, id int64, taskKey string) (*service.TaskResult, error)
	ClaimDailyCast(ctx context.Context, id int64, castHash string) (*service.TaskResult, error)
	LinkCollectible(ctx context.Context, id int64, tokenID, imageURL string) (*models.Profile, error)
}

// cacheStatsReporter is implemented by aggregation services that count cache hits
type cacheStatsReporter interface {
	CacheStats() service.CacheStats
}

// ReferralSweepInterface runs one referral payout pass
type ReferralSweepInterface interface {
	Run(ctx context.Context) (*service.SweepResult, error)
}

// StoreChecker is a backing store the health check pings
type StoreChecker interface {
	Ping(ctx context.Context) error
}

type namedStore struct {
	name  string
	store StoreChecker
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	aggregation AggregationServiceInterface
	profiles    ProfileServiceInterface
	sweeper     ReferralSweepInterface
	breakers    []*circuitbreaker.CircuitBreaker
	stores      []namedStore
	logger      *logging.Logger
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	// AdminToken guards the sweep endpoint. Empty disables the endpoint.
	AdminToken string
}

// NewServer creates a new API server instance. sweeper may be nil.
func NewServer(
	config *ServerConfig,
	aggregation AggregationServiceInterface,
	profiles ProfileServiceInterface,
	sweeper ReferralSweepInterface,
	logger *logging.Logger,
	breakers ...*circuitbreaker.CircuitBreaker,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:      mux.NewRouter(),
		aggregation: aggregation,
		profiles:    profiles,
		sweeper:     sweeper,
		breakers:    breakers,
		logger:      logger.WithField("component", "api"),
		config:      config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Aggregation reads
	api.HandleFunc("/addresses/{address}/activity", s.handleGetActivity).Methods("GET")
	api.HandleFunc("/addresses/{address}/holdings", s.handleGetHoldings).Methods("GET")
	api.HandleFunc("/social/{fid}", s.handleGetSocialMetrics).Methods("GET")

	// Profiles
	api.HandleFunc("/profiles", s.handleCreateProfile).Methods("POST")
	api.HandleFunc("/profiles/{fid}", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profiles/{fid}/score", s.handleRecalculateScore).Methods("POST")
	api.HandleFunc("/profiles/{fid}/check-in", s.handleCheckIn).Methods("POST")
	api.HandleFunc("/profiles/{fid}/boxes/{tier}", s.handleOpenBox).Methods("POST")
	api.HandleFunc("/profiles/{fid}/tasks/{task}", s.handleClaimTask).Methods("POST")
	api.HandleFunc("/profiles/{fid}/daily-cast", s.handleClaimDailyCast).Methods("POST")
	api.HandleFunc("/profiles/{fid}/collectible", s.handleLinkCollectible).Methods("PUT")

	// Operator
	api.HandleFunc("/admin/referral-sweep", s.handleReferralSweep).Methods("POST")
}

// Handler returns the full handler chain. CORS sits outside the router so
// preflight requests are answered for every route.
func (s *Server) Handler() http.Handler {
	return CORSMiddleware(s.router)
}

// AddStore registers a backing store for the health check
func (s *Server) AddStore(name string, store StoreChecker) {
	s.stores = append(s.stores, namedStore{name: name, store: store})
}

// handleHealth reports provider breaker and store state. Any open breaker
// marks the service degraded; an unreachable store makes it unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	providers := make([]circuitbreaker.Stats, 0, len(s.breakers))
	for _, cb := range s.breakers {
		stats := cb.GetStats()
		if stats.State == circuitbreaker.StateOpen {
			status = "degraded"
		}
		providers = append(providers, stats)
	}

	stores := make(map[string]string, len(s.stores))
	if len(s.stores) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, st := range s.stores {
			if err := st.store.Ping(ctx); err != nil {
				s.logger.WithError(err).WithField("store", st.name).Warn("health check ping failed")
				stores[st.name] = "down"
				status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			stores[st.name] = "up"
		}
	}

	body := map[string]interface{}{
		"status":    status,
		"service":   "reputation-engine",
		"providers": providers,
		"stores":    stores,
	}
	if reporter, ok := s.aggregation.(cacheStatsReporter); ok {
		body["statsCache"] = reporter.CacheStats()
	}
	respondJSON(w, code, body)
}

// Start starts the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
