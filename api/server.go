package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apimiddleware "github.com/0xmhha/algoland-api/api/middleware"
	"github.com/0xmhha/algoland-api/internal/constants"
	applog "github.com/0xmhha/algoland-api/internal/logger"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/challenges"
	"github.com/0xmhha/algoland-api/pkg/draw"
	"github.com/0xmhha/algoland-api/pkg/entrants"
	"github.com/0xmhha/algoland-api/pkg/holders"
	"github.com/0xmhha/algoland-api/pkg/prizes"
	"github.com/0xmhha/algoland-api/pkg/profile"
)

// EntrantCounter reports the participant count
type EntrantCounter interface {
	Count(ctx context.Context) (entrants.Snapshot, error)
}

// CompletionCounter reports the holders of a badge asset
type CompletionCounter interface {
	Completions(ctx context.Context, assetID uint64) (holders.Completion, error)
}

// ProfileResolver builds participant profiles
type ProfileResolver interface {
	Resolve(ctx context.Context, id profile.Identifier) (profile.Profile, error)
}

// DrawReader reads weekly draw results
type DrawReader interface {
	Week(ctx context.Context, week int) (draw.Result, error)
}

// ChallengeReader reads the challenge schedule
type ChallengeReader interface {
	Snapshot(ctx context.Context) (challenges.Snapshot, error)
}

// PrizeCatalogue reads the prize configuration
type PrizeCatalogue interface {
	TotalWeeks() int
	All() ([]prizes.Prize, error)
	Week(week int) (prizes.Prize, bool, error)
}

// CampaignInfo exposes the campaign layout
type CampaignInfo interface {
	Weeks() []campaign.Week
	Allowlist() campaign.Allowlist
}

// Services are the backends the routes read from
type Services struct {
	Entrants    EntrantCounter
	Completions CompletionCounter
	Profiles    ProfileResolver
	Draws       DrawReader
	Challenges  ChallengeReader
	Prizes      PrizeCatalogue
	Campaign    CampaignInfo

	// Provider is the indexer base URL reported by /api/ping
	Provider string
	// CacheTTL is the completions cache lifetime reported by /api/ping
	CacheTTL time.Duration
}

func (s *Services) validate() error {
	switch {
	case s == nil:
		return errors.New("services cannot be nil")
	case s.Entrants == nil:
		return errors.New("entrants service is required")
	case s.Completions == nil:
		return errors.New("completions service is required")
	case s.Profiles == nil:
		return errors.New("profile service is required")
	case s.Draws == nil:
		return errors.New("draw service is required")
	case s.Challenges == nil:
		return errors.New("challenge service is required")
	case s.Prizes == nil:
		return errors.New("prize catalogue is required")
	case s.Campaign == nil:
		return errors.New("campaign is required")
	}
	return nil
}

// Server represents the API server
type Server struct {
	config   *Config
	logger   *zap.Logger
	services *Services
	health   *HealthChecker
	limiter  *apimiddleware.RateLimiter
	pool     pond.Pool
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(config *Config, logger *zap.Logger, services *Services, health *HealthChecker) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := services.validate(); err != nil {
		return nil, fmt.Errorf("invalid services: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if health == nil {
		health = NewHealthChecker(constants.ServiceName)
	}

	s := &Server{
		config:   config,
		logger:   logger,
		services: services,
		health:   health,
		limiter:  apimiddleware.NewRateLimiter(config.RateLimitPerMinute, constants.DefaultRateLimiterTTL, logger),
		pool:     pond.NewPool(config.BulkWorkers),
		router:   chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	// Recovery middleware (must be first)
	s.router.Use(apimiddleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apimiddleware.LoggerWithLevel(s.logger))
	s.router.Use(apimiddleware.NoStore)
	s.router.Use(apimiddleware.CORS(s.config.AllowedOrigins))
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.health.LivenessHandler())
	s.router.Get("/health/detailed", s.health.DetailedHealthHandler())
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get("/ping", s.handlePing)
		r.Get("/entrants", s.handleEntrants)
		r.Get("/completions", s.handleCompletions)
		r.Get("/completions/bulk", s.handleBulkCompletions)
		r.Get("/algoland-stats", s.handleStats)
		r.Get("/algoland/prizes", s.handleChallenges)
		r.Get("/prizes", s.handlePrizes)
		r.Get("/prizes/{week}", s.handlePrizeWeek)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apimiddleware.WriteJSON(w, http.StatusNotFound, apimiddleware.ErrorBody{Error: "not_found"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apimiddleware.WriteJSON(w, http.StatusNotFound, apimiddleware.ErrorBody{Error: "not_found"})
	})
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
		zap.Strings("allowed_origins", s.config.AllowedOrigins),
		zap.Int("rate_limit_per_minute", s.config.RateLimitPerMinute),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.pool.StopAndWait()
	s.limiter.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// log returns the request-scoped logger attached by LoggerWithLevel
func (s *Server) log(ctx context.Context) *zap.Logger {
	return applog.FromContext(ctx, s.logger)
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
