package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/metrics"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/server/middleware"
	"github.com/jonathan/content-engine/internal/server/ratelimit"
	"github.com/jonathan/content-engine/internal/trends"
	"github.com/jonathan/content-engine/internal/types"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// GenerationService generates and manages a tenant's content.
type GenerationService interface {
	Generate(ctx context.Context, userID uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*db.ContentGeneration, error)
	List(ctx context.Context, userID uuid.UUID, filters db.GenerationFilters) ([]db.ContentGeneration, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Rate(ctx context.Context, userID, id uuid.UUID, rating int) error
	Stats(ctx context.Context, userID uuid.UUID) (*db.GenerationStats, error)
}

// JobStore persists scheduled jobs and their history.
type JobStore interface {
	CreateJob(ctx context.Context, userID uuid.UUID, in *db.JobInput) (*db.ScheduledJob, error)
	GetJob(ctx context.Context, userID, id uuid.UUID) (*db.ScheduledJob, error)
	ListJobs(ctx context.Context, userID uuid.UUID) ([]db.ScheduledJob, error)
	UpdateJob(ctx context.Context, userID, id uuid.UUID, in *db.JobInput) (*db.ScheduledJob, error)
	SetJobActive(ctx context.Context, userID, id uuid.UUID, active bool, nextRunAt *time.Time) (*db.ScheduledJob, error)
	DeleteJob(ctx context.Context, userID, id uuid.UUID) error
	ListJobRuns(ctx context.Context, userID, jobID uuid.UUID, limit int) ([]db.JobRun, error)
	GetJobRun(ctx context.Context, userID, id uuid.UUID) (*db.JobRun, error)
	ListWebhookDeliveries(ctx context.Context, userID, runID uuid.UUID) ([]db.WebhookDelivery, error)
}

// JobScheduler keeps cron entries in sync with stored jobs and runs them on demand.
type JobScheduler interface {
	Reload(ctx context.Context, jobID uuid.UUID) error
	Remove(jobID uuid.UUID)
	RunNow(ctx context.Context, jobID uuid.UUID, onProgress scheduler.ProgressFunc) (*scheduler.RunReport, error)
}

// TrendService reads and refreshes trending products.
type TrendService interface {
	List(ctx context.Context, niche string, limit int) ([]db.TrendingProduct, error)
	Refresh(ctx context.Context, niche string) (*trends.RefreshResult, error)
}

// IntelligenceService reads and builds niche snapshots.
type IntelligenceService interface {
	Latest(ctx context.Context, niche string) (*db.IntelligenceSnapshot, error)
	Build(ctx context.Context, niche string) (*db.IntelligenceSnapshot, error)
}

// Pinger checks a backing service for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       *ratelimit.Config
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Users        UserStore
	Passwords    *config.PasswordConfig
	JWT          *config.JWTConfig
	Generations  GenerationService
	Jobs         JobStore
	Scheduler    JobScheduler
	Trends       TrendService
	Intelligence IntelligenceService
	Database     Pinger
	Cache        Pinger
	Metrics      *metrics.Metrics
	Providers    []string
	Logger       logging.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	shutdownTimeout time.Duration
	corsOrigins     map[string]bool
	allowAnyOrigin  bool

	rateLimiter  *ratelimit.Limiter
	jwtService   *JWTService
	userService  *UserService
	authHandler  *AuthHandler
	generations  GenerationService
	jobs         JobStore
	scheduler    JobScheduler
	trends       TrendService
	intelligence IntelligenceService
	database     Pinger
	cache        Pinger
	metrics      *metrics.Metrics
	catalog      types.Catalog
	validate     *validator.Validate
	logger       logging.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.JWT == nil || deps.Passwords == nil {
		return nil, errors.New("server requires JWT and password configuration")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RateLimit == nil {
		rl, err := ratelimit.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit config: %w", err)
		}
		cfg.RateLimit = rl
	}
	limiter, err := ratelimit.NewLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit rules: %w", err)
	}

	s := &Server{
		shutdownTimeout: cfg.ShutdownTimeout,
		corsOrigins:     make(map[string]bool),
		rateLimiter:     limiter,
		jwtService:      NewJWTService(deps.JWT),
		userService:     NewUserService(deps.Users, deps.Passwords),
		generations:     deps.Generations,
		jobs:            deps.Jobs,
		scheduler:       deps.Scheduler,
		trends:          deps.Trends,
		intelligence:    deps.Intelligence,
		database:        deps.Database,
		cache:           deps.Cache,
		metrics:         deps.Metrics,
		catalog:         types.NewCatalog(deps.Providers),
		validate:        validator.New(),
		logger:          deps.Logger,
	}
	s.authHandler = NewAuthHandler(s.userService, s.jwtService)
	for _, origin := range cfg.CORSOrigins {
		if origin == "*" {
			s.allowAnyOrigin = true
		}
		s.corsOrigins[origin] = true
	}

	auth := middleware.RequireUser(s.jwtService)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /catalog", s.handleCatalog)

	// Accounts
	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.Handle("PUT /auth/password", protected(s.handleUpdatePassword))
	mux.Handle("GET /users/me", protected(s.handleGetMe))

	// Generations
	mux.Handle("POST /generations", protected(s.handleCreateGeneration))
	mux.Handle("GET /generations", protected(s.handleListGenerations))
	mux.Handle("GET /generations/stats", protected(s.handleGenerationStats))
	mux.Handle("GET /generations/{id}", protected(s.handleGetGeneration))
	mux.Handle("DELETE /generations/{id}", protected(s.handleDeleteGeneration))
	mux.Handle("PUT /generations/{id}/rating", protected(s.handleRateGeneration))

	// Bulk jobs
	mux.Handle("POST /jobs", protected(s.handleCreateJob))
	mux.Handle("GET /jobs", protected(s.handleListJobs))
	mux.Handle("GET /jobs/{id}", protected(s.handleGetJob))
	mux.Handle("PUT /jobs/{id}", protected(s.handleUpdateJob))
	mux.Handle("DELETE /jobs/{id}", protected(s.handleDeleteJob))
	mux.Handle("POST /jobs/{id}/pause", protected(s.handlePauseJob))
	mux.Handle("POST /jobs/{id}/resume", protected(s.handleResumeJob))
	mux.Handle("POST /jobs/{id}/run", protected(s.handleRunJob))
	mux.Handle("POST /jobs/{id}/run/stream", protected(s.handleRunJobStream))
	mux.Handle("GET /jobs/{id}/runs", protected(s.handleListJobRuns))
	mux.Handle("GET /runs/{id}/deliveries", protected(s.handleListDeliveries))

	// Trends and intelligence
	mux.HandleFunc("GET /trends/{niche}", s.handleListTrends)
	mux.Handle("POST /trends/{niche}/refresh", protected(s.handleRefreshTrends))
	mux.HandleFunc("GET /intelligence/{niche}", s.handleGetIntelligence)
	mux.Handle("POST /intelligence/{niche}/refresh", protected(s.handleBuildIntelligence))

	s.handler = s.withMetrics(s.withRateLimit(s.withLogging(s.withCORS(mux))))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout, // long enough for synchronous job runs
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", logging.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush lets SSE handlers stream through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// withMetrics records request counts and latency per route pattern.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		} else if _, path, ok := strings.Cut(route, " "); ok {
			route = path
		}
		s.metrics.ObserveHTTP(r.Method, route, rec.code(), time.Since(start))
	})
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case s.allowAnyOrigin:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.corsOrigins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.code()),
			logging.Duration("duration", time.Since(start)),
			logging.String("remote_addr", r.RemoteAddr),
		}
		if rec.code() >= http.StatusInternalServerError {
			s.logger.Error("request completed", fields...)
			return
		}
		s.logger.Info("request completed", fields...)
	})
}

// handleHealth reports liveness and the state of the backing services.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, p := range map[string]Pinger{"database": s.database, "cache": s.cache} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", logging.String("component", name), logging.Error(err))
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	s.jsonResponse(w, code, map[string]any{"status": status, "checks": checks})
}

// handleCatalog lists the supported generation options.
func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.catalog)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", logging.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFromErr maps err to a status and writes it, logging server-side failures.
func (s *Server) errorFromErr(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.errorResponse(w, status, publicMessage(err, status))
}

// decodeJSON decodes and validates a request body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return false
	}
	return true
}

// requireUser returns the authenticated user ID or writes 401.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the {id} path value or writes 400.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid "+resource+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &ErrValidation{Field: key, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// extractClientID identifies the caller by the IP in RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		logging.String("client", clientID),
		logging.Int("limit", info.Limit),
	)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
