// Package http serves the Expense Service REST API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

// APIPrefix is the base path of the expense routes.
const APIPrefix = "/api"

// Route paths under APIPrefix.
const (
	PathListExpenses      = "/get_expenses"
	PathCategories        = "/categories"
	PathSummaryByCategory = "/summary/category"
	PathSummaryByMonth    = "/summary/month"
	PathAddExpense        = "/add_expense"
	PathUpdateExpense     = "/update_expense"
	PathDeleteExpense     = "/delete_expense"
	PathFilterExpenses    = "/filter_expenses"
)

const (
	allKey                = "all"
	cacheSize             = 16
	cacheCleanupInterval  = 10 * time.Minute
	readHeaderTimeout     = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// ExpenseAPI is the service behind the handlers. *services.ExpenseService
// implements it.
type ExpenseAPI interface {
	CreateExpense(ctx context.Context, d core.FormDraft) (core.Expense, error)
	UpdateExpense(ctx context.Context, r services.UpdateRequest) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	FilterExpenses(ctx context.Context, c core.FilterCriteria) ([]core.Expense, error)
	Categories(ctx context.Context) ([]string, error)
	SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error)
	SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error)
	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	CacheTTL           time.Duration
	CORSAllowedOrigins []string
}

type Server struct {
	http.Server
	svc    ExpenseAPI
	logger *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// Derived data cached until the next successful mutation
	categoryCache *cache.LRUCache[[]string]
	byCategory    *cache.LRUCache[[]core.CategorySummary]
	byMonth       *cache.LRUCache[[]core.MonthSummary]
	cacheManager  *cache.Manager

	// cacheMu orders cache fills against invalidate; generation counts
	// invalidations so a read that started before a mutation is not cached.
	cacheMu    sync.Mutex
	generation uint64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc ExpenseAPI, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		svc:           svc,
		logger:        logger,
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:      security.NewDetector(),
		categoryCache: cache.NewLRUCache[[]string](cacheSize, opts.CacheTTL),
		byCategory:    cache.NewLRUCache[[]core.CategorySummary](cacheSize, opts.CacheTTL),
		byMonth:       cache.NewLRUCache[[]core.MonthSummary](cacheSize, opts.CacheTTL),
		cacheManager:  cache.NewManager(logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.cacheManager.Register(s.categoryCache, s.byCategory, s.byMonth)
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit, http.MethodPost))
	r.Use(withTimeout(defaultRequestTimeout))

	// API routes are registered on the root router so a method mismatch
	// reaches MethodNotAllowedHandler.
	r.HandleFunc(APIPrefix+PathListExpenses, s.handleListExpenses).Methods(http.MethodGet)
	r.HandleFunc(APIPrefix+PathFilterExpenses, s.handleFilterExpenses).Methods(http.MethodGet)
	r.HandleFunc(APIPrefix+PathCategories, s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc(APIPrefix+PathSummaryByCategory, s.handleSummaryByCategory).Methods(http.MethodGet)
	r.HandleFunc(APIPrefix+PathSummaryByMonth, s.handleSummaryByMonth).Methods(http.MethodGet)
	r.HandleFunc(APIPrefix+PathAddExpense, s.handleAddExpense).Methods(http.MethodPost)
	r.HandleFunc(APIPrefix+PathUpdateExpense, s.handleUpdateExpense).Methods(http.MethodPost)
	r.HandleFunc(APIPrefix+PathDeleteExpense, s.handleDeleteExpense).Methods(http.MethodPost)

	var h http.Handler = r
	h = security.CORS(opts.CORSAllowedOrigins)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func withTimeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, please try again later"})
}

// invalidate drops cached summaries and categories after a mutation.
func (s *Server) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	s.categoryCache.Purge()
	s.byCategory.Purge()
	s.byMonth.Purge()
}

func (s *Server) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// cached serves c[allKey] or loads it. The loaded value is stored only when
// no mutation invalidated the caches while load was running.
func cached[T any](s *Server, c *cache.LRUCache[T], load func() (T, error)) (T, error) {
	if v, ok := c.Get(allKey); ok {
		return v, nil
	}
	gen := s.cacheGeneration()
	v, err := load()
	if err != nil {
		return v, err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation == gen {
		c.Set(allKey, v)
	}
	return v, nil
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logStats()
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) logStats() {
	traced := s.tracer.GetMetrics()
	limited := s.limiter.GetMetrics()
	detected := s.detector.GetMetrics()
	s.logger.Info("Server statistics",
		"total_requests", traced.TotalRequests,
		"avg_response_us", traced.AverageResponseTime,
		"rate_limited", limited.Rejected,
		"tracked_clients", limited.ClientCount,
		"suspicious_requests", detected.SuspiciousRequests,
		"invalid_ip_attempts", detected.InvalidIPAttempts)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
