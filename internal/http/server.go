package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"forum/internal/assistant"
	"forum/internal/cache"
	"forum/internal/core"
	"forum/internal/log"
	"forum/internal/metrics"
	"forum/internal/middleware/ratelimit"
	"forum/internal/middleware/security"
	"forum/internal/middleware/trace"
	"forum/internal/services"
)

type (
	Ledger interface {
		RecordTransaction(ctx context.Context, req services.TransactionRequest) (services.RecordResult, error)
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error)
	}

	Directory interface {
		CreateMember(ctx context.Context, in services.NewMember) (core.Member, error)
		GetMember(ctx context.Context, id string) (core.Member, error)
		ListMembers(ctx context.Context) ([]core.Member, error)
		UpdateMember(ctx context.Context, id string, patch core.MemberPatch) (core.Member, error)
		DeleteMember(ctx context.Context, id string) error
		Summary(ctx context.Context) (core.Summary, error)
	}

	Board interface {
		CreateNotice(ctx context.Context, n core.Notice) (core.Notice, error)
		ListNotices(ctx context.Context) ([]core.Notice, error)
		UpdateNotice(ctx context.Context, id string, n core.Notice) (core.Notice, error)
		DeleteNotice(ctx context.Context, id string) error
		CreateProject(ctx context.Context, p core.ProjectUpdate) (core.ProjectUpdate, error)
		ListProjects(ctx context.Context) ([]core.ProjectUpdate, error)
		UpdateProject(ctx context.Context, id string, p core.ProjectUpdate) (core.ProjectUpdate, error)
		DeleteProject(ctx context.Context, id string) error
	}

	Auditor interface {
		AuditMember(ctx context.Context, id string) (core.DriftReport, error)
		AuditAll(ctx context.Context) ([]core.DriftReport, error)
	}

	Importer interface {
		ImportMembers(ctx context.Context, req services.ImportRequest) (services.ImportReport, error)
	}

	Assistant interface {
		Ask(ctx context.Context, q assistant.Question) (assistant.Answer, error)
	}

	// Consent drives the Google OAuth flow used by the spreadsheet import.
	Consent interface {
		ConsentEnabled() bool
		AuthCodeURL(state string) (string, error)
		Exchange(ctx context.Context, code string) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Services are the use cases behind the routes. Importer, Assistant and
// Consent are optional; their routes answer 503 when unset.
type Services struct {
	Ledger    Ledger
	Directory Directory
	Board     Board
	Auditor   Auditor
	Importer  Importer
	Assistant Assistant
	Consent   Consent
}

type Options struct {
	Addr               string
	Logger             *log.Logger
	Metrics            *metrics.Metrics
	Store              Pinger
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, beyond the private ranges, whose forwarding headers are believed.
	TrustedProxies []string
	// Janitor, when set, sweeps the server's OAuth state cache.
	Janitor *cache.Janitor
}

const (
	oauthStateTTL = 10 * time.Minute
	readyTimeout  = 2 * time.Second
)

type Server struct {
	http.Server
	svc     Services
	logger  *log.Logger
	metrics *metrics.Metrics
	store   Pinger
	started time.Time

	limiter     *ratelimit.Limiter
	detector    *security.Detector
	oauthStates *cache.LRUCache[struct{}]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		svc:         svc,
		logger:      logger,
		metrics:     opts.Metrics,
		store:       opts.Store,
		started:     time.Now(),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:    security.NewDetector(),
		oauthStates: cache.NewLRUCache[struct{}](256, oauthStateTTL),
	}
	if opts.Janitor != nil {
		opts.Janitor.Register(s.oauthStates)
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	mux := http.NewServeMux()
	s.routes(mux)

	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP, opts.Metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)
	detect := s.detector.Middleware(func(*http.Request) { s.metrics.ObserveSuspicious() })

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(headers.Middleware(detect(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.handleCreateMember)
	mux.HandleFunc("GET /api/members/{id}", s.handleGetMember)
	mux.HandleFunc("PUT /api/members/{id}", s.handleUpdateMember)
	mux.HandleFunc("DELETE /api/members/{id}", s.handleDeleteMember)
	mux.HandleFunc("GET /api/members/{id}/transactions", s.handleMemberTransactions)
	mux.HandleFunc("GET /api/members/{id}/audit", s.handleAuditMember)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleRecordTransaction)

	mux.HandleFunc("GET /api/notices", s.handleListNotices)
	mux.HandleFunc("POST /api/notices", s.handleCreateNotice)
	mux.HandleFunc("PUT /api/notices/{id}", s.handleUpdateNotice)
	mux.HandleFunc("DELETE /api/notices/{id}", s.handleDeleteNotice)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/audit", s.handleAuditAll)
	mux.HandleFunc("POST /api/import/sheets", s.handleImportSheets)
	mux.HandleFunc("GET /api/auth/google/url", s.handleGoogleAuthURL)
	mux.HandleFunc("GET /auth/google/callback", s.handleGoogleCallback)
	mux.HandleFunc("POST /api/assistant", s.handleAssistant)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.ObserveRateLimited()
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops background work and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady pings the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, log.ErrorTypeStoreUnavailable, "store not reachable").Write(w)
		return
	}
	NewResponse().JSON(map[string]any{
		"status":         "ready",
		"active_clients": s.limiter.ActiveClients(),
	}).Write(w)
}
