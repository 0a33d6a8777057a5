package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"famledger/internal/attachments"
	"famledger/internal/core"
	"famledger/internal/log"
	"famledger/internal/metrics"
	"famledger/internal/middleware/ratelimit"
	"famledger/internal/middleware/security"
	"famledger/internal/middleware/trace"
)

// HeaderPrincipal carries the caller identity supplied by the hosting edge.
const HeaderPrincipal = "X-Principal"

// FamilyService is the registry surface served over HTTP.
type FamilyService interface {
	ListFamilies(ctx context.Context) ([]core.Family, error)
	GetFamily(ctx context.Context, id string) (core.Family, error)
	AddFamily(ctx context.Context, payload core.FamilyPayload) (core.Family, error)
	UpdateFamily(ctx context.Context, id string, payload core.FamilyPayload) (core.Family, error)
	DeleteFamily(ctx context.Context, id string) (core.Family, error)
}

// LedgerService is the ledger surface served over HTTP.
type LedgerService interface {
	ListFamilyExpenses(ctx context.Context, familyID string) ([]core.FamilyExpense, error)
	SummarizeFamilyExpenses(ctx context.Context, familyID string) (core.ExpenseSummary, error)
	AddFamilyExpense(ctx context.Context, payload core.FamilyExpensePayload) (core.FamilyExpense, error)
	DeleteFamilyExpense(ctx context.Context, id string) (core.FamilyExpense, error)
}

// Deps are the collaborators behind the routes. Attachments, Metrics and
// Ready are optional.
type Deps struct {
	Families    FamilyService
	Ledger      LedgerService
	Attachments attachments.Store
	Metrics     *metrics.Recorder
	Ready       func(ctx context.Context) error
	Logger      *log.Logger
}

// Options tune the HTTP edge.
type Options struct {
	// WritesPerMinute limits state-changing requests per client; 0 disables.
	WritesPerMinute int
	// TrustedProxies are extra CIDRs whose forwarded headers are believed
	// when resolving the client IP.
	TrustedProxies []string
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	limiter *ratelimit.Limiter
	newID   func() string

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		deps:   deps,
		logger: logger.WithComponent(log.ComponentHTTP),
		newID:  trace.GenerateRequestID,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("GET /families", s.handleListFamilies)
	mux.HandleFunc("POST /families", s.handleAddFamily)
	mux.HandleFunc("GET /families/{id}", s.handleGetFamily)
	mux.HandleFunc("PUT /families/{id}", s.handleUpdateFamily)
	mux.HandleFunc("DELETE /families/{id}", s.handleDeleteFamily)
	mux.HandleFunc("GET /families/{id}/expenses", s.handleListFamilyExpenses)
	mux.HandleFunc("GET /families/{id}/expenses/summary", s.handleSummarizeFamilyExpenses)

	mux.HandleFunc("POST /expenses", s.handleAddFamilyExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteFamilyExpense)

	mux.HandleFunc("POST /attachments", s.handleUploadAttachment)

	ips := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	var handler http.Handler = withPrincipal(mux)
	if opts.WritesPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WritesPerMinute})
		handler = s.limiter.Middleware(clientKey(ips), ratelimit.WritesOnly, s.onRateLimit)(handler)
	}
	handler = trace.NewMiddleware(s.logger, ips.ExtractClientIP).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// withPrincipal moves the caller identity from the request header into the
// context. A missing header leaves the anonymous principal.
func withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.Header.Get(HeaderPrincipal); p != "" {
			r = r.WithContext(core.WithPrincipal(r.Context(), core.Principal(p)))
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey rate limits identified callers by principal and the rest by IP.
func clientKey(ips *security.ClientIPResolver) func(*http.Request) string {
	return func(r *http.Request) string {
		if p := r.Header.Get(HeaderPrincipal); p != "" {
			return "principal:" + p
		}
		return "ip:" + ips.ExtractClientIP(r)
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
}

// Shutdown gracefully shuts down the server and the rate limiter
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
