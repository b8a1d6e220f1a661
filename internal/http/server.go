package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/middleware/ratelimit"
	"timetracker/internal/middleware/security"
	"timetracker/internal/middleware/trace"
	"timetracker/internal/services"
	"timetracker/internal/timer"
	appweb "timetracker/web"
)

// Pinger is satisfied by every persistence gateway.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerHealth reports event broker connectivity.
type BrokerHealth interface {
	Healthy() bool
}

// Deps are the application services the handlers call.
type Deps struct {
	Timer   *timer.Engine
	Catalog *services.Catalog
	Entries *services.Entries
	Reports *services.Reports
	Store   Pinger
	// Broker is optional; leave nil when events are disabled.
	Broker BrokerHealth
	Clock  core.Clock
	Logger *applog.Logger
}

// Options tune the transport layer.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	TrustedProxies     []string
}

// appMetrics tracks application-specific counters
type appMetrics struct {
	uptime         time.Time
	timersStarted  int64
	timersStopped  int64
	entriesUpdated int64
	entriesDeleted int64
	exports        int64
}

type Server struct {
	http.Server
	templates *template.Template

	timer   *timer.Engine
	catalog *services.Catalog
	entries *services.Entries
	reports *services.Reports
	store   Pinger
	broker  BrokerHealth
	clock   core.Clock
	loc     *time.Location

	logger     *applog.Logger
	structured *applog.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	clock := deps.Clock
	if clock == nil {
		clock = core.RealClock{}
	}
	loc := time.Local
	if deps.Reports != nil {
		loc = deps.Reports.Location()
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	httpLogger := logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		timer:            deps.Timer,
		catalog:          deps.Catalog,
		entries:          deps.Entries,
		reports:          deps.Reports,
		store:            deps.Store,
		broker:           deps.Broker,
		clock:            clock,
		loc:              loc,
		logger:           httpLogger,
		structured:       applog.NewStructuredLogger(httpLogger),
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		securityDetector: security.NewDetector(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			httpLogger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ClientIP, logger)

	t, err := template.New("").Funcs(templateFuncs(loc)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		httpLogger.Warn("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	s.Handler = s.middleware(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Timer
	mux.HandleFunc("/ui/timer", s.handleTimerPartial)
	mux.HandleFunc("/ui/tasks", s.handleTaskOptions)
	mux.HandleFunc("/timer/start", s.handleStartTimer)
	mux.HandleFunc("/timer/stop", s.handleStopTimer)

	// Entries
	mux.HandleFunc("/ui/entries", s.handleEntriesPartial)
	mux.HandleFunc("/ui/entries/edit", s.handleEditEntryForm)
	mux.HandleFunc("/entries/update", s.handleUpdateEntry)
	mux.HandleFunc("/entries/delete", s.handleDeleteEntry)

	// Clients and projects
	mux.HandleFunc("/projects", s.handleProjects)
	mux.HandleFunc("/projects/delete", s.handleDeleteProject)
	mux.HandleFunc("/projects/active", s.handleSetProjectActive)
	mux.HandleFunc("/clients", s.handleCreateClient)
	mux.HandleFunc("/clients/delete", s.handleDeleteClient)

	// Reports
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/export", s.handleExportCSV)
	mux.HandleFunc("/reports/visuals", s.handleVisuals)

	return mux
}

// middleware wraps h, outermost first: request logger, tracing, suspicious
// request detection, security headers, rate limiting.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.securityDetector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down a little").
			TriggerErrorNotification("Too many requests").
			Write(w)
	})(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.securityDetector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	h = applog.Middleware(s.logger)(h)
	return h
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// now returns the current instant in the display location.
func (s *Server) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// render executes a named template into a buffer and writes it through b,
// so triggers and status set on b go out with the page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, b *HTMXResponseBuilder) {
	if b == nil {
		b = NewHTMXResponse()
	}
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template execution failed", err, applog.OpRender, applog.ErrorTypeInternal,
			applog.NewFields().WithComponent(applog.ComponentTemplate))
		InternalServerError("Error rendering page").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}
