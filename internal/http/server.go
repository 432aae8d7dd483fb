package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ssfarm/internal/auth"
	applog "ssfarm/internal/log"
	"ssfarm/internal/middleware/ratelimit"
	"ssfarm/internal/middleware/security"
	"ssfarm/internal/middleware/trace"
	"ssfarm/internal/observability"
	"ssfarm/internal/services"
	appweb "ssfarm/web"
)

// Services are the application services the handlers call.
type Services struct {
	Billing    *services.BillingService
	Customers  *services.CustomerService
	Deliveries *services.DeliveryService
	Payments   *services.PaymentService
	Orders     *services.OrderService
	Content    *services.ContentService
	Share      *services.ShareService
	Export     *services.ExportService
}

// Deps configures NewServer.
type Deps struct {
	Services
	Auth    *auth.Service
	Metrics *observability.Metrics
	// ReadyChecks are run by /readyz; each must return quickly.
	ReadyChecks    map[string]func(context.Context) error
	TrustedProxies []string
	Production     bool
	RequestTimeout time.Duration
	FarmName       string
	Logger         *applog.Logger
}

type Server struct {
	http.Server
	svc         Services
	auth        *auth.Service
	metrics     *observability.Metrics
	readyChecks map[string]func(context.Context) error
	templates   *template.Template
	forms       *formValidator
	detector    *security.Detector
	tracer      *trace.Middleware
	writes      *ratelimit.Limiter
	logins      *ratelimit.Limiter
	public      *ratelimit.Limiter
	farmName    string
	logger      *applog.Logger
	slog        *applog.StructuredLogger
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.ForComponent(applog.ComponentHTTP)
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		svc:         deps.Services,
		auth:        deps.Auth,
		metrics:     deps.Metrics,
		readyChecks: deps.ReadyChecks,
		forms:       newFormValidator(),
		detector:    security.NewDetector(),
		farmName:    deps.FarmName,
		logger:      logger,
		slog:        applog.NewStructuredLogger(logger),
		now:         time.Now,
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.writes = ratelimit.NewLimiter("writes", ratelimit.DefaultConfig(), s.detector.ExtractClientIP)
	s.logins = ratelimit.NewLimiter("login", ratelimit.Config{Requests: 10, Window: time.Minute}, s.detector.ExtractClientIP)
	s.public = ratelimit.NewLimiter("public_api", ratelimit.Config{Requests: 20, Window: time.Minute}, s.detector.ExtractClientIP)

	t, err := parseTemplates()
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.registerMetrics()
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps.Production, timeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(production bool, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(trace.LoggerMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig(production)).Middleware)
	r.Use(s.metrics.Middleware)
	r.Use(chimw.Timeout(timeout))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Get("/login", s.handleLoginPage)
	r.With(s.logins.Middleware()).Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/content", s.handlePublicContent)
		r.With(s.public.Middleware()).Post("/orders", s.handleSubmitOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.auth))
		r.Use(s.writes.WritesOnly())

		r.Get("/", s.handleDashboard)
		r.Get("/ui/bills", s.handleBillsPartial)
		r.Get("/status", s.handleStatus)

		r.Route("/bills/{customerID}", func(r chi.Router) {
			r.Get("/", s.handleBill)
			r.Get("/pdf", s.handleBillPDF)
			r.Get("/share", s.handleBillShare)
			r.Post("/share", s.handleBillShared)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", s.handleCustomers)
			r.Post("/", s.handleCreateCustomer)
			r.Post("/{id}", s.handleUpdateCustomer)
			r.Delete("/{id}", s.handleDeleteCustomer)
			r.Post("/{id}/balance", s.handleSetBalance)
			r.Get("/{id}/calendar", s.handleCalendar)
		})

		r.Get("/deliveries", s.handleDeliveries)
		r.Post("/deliveries", s.handleRecordDeliveries)

		r.Get("/payments", s.handlePayments)
		r.Post("/payments", s.handleRecordPayment)
		r.Delete("/payments/{id}", s.handleDeletePayment)

		r.Get("/orders", s.handleOrders)
		r.Post("/orders/{id}/confirm", s.handleConfirmOrder)
		r.Post("/orders/{id}/reject", s.handleRejectOrder)

		r.Get("/export/customers.csv", s.handleExportCustomers)
		r.Get("/export/deliveries.csv", s.handleExportDeliveries)
		r.Get("/export/bills.csv", s.handleExportBills)
		r.Post("/export/sheets", s.handleExportSheets)
		r.Post("/import/customers", s.handleImportCustomers)
		r.Post("/import/deliveries", s.handleImportDeliveries)

		r.Get("/content", s.handleContent)
		r.Post("/content/{kind}", s.handleSaveContent)
	})

	return r
}

// registerMetrics exposes middleware and cache counters on /metrics.
func (s *Server) registerMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.CounterFunc("rate_limited_total", "Requests rejected by rate limiters.", func() float64 {
		return float64(s.writes.Hits() + s.logins.Hits() + s.public.Hits())
	})
	s.metrics.CounterFunc("suspicious_requests_total", "Requests flagged by the security detector.", func() float64 {
		return float64(s.detector.GetMetrics().SuspiciousRequests)
	})
	s.metrics.CounterFunc("blocked_probes_total", "Scanner probes answered with 404.", func() float64 {
		return float64(s.detector.GetMetrics().BlockedProbes)
	})
	s.metrics.CounterFunc("http_client_errors_total", "Responses with a 4xx status.", func() float64 {
		return float64(s.tracer.GetMetrics().ClientErrors)
	})
	s.metrics.CounterFunc("http_server_errors_total", "Responses with a 5xx status.", func() float64 {
		return float64(s.tracer.GetMetrics().ServerErrors)
	})
	if s.svc.Billing != nil {
		s.metrics.CounterFunc("bill_cache_hits_total", "Monthly bill cache hits.", func() float64 {
			hits, _ := s.svc.Billing.CacheStats()
			return float64(hits)
		})
		s.metrics.CounterFunc("bill_cache_misses_total", "Monthly bill cache misses.", func() float64 {
			_, misses := s.svc.Billing.CacheStats()
			return float64(misses)
		})
		s.metrics.GaugeFunc("bill_cache_entries", "Months held in the local bill cache.", func() float64 {
			return float64(s.svc.Billing.CachedMonths())
		})
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}
