package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"hrpayroll/internal/domain/attendance"
	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/domain/catalog"
	"hrpayroll/internal/domain/core"
	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/config"
	cryptoutil "hrpayroll/internal/platform/crypto"
	"hrpayroll/internal/platform/db"
	"hrpayroll/internal/platform/email"
	"hrpayroll/internal/platform/jobs"
	"hrpayroll/internal/platform/metrics"
	"hrpayroll/internal/transport/http/api"
	attendancehandler "hrpayroll/internal/transport/http/handlers/attendance"
	audithandler "hrpayroll/internal/transport/http/handlers/audit"
	cataloghandler "hrpayroll/internal/transport/http/handlers/catalog"
	corehandler "hrpayroll/internal/transport/http/handlers/core"
	payrollhandler "hrpayroll/internal/transport/http/handlers/payroll"
	"hrpayroll/internal/transport/http/middleware"
	"hrpayroll/internal/transport/http/shared"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Metrics *metrics.Collector
}

// Deps are the collaborators the HTTP router is built from.
type Deps struct {
	Config  config.Config
	Metrics *metrics.Collector
	Ready   func(ctx context.Context) error

	Catalog    cataloghandler.Service
	Core       corehandler.Service
	Attendance attendancehandler.Service
	Payroll    payrollhandler.Service
	Runs       payrollhandler.RunLister
	Audit      *audit.Service
	// Idempotency stores responses of keyed payroll creates.
	Idempotency middleware.IdempotencyBackend
}

// New connects to the database, prepares the schema and wires every service.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	sealer, err := cryptoutil.NewSealer(cfg.PayslipEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, err
	}
	schedule, err := attendance.NewSchedule(cfg.AttendanceCheckIn, cfg.AttendanceCheckOut)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("attendance schedule: %w", err)
	}

	collector := metrics.New()
	jobService := jobs.New(pool)
	catalogService := catalog.NewService(catalog.NewStore(pool))
	coreService := core.NewService(core.NewStore(pool), catalogService)
	attendanceService := attendance.NewService(attendance.NewStore(pool), attendance.Options{Schedule: schedule})

	opts := payroll.Options{Workers: cfg.PayrollWorkers, MaxPaymentAge: cfg.PaymentDateMaxAge}
	if mailer := email.New(cfg); mailer != nil {
		opts.Mailer = mailer
	}
	payrollService := payroll.NewService(
		payroll.NewStore(pool),
		catalogService,
		jobService,
		collector,
		payroll.NewPayslipWriter(cfg.PayslipDir, sealer),
		opts,
	)

	router := NewRouter(Deps{
		Config:     cfg,
		Metrics:    collector,
		Ready:      pool.Ping,
		Catalog:    catalogService,
		Core:       coreService,
		Attendance: attendanceService,
		Payroll:    payrollService,
		Runs:       jobService,
		Audit:      audit.New(pool),

		Idempotency: middleware.NewIdempotencyStore(pool),
	})

	return &App{Config: cfg, DB: pool, Router: router, Metrics: collector}, nil
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(deps.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(r.Context()))
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	var recorder shared.AuditRecorder
	if deps.Audit != nil {
		recorder = deps.Audit
	}
	var limiter *middleware.RateLimiter
	if cfg.RunRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RunRateLimit, time.Minute)
	}

	var idempotency *middleware.Idempotency
	if deps.Idempotency != nil {
		idempotency = middleware.NewIdempotency(deps.Idempotency)
	}

	router.Route("/api/v1", func(r chi.Router) {
		cataloghandler.NewHandler(deps.Catalog, recorder).RegisterRoutes(r)
		corehandler.NewHandler(deps.Core, recorder).RegisterRoutes(r)
		attendancehandler.NewHandler(deps.Attendance, recorder).RegisterRoutes(r)
		payrollhandler.NewHandler(deps.Payroll, deps.Runs, recorder, limiter).
			WithIdempotency(idempotency).
			RegisterRoutes(r)
		if deps.Audit != nil {
			audithandler.NewHandler(deps.Audit).RegisterRoutes(r)
		}
	})
	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.Config.Addr).Msg("payroll server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", a.Config.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
