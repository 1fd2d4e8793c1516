package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	accountsHandler "registrar/internal/accounts/handler"
	accountsMetrics "registrar/internal/accounts/metrics"
	"registrar/internal/accounts/secrets"
	accountsService "registrar/internal/accounts/service"
	accountStore "registrar/internal/accounts/store/account"
	"registrar/internal/captcha"
	"registrar/internal/platform/config"
	"registrar/internal/platform/database"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/metrics"
	redisClient "registrar/internal/platform/redis"
	"registrar/internal/ratelimit"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/platform/audit/publishers/compliance"
	auditMemory "registrar/pkg/platform/audit/store/memory"
	auditPostgres "registrar/pkg/platform/audit/store/postgres"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/platform/middleware/device"
	"registrar/pkg/platform/middleware/metadata"
	"registrar/pkg/platform/middleware/request"
	"registrar/pkg/platform/middleware/requesttime"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("registrar stopped with error", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	db    *sql.DB
	redis *redisClient.Client
}

func (i *infra) close() {
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func (i *infra) health(ctx context.Context) error {
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(registry)

	gate, challenges := buildGate(cfg, deps, registry)
	accounts, err := buildAccounts(cfg, deps, gate, registry, log)
	if err != nil {
		return err
	}

	trusted, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata(trusted))
	router.Use(device.Middleware)
	router.Use(httpMetrics.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	registerLimiter, challengeLimiter := buildLimiters(cfg, deps, registry, log)
	accountRoutes := accountsHandler.New(accounts, cfg.AdminAPIToken, log)
	router.Group(func(r chi.Router) {
		r.Use(challengeLimiter.Limit(ratelimit.ScopeChallenge))
		captcha.NewHandler(gate, cfg.Registration.UseCaptcha, log).Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(registerLimiter.Limit(ratelimit.ScopeRegister))
		accountRoutes.Register(r)
	})
	accountRoutes.RegisterAdmin(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if sweeper, ok := challenges.(*captcha.InMemoryStore); ok {
		g.Go(func() error {
			sweeper.Run(gctx, cfg.Registration.CaptchaTTL)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting registrar",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"use_captcha", cfg.Registration.UseCaptcha,
			"postgres", deps.db != nil,
			"redis", deps.redis != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		log.Info("shutting down registrar")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	if cfg.IsProduction() && cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required in production")
	}
	deps := &infra{}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		deps.db = db
	} else {
		log.Warn("DATABASE_URL not set, accounts are kept in memory")
	}

	rdb, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	if rdb != nil {
		deps.redis = rdb
	} else {
		log.Warn("REDIS_URL not set, captcha challenges are kept in memory")
	}
	return deps, nil
}

func buildGate(cfg config.Server, deps *infra, reg prometheus.Registerer) (*captcha.Gate, captcha.ChallengeStore) {
	var store captcha.ChallengeStore
	if deps.redis != nil {
		store = captcha.NewRedisStore(deps.redis.Client)
	} else {
		store = captcha.NewInMemoryStore()
	}
	gate := captcha.NewGate(store,
		captcha.WithTTL(cfg.Registration.CaptchaTTL),
		captcha.WithMetrics(captcha.NewMetrics(reg)),
	)
	return gate, store
}

// buildLimiters shares one store and one metrics set between the register
// and challenge budgets.
func buildLimiters(cfg config.Server, deps *infra, reg prometheus.Registerer, log *slog.Logger) (register, challenge *ratelimit.Middleware) {
	var store ratelimit.Store
	if deps.redis != nil {
		store = ratelimit.NewRedisStore(deps.redis.Client)
	} else {
		store = ratelimit.NewInMemoryStore()
	}
	m := ratelimit.NewMetrics(reg)
	register = ratelimit.New(store, cfg.RateLimit.RegisterLimit, cfg.RateLimit.Window, log, ratelimit.WithMetrics(m))
	challenge = ratelimit.New(store, cfg.RateLimit.ChallengeLimit, cfg.RateLimit.Window, log, ratelimit.WithMetrics(m))
	return register, challenge
}

func buildAccounts(cfg config.Server, deps *infra, gate *captcha.Gate, reg prometheus.Registerer, log *slog.Logger) (*accountsService.Service, error) {
	var (
		store      accountsService.AccountStore
		tx         accountsService.StoreTx
		auditStore audit.Store
	)
	if deps.db != nil {
		store = accountStore.NewPostgres(deps.db)
		tx = accountStore.NewPostgresTx(deps.db, cfg.Database.TxTimeout)
		auditStore = auditPostgres.New(deps.db)
	} else {
		store = accountStore.New()
		tx = accountStore.NewMemoryTx()
		auditStore = auditMemory.NewInMemoryStore()
	}

	publisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	return accountsService.New(store, gate, secrets.NewBcryptHasher(bcrypt.DefaultCost),
		accountsService.Settings{
			UseCaptcha:        cfg.Registration.UseCaptcha,
			PasswordMinLength: cfg.Registration.PasswordMinLength,
		},
		accountsService.WithStoreTx(tx),
		accountsService.WithLogger(log),
		accountsService.WithAuditPublisher(publisher),
		accountsService.WithMetrics(accountsMetrics.New(reg)),
	)
}
