package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/table-settlement/internal/billing"
	"github.com/iliyamo/table-settlement/internal/config"
	"github.com/iliyamo/table-settlement/internal/database"
	"github.com/iliyamo/table-settlement/internal/handler"
	"github.com/iliyamo/table-settlement/internal/idempotency"
	"github.com/iliyamo/table-settlement/internal/metrics"
	"github.com/iliyamo/table-settlement/internal/middleware"
	"github.com/iliyamo/table-settlement/internal/queue"
	"github.com/iliyamo/table-settlement/internal/repository"
	"github.com/iliyamo/table-settlement/internal/router"
	"github.com/iliyamo/table-settlement/internal/service"
	"github.com/iliyamo/table-settlement/internal/session"
	"github.com/iliyamo/table-settlement/pkg/logging"
)

func main() {
	logging.Setup()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDB(cfg)
	if err != nil {
		slog.Error("database open failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, db, string(dialect)); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	store := repository.NewStore(db, dialect)
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Redis is optional: without it tokens, rate limits and the menu cache
	// stay in process.
	redisCfg := config.LoadRedisConfig()
	rdb := config.NewRedisClient(redisCfg)
	var tokens session.Registry = session.NewMemoryRegistry()
	if rdb != nil {
		defer rdb.Close()
		tokens = session.NewRedisRegistry(rdb, redisCfg.TokenPrefix, redisCfg.TokenTTL)
	}

	opts := []billing.Option{
		billing.WithRegistry(tokens),
		billing.WithObserver(m),
		billing.WithQuoteTTL(cfg.QuoteTTL),
		billing.WithLifecycle(cfg.SessionIdleTimeout, cfg.SessionRetention),
		billing.WithDefaultCurrency(cfg.DefaultCurrency),
	}
	if cfg.EventsEnabled {
		pub := service.NewAMQPPublisher(cfg.AMQPURL)
		defer pub.Close()
		opts = append(opts, billing.WithPublisher(pub))
	}
	engine := billing.New(store, opts...)
	idem := idempotency.New(store.Idempotency, cfg.IdempotencyTTL, idempotency.WithObserver(m))

	go engine.RunSweeper(ctx, cfg.SweepInterval)
	if cfg.AuditEnabled {
		go func() {
			if err := queue.StartPaymentAuditConsumer(ctx, cfg.AMQPURL, cfg.AuditLogDir); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("payment audit consumer stopped", "error", err)
			}
		}()
	}

	menu := handler.NewMenuHandler(store.Menu)
	tables := handler.NewTableHandler(engine, idem)

	e := router.New(m)
	router.RegisterRoutes(e, db, reg)
	router.RegisterPublic(e, menu, tables, middleware.NewMenuCache(config.LoadCacheConfig(), rdb, menu.MenuVersion))
	router.RegisterGuest(e, tables, tokens, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterStaff(e, handler.NewStaffHandler(engine, store.Sessions), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver, "redis", rdb != nil)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

func openDB(cfg config.Config) (*sql.DB, repository.Dialect, error) {
	if cfg.DBDriver == config.DriverSQLite {
		db, err := database.OpenSQLite(cfg.SQLitePath)
		return db, repository.DialectSQLite, err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, repository.DialectMySQL, err
}
