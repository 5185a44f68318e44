package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/hangout-reservations/internal/config"
	"github.com/iliyamo/hangout-reservations/internal/database"
	"github.com/iliyamo/hangout-reservations/internal/handler"
	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/middleware"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
	"github.com/iliyamo/hangout-reservations/internal/queue"
	"github.com/iliyamo/hangout-reservations/internal/repository"
	"github.com/iliyamo/hangout-reservations/internal/router"
	"github.com/iliyamo/hangout-reservations/internal/service"
	"github.com/iliyamo/hangout-reservations/internal/staleness"
	"github.com/iliyamo/hangout-reservations/internal/txn"
	"github.com/iliyamo/hangout-reservations/internal/users"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, dialect, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open store", "driver", cfg.StoreDriver, "error", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db, dialect); err != nil {
		log.Fatal("failed to migrate schema", "error", err)
	}
	store := repository.NewItemStore(db, dialect)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; using store markers, uncached users and no rate limit")
	} else {
		defer rdb.Close()
	}

	txnCfg := config.LoadTxnConfig()
	cacheCfg := config.LoadUserCacheConfig()
	userRepo := repository.NewUserRepo(db)
	userProvider := users.New(userRepo, rdb, cacheCfg.Enabled, cacheCfg.TTL, cacheCfg.NegativeTTL, cacheCfg.Prefix, log)

	var drift pointer.DriftRecorder = pointer.LogRecorder{Log: log}
	if cfg.AMQPURL != "" {
		drift = queue.NewPublisher(cfg.AMQPURL, log)
	}
	maint := pointer.NewMaintainer(repository.NewHangoutRepo(store), repository.NewPointerRepo(store),
		userProvider, drift, txnCfg.PointerMaxRetries, log)

	svc := service.New(service.Deps{
		Store: store,
		Engine: txn.New(store, txn.Config{
			MaxRetries: txnCfg.MaxRetries,
			BatchSize:  txnCfg.BatchSize,
			Jitter:     txnCfg.Jitter,
		}, log),
		Maintainer: maint,
		Signal:     staleness.New(rdb, config.LoadStalenessConfig().Prefix, repository.NewMarkerRepo(store)),
		Users:      userProvider,
		Log:        log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartDriftConsumer(ctx, cfg.AMQPURL, svc, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("drift consumer stopped", "error", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover(), echomw.RequestID(), echomw.Logger())
	router.RegisterRoutes(e, db)
	routeOpts := router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Freshness: middleware.Freshness("groupId", svc.FeedToken, log),
	}
	router.RegisterHangouts(e, handler.NewHangoutHandler(svc), routeOpts)
	router.RegisterProfile(e, handler.NewProfileHandler(users.NewDirectory(userRepo, userProvider, log)), routeOpts)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

// openStore connects to the configured SQL backend.
func openStore(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", err
			}
		}
		db, err := database.OpenSQLite(cfg.SQLitePath)
		return db, database.SQLite, err
	}
	db, err := database.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, database.MySQL, err
}
