package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mohammadpnp/school-import/internal/bootstrap"
	"github.com/mohammadpnp/school-import/internal/config"
	"github.com/mohammadpnp/school-import/internal/infrastructure/repository"
	"github.com/mohammadpnp/school-import/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if cfg.Debug {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.URL), gormConfig)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect database")
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Fatal("failed to create pgx pool")
	}
	defer pool.Close()

	// Held advisory locks pin connections, so they get a pool of their own.
	var lockPool *pgxpool.Pool
	if cfg.Import.Locker == "postgres" {
		lockPool, err = repository.NewLockPool(context.Background(), cfg.Database.URL, cfg.Import.LockPoolSize)
		if err != nil {
			logger.WithError(err).Fatal("failed to create lock pool")
		}
		defer lockPool.Close()
	}

	server, err := bootstrap.NewHTTPServer(cfg, db, pool, lockPool, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build http server")
	}

	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("http server listening")
		if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
