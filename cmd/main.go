package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledger-service/ledger_service/internal/api/routes"
	"github.com/ledger-service/ledger_service/internal/domain/services/ledger"
	"github.com/ledger-service/ledger_service/internal/infrastructure/config"
	"github.com/ledger-service/ledger_service/internal/infrastructure/database"
	"github.com/ledger-service/ledger_service/internal/infrastructure/repositories"
	"github.com/ledger-service/ledger_service/internal/workers/reconciliation"
	"github.com/ledger-service/ledger_service/pkg/graceful"
	"github.com/ledger-service/ledger_service/pkg/logger"
	"github.com/ledger-service/ledger_service/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	log.Info("Starting ledger service", "environment", cfg.Environment)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}
	log.Info("Database migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:       fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		log.Info("Idempotency cache enabled", "addr", redisClient.Options().Addr)
	}

	m := metrics.New()

	repo := repositories.NewLedgerRepository(db, cfg.Ledger.LockTimeout())
	store := ledger.NewStore(repo)
	registry := ledger.NewRegistry(store, redisClient, log)
	service := ledger.NewService(store, registry, log, m)

	router := routes.SetupRouter(cfg, log, db, service, m)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	shutdownManager := graceful.NewShutdownManager(
		server,
		db,
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
		log,
	)

	if cfg.Reconciliation.Enabled {
		worker := reconciliation.NewWorker(repo, cfg.Reconciliation.Schedule, log, m)
		if err := worker.Start(); err != nil {
			log.Fatal("Failed to start reconciliation worker", "error", err)
		}
		shutdownManager.Register(worker)
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	shutdownManager.WaitForShutdown()
}
