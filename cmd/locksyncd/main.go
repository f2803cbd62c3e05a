package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"lock-sync-backend/config"
	"lock-sync-backend/internal/api"
	"lock-sync-backend/internal/db"
	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/notification"
	"lock-sync-backend/internal/remote"
	"lock-sync-backend/internal/store"
	"lock-sync-backend/internal/stream"
	"lock-sync-backend/internal/syncer"
)

func main() {
	logger := log.New(os.Stdout, "lock-sync ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}
	if cfg.Remote.BaseURL == "" {
		logger.Fatalf("remote.base_url must be configured")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	historyCache := api.NewHistoryCache(cfg.Server)

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
	workerPool.OnRecorded(api.HistoryInvalidator(historyCache))
	workerPool.Start(ctx)

	client := remote.NewClient(cfg.Remote)
	locks := lock.NewService(client, appStore, workerPool, lock.Options{
		BatteryCooldown: cfg.Locks.BatteryCooldown,
		CommandSource:   cfg.Locks.CommandSource,
	})

	if err := onboardLocks(ctx, logger, locks, appStore, cfg.Locks.Managed); err != nil {
		logger.Fatalf("failed to onboard locks: %v", err)
	}

	go syncer.NewService(cfg.Sync, locks).Run(ctx)

	if cfg.Stream.Enabled {
		consumer, err := stream.NewConsumer(cfg.Stream, locks)
		if err != nil {
			logger.Fatalf("failed to configure event stream: %v", err)
		}
		go consumer.Run(ctx)
	}

	router := api.NewRouter(locks, appStore, &webpushOptions, cfg.Server, historyCache)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// In-flight requests may still emit, so the workers outlive the HTTP server.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}

// onboardLocks starts managing the configured locks plus every lock persisted by an earlier run.
func onboardLocks(ctx context.Context, logger *log.Logger, locks *lock.Service, s store.Store, managed []config.ManagedLock) error {
	seen := make(map[string]bool)
	for _, m := range managed {
		if err := locks.Onboard(ctx, m.ID, m.Name); err != nil {
			return fmt.Errorf("lock %q: %w", m.ID, err)
		}
		seen[m.ID] = true
	}

	persisted, err := s.ListLocks(ctx)
	if err != nil {
		return err
	}
	for _, l := range persisted {
		if seen[l.ID] {
			continue
		}
		if err := locks.Onboard(ctx, l.ID, ""); err != nil {
			logger.Printf("failed to restore lock %s: %v", l.ID, err)
		}
	}
	logger.Printf("managing %d locks", len(locks.Registry().IDs()))
	return nil
}
