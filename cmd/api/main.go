package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/satring/gateway/config"
	"github.com/satring/gateway/internal/httpapi"
	"github.com/satring/gateway/internal/l402guard"
	"github.com/satring/gateway/internal/listing"
	"github.com/satring/gateway/internal/payments"
	"github.com/satring/gateway/internal/ratelimit"
	"github.com/satring/gateway/internal/recovery"
	"github.com/satring/gateway/internal/store"
	"github.com/satring/gateway/pkg/cache"
	"github.com/satring/gateway/pkg/logger"
	streams "github.com/satring/gateway/pkg/queue"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

var Cfg config.GatewayConfig

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.GetEnv()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	configPath := config.Path(root).Join("config.toml")

	if err := config.Load(configPath, &Cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// §6: refuse to start unless AUTH_ROOT_KEY is set. The literal
	// "test-mode" disables every L402 gate and must be logged loudly.
	if Cfg.Auth.RootKey == "" {
		return errors.New("AUTH_ROOT_KEY must be set (use \"test-mode\" for local development)")
	}
	if Cfg.Auth.RootKey == "test-mode" {
		logger.Warn("AUTH_ROOT_KEY is \"test-mode\": all L402 payment gates are DISABLED")
	}

	var redisCfg cache.Config
	if err := copier.Copy(&redisCfg, &Cfg.Redis); err != nil {
		return fmt.Errorf("failed to copy cache config: %w", err)
	}
	if err := cache.Init(redisCfg); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cache.Close()

	var dbCfg store.Config
	if err := copier.Copy(&dbCfg, &Cfg.Database); err != nil {
		return fmt.Errorf("failed to copy database config: %w", err)
	}
	db, err := store.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database connection: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	baseHost := ""
	if u, err := url.Parse(Cfg.BaseURL); err == nil {
		baseHost = u.Host
	}

	paymentsClient := payments.New(Cfg.Payment.URL, Cfg.Payment.Key)
	ledger := store.NewPaymentLedger(db)
	guard := l402guard.New(Cfg.Auth.RootKey, paymentsClient, ledger)
	limiter := ratelimit.NewLimiter()

	listingsRepo := store.NewListingRepository(db)
	categoriesRepo := store.NewCategoryRepository(db)
	ratingsRepo := store.NewRatingRepository(db)
	recoveryProtocol := recovery.New(listingsRepo)

	probeQueue := streams.NewStreamQueue(cache.Client)
	const probeStream = "listing-probes"
	const probeGroup = "probe_workers"
	if err := probeQueue.DeclareStream(context.Background(), probeStream, probeGroup); err != nil {
		logger.Warn("failed to declare probe consumer group", zap.Error(err))
	}

	listingsSvc := listing.NewService(listingsRepo, categoriesRepo, ratingsRepo, recoveryProtocol, probeQueue)

	deps := &httpapi.Deps{
		Listings: listingsSvc,
		Guard:    guard,
		Limiter:  limiter,
		Payments: paymentsClient,
		Ledger:   ledger,
		Prices: httpapi.Prices{
			Base:   Cfg.Auth.PriceSats,
			Submit: Cfg.Auth.SubmitPriceSats,
			Review: Cfg.Auth.ReviewPriceSats,
			Bulk:   Cfg.Auth.BulkPriceSats,
		},
		BaseHost: baseHost,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", Cfg.Server.Port),
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  time.Duration(Cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(Cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(Cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.Int("port", Cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("gateway shut down gracefully")
	return nil
}
