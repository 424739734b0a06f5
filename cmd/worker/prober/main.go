package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/satring/gateway/config"
	"github.com/satring/gateway/internal/prober"
	messages "github.com/satring/gateway/internal/queue"
	"github.com/satring/gateway/internal/store"
	"github.com/satring/gateway/pkg/cache"
	"github.com/satring/gateway/pkg/logger"
	streams "github.com/satring/gateway/pkg/queue"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

var Cfg config.GatewayConfig

const (
	probeStream   = "listing-probes"
	probeGroup    = "probe_workers"
	sweepInterval = 15 * time.Minute
)

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
	root := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(filename))))
	configPath := config.Path(root).Join("config.toml")

	if err := config.Load(configPath, &Cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("starting listing prober worker")

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

	listingsRepo := store.NewListingRepository(db)
	p := prober.New(listingsRepo)

	queue := streams.NewStreamQueue(cache.Client)
	consumerName := fmt.Sprintf("prober-%d", time.Now().Unix())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queue.DeclareStream(ctx, probeStream, probeGroup); err != nil {
		return fmt.Errorf("failed to declare the consumer group: %w", err)
	}

	handler := &messageHandler{listings: listingsRepo, prober: p}

	go func() {
		err := queue.Consume(ctx, probeStream, probeGroup, consumerName,
			func(messageID string, data []byte) error {
				return handler.processMessage(ctx, messageID, data)
			})
		if err != nil && err != context.Canceled {
			logger.Error("consumer error", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("running periodic listing sweep")
				if err := p.Sweep(ctx); err != nil {
					logger.Error("sweep failed", zap.Error(err))
				}
			}
		}
	}()

	logger.Info("prober worker is running, waiting for messages...",
		zap.String("stream", probeStream),
		zap.String("group", probeGroup),
		zap.String("consumer", consumerName),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	time.Sleep(3 * time.Second)
	logger.Info("prober worker shut down gracefully")
	return nil
}

// messageHandler probes a single listing in response to a probe_listing
// message published right after it is created or edited.
type messageHandler struct {
	listings *store.ListingRepository
	prober   *prober.Prober
}

func (h *messageHandler) processMessage(ctx context.Context, messageID string, data []byte) error {
	msg, err := messages.FromJSONProbeListing(data)
	if err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	l, err := h.listings.GetByURLIncludingPurged(ctx, msg.URL)
	if err != nil {
		return fmt.Errorf("fetch listing %s: %w", msg.ListingID, err)
	}
	if l.Status == store.StatusPurged {
		return nil
	}

	if err := h.prober.ProbeOne(ctx, l); err != nil {
		return fmt.Errorf("probe listing %s: %w", msg.ListingID, err)
	}
	logger.Info("probed listing", zap.String("listing_id", msg.ListingID), zap.String("message_id", messageID))
	return nil
}
