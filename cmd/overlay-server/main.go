package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/config"
	"github.com/tcgoverlay/overlay-server-go/internal/server"
	"github.com/tcgoverlay/overlay-server-go/internal/storage"
	"github.com/tcgoverlay/overlay-server-go/internal/store"
	"github.com/tcgoverlay/overlay-server-go/internal/transport"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting overlay server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	library, err := loadCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded", zap.Int("cards", len(library.All())))

	slot := storage.NewSlot(cfg.Storage.StatePath, logger)
	doc, err := slot.Load()
	if err != nil {
		logger.Warn("failed to read persisted state, starting from defaults",
			zap.Error(err))
	}

	var relay *transport.RelayClient
	var paths []transport.Publisher
	if cfg.Relay.URL != "" {
		relay = transport.NewRelayClient(cfg.Relay.URL, logger)
		paths = append(paths, relay)
		logger.Info("relay path enabled", zap.String("url", cfg.Relay.URL))
	}

	mux := transport.NewMux(paths...)
	st := store.New(doc, slot, mux, logger)

	if relay != nil {
		mux.Attach(relay)
		go relay.Run(ctx)
	}
	if cfg.Storage.Watch {
		watcher := transport.NewFileWatcher(slot.Path(), logger)
		mux.Attach(watcher)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("storage watcher stopped", zap.Error(err))
			}
		}()
		logger.Info("storage watch enabled", zap.String("path", slot.Path()))
	}

	// Remote envelopes from any attached path merge into the store, which
	// re-publishes the converged document for the feed.
	mux.SubscribeInbound(func(env transport.Envelope) {
		if _, err := st.ApplyRemote(env); err != nil {
			logger.Warn("remote update rejected", zap.Error(err))
		}
	})

	srv := server.New(ctx, st, library, mux, logger)
	go srv.Hub().Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: srv.Routes(),
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("overlay server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
		zap.String("state_path", cfg.Storage.StatePath),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	logger.Info("overlay server stopped")
}

// loadCatalog builds the card library from postgres when configured, else
// from the JSON file.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, logger *zap.Logger) (*catalog.Library, error) {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect card database: %w", err)
		}
		defer pool.Close()
		return catalog.LoadPostgres(ctx, pool, logger)
	}
	return catalog.LoadFile(cfg.Path, logger)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
