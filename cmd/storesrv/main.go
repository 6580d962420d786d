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

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/logtrace"
	"github.com/vicinaehq/backend/internal/storesrv/apis"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/contentstore"
	"github.com/vicinaehq/backend/internal/storesrv/db"
	"github.com/vicinaehq/backend/internal/storesrv/downloads"
	"github.com/vicinaehq/backend/internal/storesrv/github"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
	"github.com/vicinaehq/backend/internal/storesrv/publish"
	"github.com/vicinaehq/backend/internal/storesrv/server"
	"github.com/vicinaehq/backend/internal/storesrv/trending"
)

const shutdownTimeout = 15 * time.Second

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile *string
}

func main() {
	slog := log.With().Str("state", "init").Logger()
	opt := parseFlags()

	slog.Info().Str("config_file", *opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(*opt.configFile); err != nil {
		slog.Error().Str("config_file", *opt.configFile).Err(err).Msg("unable to load config file")
		os.Exit(1)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.Log.Level)
	if cfg.APISecret == "" && cfg.APISecretHash == "" {
		slog.Warn().Msg("no api secret configured, admin routes will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("store server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ConfigParam) error {
	m := metrics.New()

	store, err := contentstore.New(ctx, cfg.Storage, m)
	if err != nil {
		return fmt.Errorf("unable to create content store: %w", err)
	}
	catalog, err := db.NewCatalog(ctx, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("unable to open catalog: %w", err)
	}
	defer catalog.Close()

	gh := github.NewClient(cfg.GitHub)
	defer gh.Close()

	counter, err := downloads.NewCounter(catalog, cfg.Downloads.MaxTrackedExtensions, cfg.Downloads.MaxClientsPerExtension, m)
	if err != nil {
		return fmt.Errorf("unable to create download counter: %w", err)
	}
	ranker := trending.NewRanker(catalog, trending.DefaultParams(), m)
	trending.NewScheduler(ranker, cfg.Trending.RefreshInterval()).Start(ctx)

	service := apis.NewService(apis.Deps{
		Catalog:   catalog,
		Store:     store,
		Publisher: publish.New(store, catalog, gh, publish.WithMaxUploadSize(cfg.MaxUploadSize), publish.WithMetrics(m)),
		Counter:   counter,
		Ranker:    ranker,
		Metrics:   m,
		Config:    cfg,
	})
	s, err := server.CreateNewServer(service, store, m, cfg)
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}
	s.MountHandlers()

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("storage", string(store.Provider())).Str("catalog", cfg.Catalog.Driver).Msg("store server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	opt.configFile = flag.String("config", "", "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
