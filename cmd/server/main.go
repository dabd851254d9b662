package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muster-live/muster/pkg/api"
	"github.com/muster-live/muster/pkg/config"
	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/repositories"
	"github.com/muster-live/muster/pkg/rooms"
	"github.com/muster-live/muster/pkg/version"
	"github.com/muster-live/muster/pkg/workers"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	parsedLogLevel, err := log.ParseLogLevel(level)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repository, err := newRepository(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(context.Background())

	registry := rooms.NewRegistry(rooms.NewRegistryOptions{
		Repository: repository,
		TTL:        cfg.RoomTTL,
		Logger:     logger,
	})

	reaper := workers.NewRoomReaperWorker(workers.NewRoomReaperWorkerOptions{
		Registry: registry,
		Interval: cfg.ReapInterval,
	})
	go reaper.Start(ctx)

	var tlsConfig *api.TLSConfig
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		tlsConfig = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:        cfg.Port,
		TLS:         tlsConfig,
		Registry:    registry,
		CodeLength:  cfg.CodeLength,
		WSReadLimit: cfg.WSReadLimit,
	})
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
}

func newRepository(ctx context.Context, cfg *config.Config) (repositories.Repository, error) {
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres store requires a DSN")
		}
		return repositories.NewPostgresRepository(ctx, cfg.PostgresDSN)
	case config.StoreSQLite:
		return repositories.NewSQLiteRepository(ctx, cfg.SQLitePath)
	default:
		return repositories.NewInMemoryRepository(), nil
	}
}
