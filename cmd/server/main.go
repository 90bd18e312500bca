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

	"github.com/stwalsh4118/lineup/internal/backend"
	"github.com/stwalsh4118/lineup/internal/config"
	"github.com/stwalsh4118/lineup/internal/db"
	"github.com/stwalsh4118/lineup/internal/events"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/manager"
	"github.com/stwalsh4118/lineup/internal/policy"
	"github.com/stwalsh4118/lineup/internal/server"
)

const (
	shutdownTimeout = 15 * time.Second
	eventTimeout    = 2 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else search ./, ./config and /etc/lineup")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "lineup: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, v, err := config.LoadViper(configPath)
	if err != nil {
		return err
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logger.Component("main")

	database, err := db.New(cfg.Database.Path,
		db.WithWAL(cfg.Database.EnableWAL),
		db.WithConnectionTimeout(cfg.Database.ConnectionTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return err
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	repos := db.NewRepositories(database)

	catalog, err := backend.LoadCatalog(cfg.Backends.CatalogPath)
	if err != nil {
		return err
	}
	directory, err := backend.NewDirectoryFromCatalog(catalog,
		backend.WithQueryTimeout(cfg.Backends.QueryTimeout),
		backend.WithCircuitBreaker(cfg.Backends.FailureThreshold, cfg.Backends.ResetTimeout),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := policy.New(v, policy.WithStore(repos.Settings))
	if err := provider.Load(ctx); err != nil {
		return err
	}
	if v.ConfigFileUsed() != "" {
		provider.Watch()
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	sinks := events.Multi{bus}
	var last events.LastEventStore = bus
	if cfg.Events.RedisURL != "" {
		redisSink, err := events.NewRedisSink(cfg.Events.RedisURL, cfg.Events.ChannelPrefix)
		if err != nil {
			return err
		}
		defer func() { _ = redisSink.Close() }()

		if err := redisSink.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		sinks = append(sinks, redisSink)
		last = redisSink
		log.Info().Str("channel", redisSink.Channel()).Msg("Publishing group events to redis")
	}

	groups := manager.New(
		db.NewGroupStore(database, repos),
		repos.Groups,
		directory,
		provider,
		events.NewGroupSink(sinks, eventTimeout),
		manager.Config{
			TVGroupName:     cfg.PVR.TVGroupName,
			RadioGroupName:  cfg.PVR.RadioGroupName,
			RefreshInterval: cfg.Backends.RefreshInterval,
		},
	)

	srv := server.New(cfg, database, groups, directory, provider, bus, last)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
