package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyejin/flowd/internal/action"
	"github.com/hyejin/flowd/internal/api"
	"github.com/hyejin/flowd/internal/bus"
	"github.com/hyejin/flowd/internal/config"
	"github.com/hyejin/flowd/internal/connector"
	"github.com/hyejin/flowd/internal/db"
	"github.com/hyejin/flowd/internal/engine"
	"github.com/hyejin/flowd/internal/export"
	"github.com/hyejin/flowd/internal/registry"
	"github.com/hyejin/flowd/internal/repository"
	"github.com/hyejin/flowd/internal/schedule"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "flowd",
		Short:         "flowd is a durable workflow execution engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the flowd server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		slog.Error("flowd exited", "err", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run store: memory-backed, with Postgres dual-write when configured.
	memStore := repository.NewMemoryRunStore()
	var store repository.RunStore = memStore
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		store = repository.NewPersistentRunStore(memStore, database)
		slog.Info("run store connected to postgres")
	} else {
		slog.Warn("no database configured, runs are in-memory only")
	}

	connectors := connector.NewRegistry()
	for id, cc := range cfg.Connectors {
		switch cc.Type {
		case "openai", "":
			connectors.Register(id, connector.NewOpenAIConnector(id, cc.URL, cc.APIKey))
			slog.Info("registered connector", "id", id, "type", "openai")
		default:
			slog.Warn("skipping connector with unknown type", "id", id, "type", cc.Type)
		}
	}

	exporter, err := export.NewLocalExporter(cfg.Export.Dir)
	if err != nil {
		return fmt.Errorf("init exporter: %w", err)
	}

	events := bus.New()
	executor := action.NewExecutor(connectors, exporter)
	eng := engine.New(store, events, executor, engine.Options{
		MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
	})
	instances := registry.New()

	scheduler := schedule.NewService(eng)
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.NewServer(eng, events, instances, connectors, exporter).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting flowd server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
