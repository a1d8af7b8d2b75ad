package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RajatKothariN1NN/Hypervisor/pkg/api"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/config"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/depgraph"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/events"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/log"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/metrics"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/queue"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/scheduler"
	"github.com/RajatKothariN1NN/Hypervisor/pkg/storage"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hypervisord",
	Short: "Hypervisor - a priority-and-dependency-aware deployment scheduler",
	Long: `hypervisord admits declarative deployments onto fixed-capacity
clusters, honoring priority-based preemption and dependency ordering,
with a durable at-least-once job queue driving every admission step.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"hypervisord version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hypervisor control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	resolver := depgraph.New(store)
	broker := events.NewBroker()
	broker.Start()

	sched := scheduler.New(store, resolver, broker).
		WithMaxAttempts(cfg.MaxAttempts).
		WithBackoffCap(cfg.BackoffCapDuration)

	pool := queue.NewPool(store, sched, cfg.Workers).
		WithJobTimeout(cfg.JobTimeoutDuration).
		WithReconcileTick(cfg.ReconcileTickDuration)
	pool.Start()

	collector := metrics.NewCollector(store)
	collector.Start()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("storage", metrics.StateHealthy, "")
	metrics.RegisterComponent("queue", metrics.StateHealthy, "")
	metrics.RegisterComponent("api", metrics.StateHealthy, "")

	apiServer := api.NewServer(store, resolver)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- apiServer.ListenAndServe(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api server failed")
		}
	}

	return shutdown(store, pool, collector, broker, apiServer, metricsSrv)
}

// shutdown tears down every background component, aggregating whichever
// errors occur so a failure to close one resource doesn't hide a failure
// in another.
func shutdown(store storage.Store, pool *queue.Pool, collector *metrics.Collector, broker *events.Broker, apiServer *api.Server, metricsSrv *http.Server) error {
	var result *multierror.Error

	pool.Stop()
	collector.Stop()
	broker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("api server shutdown: %w", err))
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("metrics server shutdown: %w", err))
	}
	if err := store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("store close: %w", err))
	}

	return result.ErrorOrNil()
}
