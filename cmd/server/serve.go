package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/warp/contribution-engine/api"
	"github.com/warp/contribution-engine/config"
	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/logger"
	"github.com/warp/contribution-engine/metrics"
	"github.com/warp/contribution-engine/readside"
	"github.com/warp/contribution-engine/store/sqlite"
	"github.com/warp/contribution-engine/stream"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event relays",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Sync()

	// Calculators
	registry, err := cfg.Calculator.Registry()
	if err != nil {
		return fmt.Errorf("load calculators: %w", err)
	}
	lg.Info("calculators loaded", "years", registry.Years())

	// Storage
	tagger := stream.NewTagger(cfg.Stream.Shards)
	store, err := sqlite.New(cfg.Store.EventsPath, tagger)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer store.Close()

	readDB := store.DB()
	if cfg.Store.ReadsidePath != "" && cfg.Store.ReadsidePath != cfg.Store.EventsPath {
		if readDB, err = sqlite.Open(cfg.Store.ReadsidePath); err != nil {
			return fmt.Errorf("open read model: %w", err)
		}
		defer readDB.Close()
	}
	projector, err := readside.NewProjector(readDB, lg)
	if err != nil {
		return err
	}

	// Domain
	m := metrics.New(prometheus.DefaultRegisterer)
	aggregate := contributor.NewAggregate(registry)
	service := contributor.NewService(aggregate, store, lg, m)

	// Relays
	relays := stream.NewRelays(stream.RelayConfig{
		Consumer:  readside.ConsumerName,
		Source:    store,
		Offsets:   store,
		Handler:   projector,
		BatchSize: cfg.Stream.BatchSize,
		Interval:  cfg.Stream.PollInterval.Duration,
		Logger:    lg,
		Recorder:  m,
	}, tagger)

	if cfg.Kafka.Enabled() {
		publisher, err := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relays = append(relays, stream.NewRelays(stream.RelayConfig{
			Consumer:  "kafka",
			Source:    store,
			Offsets:   store,
			Handler:   publisher,
			BatchSize: cfg.Stream.BatchSize,
			Interval:  cfg.Stream.PollInterval.Duration,
			Logger:    lg,
			Recorder:  m,
		}, tagger)...)
		lg.Info("publishing committed events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// HTTP
	handler := api.NewHandler(service, projector, registry, lg)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        promhttp.Handler(),
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration,
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration,
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stream.RunAll(gctx, relays) })
	g.Go(func() error {
		lg.Info("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	lg.Info("server stopped")
	return err
}
