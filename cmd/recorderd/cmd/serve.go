package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
	"github.com/jmylchreest/tvarr-recorder/internal/config"
	"github.com/jmylchreest/tvarr-recorder/internal/configstore"
	"github.com/jmylchreest/tvarr-recorder/internal/database"
	"github.com/jmylchreest/tvarr-recorder/internal/engine"
	internalhttp "github.com/jmylchreest/tvarr-recorder/internal/http"
	"github.com/jmylchreest/tvarr-recorder/internal/http/handlers"
	"github.com/jmylchreest/tvarr-recorder/internal/playback"
	"github.com/jmylchreest/tvarr-recorder/internal/retention"
	"github.com/jmylchreest/tvarr-recorder/internal/version"
	"github.com/jmylchreest/tvarr-recorder/internal/writer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recorder daemon",
	Long: `Start recorderd's HTTP API and recording engine.

The process provides:
- A recorder goroutine per enabled stream, rotating MP4 segments on a
  fixed interval and cataloging each completed recording
- A timeline/playback HTTP API with manifest generation and Range-aware
  segment streaming
- A catalog retention sweep on a cron schedule
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database-dsn", "recorderd.db", "Database DSN")
	serveCmd.Flags().String("storage-root", "./recordings", "Recordings storage root")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database-dsn"))
	mustBindPFlag("storage.root", serveCmd.Flags().Lookup("storage-root"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags given on the command line override the loaded config.
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("database-dsn") {
		cfg.Database.DSN, _ = flags.GetString("database-dsn")
	}
	if flags.Changed("storage-root") {
		cfg.Storage.Root, _ = flags.GetString("storage-root")
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	catalogStore, err := catalog.New(db.DB, logger)
	if err != nil {
		return fmt.Errorf("initializing catalog: %w", err)
	}

	configStore, err := configstore.New(db.DB, logger)
	if err != nil {
		return fmt.Errorf("initializing stream config store: %w", err)
	}

	registry := engine.NewRegistry(cfg.Recorder.MaxStreams, catalogStore, logger)
	writerFactory := writer.NewFileFactory(logger)
	sourceFactory := engine.NewSyntheticSourceFactory(0)

	eng := engine.NewEngine(registry, configStore, catalogStore, writerFactory, sourceFactory, cfg.Storage.RecordingsPath(), cfg.Recorder, logger)

	dedup := playback.NewDedup(cfg.Dedup.Capacity)

	sweeper, err := retention.NewSweeper(catalogStore, cfg.Retention, logger)
	if err != nil {
		return fmt.Errorf("configuring retention sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := startEnabledStreams(ctx, eng, configStore, logger); err != nil {
		logger.Error("starting configured streams", slog.Any("error", err))
	}

	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	streamsHandler := handlers.NewStreamsHandler(configStore)
	streamsHandler.Register(server.API())

	timelineHandler := handlers.NewTimelineHandler(catalogStore, cfg.Storage.Root)
	timelineHandler.Register(server.API())
	timelineHandler.RegisterChiRoutes(server.Router())

	playbackHandler := handlers.NewPlaybackHandler(catalogStore, dedup)
	playbackHandler.RegisterChiRoutes(server.Router())

	healthHandler := handlers.NewHealthHandler(version.Version, db.DB, registry)
	healthHandler.Register(server.API())

	server.Router().Handle("/metrics", promhttp.Handler())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		if err := eng.Shutdown(context.Background()); err != nil {
			logger.Error("shutting down recording engine", slog.Any("error", err))
		}
		cancel()
	}()

	logger.Info("starting recorderd",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// startEnabledStreams starts a recorder for every enabled,
// record-flagged stream at process startup.
func startEnabledStreams(ctx context.Context, eng *engine.Engine, store *configstore.Store, logger *slog.Logger) error {
	cfgs, err := store.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing streams: %w", err)
	}
	for _, sc := range cfgs {
		if !sc.Enabled || !sc.Record {
			continue
		}
		if err := eng.Start(ctx, sc.Name); err != nil {
			logger.Error("starting stream recorder", slog.String("stream", sc.Name), slog.Any("error", err))
			continue
		}
		logger.Info("started stream recorder", slog.String("stream", sc.Name))
	}
	return nil
}
