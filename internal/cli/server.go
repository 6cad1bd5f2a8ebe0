package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"trivia-arena/internal/app"
	"trivia-arena/internal/config"
	transport "trivia-arena/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	hub := transport.NewHub(logger.Named("hub"))
	index := b.roomIndex()
	var opts []app.Option
	if cfg.Rooms.CodeLength > 0 {
		opts = append(opts, app.WithCodeLength(cfg.Rooms.CodeLength))
	}
	registry := app.NewRegistry(ctx, hub, index, logger.Named("registry"), opts...)

	scheduler, err := startReservationRefresh(ctx, cfg, registry, index, logger)
	if err != nil {
		return err
	}
	defer func() { _ = scheduler.Shutdown() }()

	wsHandler := transport.NewWSHandler(registry, hub, logger.Named("ws"))
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(wsHandler, registry),
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting trivia server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// startReservationRefresh keeps the room-code reservations of live rooms from expiring.
func startReservationRefresh(ctx context.Context, cfg config.Config, registry *app.Registry, index app.RoomIndex, logger *zap.Logger) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	interval := config.TTLDuration(cfg.Rooms.RefreshInterval, 10*time.Minute)
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			jobCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			rooms := registry.Rooms(jobCtx)
			if len(rooms) == 0 {
				return
			}
			if err := index.Touch(jobCtx, rooms); err != nil {
				logger.Warn("refresh room reservations", zap.Int("rooms", len(rooms)), zap.Error(err))
				return
			}
			logger.Debug("room reservations refreshed", zap.Int("rooms", len(rooms)))
		}),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}
