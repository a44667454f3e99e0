package main

import (
	"context"
	"os/signal"
	"syscall"

	"thermal_envelope/internal/handlers"
	"thermal_envelope/internal/logger"
	"thermal_envelope/internal/repository"
	"thermal_envelope/internal/repository/db"
	"thermal_envelope/internal/server"
	"thermal_envelope/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("port", "", "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Get(cfg.Log.Level)
	if cfg.Log.Level != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Errorw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
		return err
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(database)
	services := service.NewService(repos, cfg, log)
	api := handlers.NewHandler(services, log.Named("http")).WithPollInterval(cfg.Events.PollInterval)

	srv := &server.Server{}
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(cfg.Server, api.InitRoutes()) }()
	log.Infow("server_started", "port", cfg.Server.Port, "db", cfg.DB.Path)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		if err != nil {
			log.Errorw("server_failed", "err", err)
		}
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
		return err
	}
	return nil
}
