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

	"battery_dashboard/internal/config"
	"battery_dashboard/internal/devicesim"
	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default configs/config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Get(cfg.Logging.Level, cfg.Logging.Format).Named("devicesim")
	defer func() { _ = log.Sync() }()

	mode, ok := models.ParseMode(cfg.Sim.Mode)
	if !ok {
		log.Fatalw("invalid sim.mode", "mode", cfg.Sim.Mode)
	}
	sim := devicesim.New(devicesim.Config{
		InitialPercent: cfg.Sim.InitialPercent,
		Connected:      cfg.Sim.Connected,
		Mode:           mode,
		AutoEnabled:    cfg.Sim.AutoEnabled,
		LowThreshold:   cfg.Sim.LowThreshold,
		FullThreshold:  cfg.Sim.FullThreshold,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sim.Run(ctx, cfg.Sim.Tick)

	srv := &server.Server{WriteTimeout: cfg.Server.WriteTimeout}
	go func() {
		log.Infow("http_listening", "port", cfg.Sim.Port)
		if err := srv.Run(cfg.Sim.Port, devicesim.NewHandler(sim, log).InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down simulator...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
