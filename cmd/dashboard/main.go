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

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/config"
	"battery_dashboard/internal/console"
	"battery_dashboard/internal/handlers"
	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/metrics"
	"battery_dashboard/internal/models"
	"battery_dashboard/internal/notify"
	"battery_dashboard/internal/repository"
	"battery_dashboard/internal/server"
	"battery_dashboard/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default configs/config.yml)")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	withConsole := flag.Bool("console", false, "start the interactive console")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}
	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error rendering config: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	// init logger
	log := logger.Get(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	// wire dependencies
	repos := repository.NewRepository(models.RelayStatus{
		AutoShutoffEnabled:   cfg.Relay.AutoShutoffEnabled,
		AutoShutoffThreshold: cfg.Relay.AutoShutoffThreshold,
	}, repository.NewNotifier(0))
	device := client.New(cfg.Device.BaseURL, cfg.Device.Timeout)
	services, err := service.NewService(repos, device, service.Options{
		TelemetryInterval: cfg.Poll.TelemetryInterval,
		LogsInterval:      cfg.Poll.LogsInterval,
		MaxBackoff:        cfg.Poll.MaxBackoff,
		CommandTimeout:    cfg.Relay.CommandTimeout,
		FullThreshold:     cfg.Relay.FullThreshold,
		MaxPending:        cfg.Relay.MaxPending,
		AlwaysPoll:        cfg.Poll.Always,
	}, service.Deps{Log: log.Named("core"), Metrics: met})
	if err != nil {
		log.Fatalw("failed to init service", "err", err)
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"), handlers.Options{
		Metrics:      met,
		Gatherer:     reg,
		CommandRPS:   cfg.RateLimit.RPS,
		CommandBurst: cfg.RateLimit.Burst,
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.Start(ctx)
	log.Infow("device_client_ready", "base_url", device.BaseURL(), "timeout", cfg.Device.Timeout)

	if cfg.MQTT.Enabled {
		startMirror(ctx, cfg.MQTT, services, log.Named("mqtt"))
	}

	// start HTTP server
	srv := &server.Server{WriteTimeout: cfg.Server.WriteTimeout}
	runHTTPServer(srv, cfg.Server.Port, apiHandler, log)

	if *withConsole || cfg.Console.Enabled {
		con := console.New(services, os.Stdout, cfg.Console.Prompt)
		go func() {
			if err := con.Run(ctx, cancel); err != nil {
				log.Errorw("console_failed", "err", err)
			}
		}()
	}

	// graceful shutdown
	waitForShutdown(ctx, cancel, srv, log)
}

// startMirror connects to the broker and mirrors state changes until ctx
// is done. A broker that cannot be reached disables the mirror only.
func startMirror(ctx context.Context, cfg config.MQTTConfig, services *service.Service, log *logger.Logger) {
	pub, err := notify.DialMQTT(notify.MQTTConfig{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
	}, log)
	if err != nil {
		log.Errorw("mqtt_disabled", "broker", cfg.Broker, "err", err)
		return
	}
	mirror := notify.NewMirror(pub, services.Notifier, services, cfg.TopicPrefix, cfg.QoS, log)
	go func() {
		defer pub.Close()
		mirror.Run(ctx)
	}()
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until a termination signal or an internal cancel
// (console EXIT), then shuts everything down.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Infow("shutting down server...")

	// stop pollers, sender and event loop
	cancel()

	// allow in-flight requests to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
