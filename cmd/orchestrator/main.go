// Command orchestrator runs story graph instances behind an HTTP API, with
// optional MQTT transport and Postgres persistence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/StoryEngine/internal/api"
	"github.com/AaronLay10/StoryEngine/internal/config"
	"github.com/AaronLay10/StoryEngine/internal/events"
	"github.com/AaronLay10/StoryEngine/internal/mqtt"
	"github.com/AaronLay10/StoryEngine/internal/observe"
	"github.com/AaronLay10/StoryEngine/internal/orchestrator"
	"github.com/AaronLay10/StoryEngine/internal/storage/postgres"
	"github.com/AaronLay10/StoryEngine/internal/story"
	"github.com/AaronLay10/StoryEngine/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		return 1
	}
	logger := config.NewLogger(cfg.Service.LogLevel, cfg.Service.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		return 1
	}

	if err := serve(ctx, cfg, secrets, logger); err != nil {
		logger.Error("orchestrator failed", "err", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, secrets config.Secrets, logger *slog.Logger) error {
	service := cfg.ServiceName()

	metrics, shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    service,
		ServiceVersion: version.Version,
	})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			logger.Warn("metrics shutdown failed", "err", err)
		}
	}()

	reg := story.DefaultRegistry()
	bus := events.NewBus(events.WithLogger(logger))

	var (
		saves  orchestrator.SaveStore  = orchestrator.NewMemoryStore()
		graphs orchestrator.GraphStore = orchestrator.NewMemoryGraphStore(reg)
		checks []api.Check
	)

	if cfg.Postgres.Enabled {
		pg, err := postgres.Open(ctx, postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.PostgresPort(),
			User:     cfg.Postgres.User,
			Password: secrets.PostgresPassword,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}, postgres.WithRegistry(reg), postgres.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer pg.Close()
		bus.SetAppender(pg)
		saves, graphs = pg, pg
		checks = append(checks, api.Check{Name: "postgres", Probe: pg.Ping})
	}

	alerter := api.NewAlerter(api.AlertConfig{
		WebhookURL:          cfg.Alerts.WebhookURL,
		Service:             service,
		MQTTDisconnectDelay: cfg.MQTTAlertDelay(),
		Logger:              logger,
	})
	defer alerter.Close()
	alerter.Watch(bus)

	hostname, _ := os.Hostname()
	_, _ = bus.Emit("info", "system.startup", "orchestrator starting", map[string]any{
		"service":  service,
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	var mqttClient *mqtt.Client
	mcfg := orchestrator.ManagerConfig{
		Logger:          logger,
		Bus:             bus,
		Metrics:         metrics,
		Store:           saves,
		TickInterval:    cfg.TickInterval(),
		MaxStepsPerTick: cfg.MaxStepsPerTick(),
	}
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(mqtt.Config{
			URL:      cfg.MQTTURL(),
			ClientID: cfg.MQTTClientID(),
			Bus:      bus,
			Logger:   logger,
		})
		mcfg.Sinks = mqtt.NewEffectPublisher(mqttClient, cfg.TopicPrefix()).Sink
		checks = append(checks, api.Check{
			Name:     "mqtt",
			Optional: true,
			Probe: func(context.Context) error {
				if !mqttClient.IsConnected() {
					return mqtt.ErrNotConnected
				}
				return nil
			},
		})
	}

	manager := orchestrator.NewManager(mcfg)
	defer manager.Close()

	if mqttClient != nil {
		bridge := mqtt.NewInputBridge(mqttClient, manager, cfg.TopicPrefix(), bus, logger)
		if err := bridge.Start(); err != nil {
			return fmt.Errorf("subscribe mqtt input: %w", err)
		}
		// The client keeps retrying in the background after a timeout.
		if err := mqttClient.Connect(); err != nil {
			logger.Warn("mqtt connect failed, retrying", "url", cfg.MQTTURL(), "err", err)
		}
		defer mqttClient.Disconnect()
	}

	if dir := cfg.Engine.GraphsDir; dir != "" {
		n, err := loadGraphDir(ctx, dir, graphs, reg, logger)
		if err != nil {
			return fmt.Errorf("load graphs: %w", err)
		}
		logger.Info("graphs loaded", "dir", dir, "count", n)
	}

	tlsCfg, err := api.TLSFiles{CertFile: cfg.HTTP.TLSCert, KeyFile: cfg.HTTP.TLSKey}.Load()
	if err != nil {
		return fmt.Errorf("load tls: %w", err)
	}

	auth := api.NewAuth(secrets)
	if !auth.Enabled() {
		logger.Warn("api authentication disabled", "hint", "set STORY_ADMIN_USER and STORY_ADMIN_PASS")
	}

	srv := api.NewServer(api.Config{
		Engine:   manager,
		Graphs:   graphs,
		Bus:      bus,
		Registry: reg,
		Auth:     auth,
		Metrics:  metrics,
		Checks:   checks,
		Service:  service,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.HTTPPort()), tlsCfg)
	})
	err = g.Wait()

	_, _ = bus.Emit("info", "system.shutdown", "orchestrator stopping", map[string]any{
		"service":   service,
		"instances": len(manager.IDs()),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		_, _ = bus.Emit("error", "system.error", err.Error(), nil)
		return err
	}
	return nil
}
