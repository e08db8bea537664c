package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/mirador-sla/internal/api"
	"github.com/platformbuilds/mirador-sla/internal/breach"
	"github.com/platformbuilds/mirador-sla/internal/config"
	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/services"
	"github.com/platformbuilds/mirador-sla/internal/storage/breachstore"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting MIRADOR-SLA", "environment", cfg.Environment)

	// Valkey caching; degrade to the in-memory fallback when unavailable
	var valkey cache.Valkey
	if cfg.Cache.Enabled {
		valkey, err = cache.NewValkeySingle(cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second, logger)
		if err != nil {
			logger.Warn("Failed to connect to Valkey, using in-memory fallback", "error", err)
			valkey = cache.NewNoopValkeyCache(logger)
		}
	} else {
		valkey = cache.NewNoopValkeyCache(logger)
	}

	// Breach store backend
	var store breachstore.Store
	switch cfg.Storage.Backend {
	case "postgres":
		store, err = breachstore.NewPostgresStore(cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatal("Failed to initialize postgres breach store", "error", err)
		}
		logger.Info("Postgres breach store initialized")
	default:
		store = breachstore.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(logger)
	defer bus.Close()

	ledger, err := breach.NewLedger(ctx, store, bus, logger)
	if err != nil {
		logger.Fatal("Failed to initialize breach ledger", "error", err)
	}

	registry := services.NewSLARegistryService(valkey, logger)

	dispatcher := breach.NewDispatcher(ledger, bus, logger,
		cfg.Notifications.MaxAttempts, cfg.Notifications.RetryDelay, cfg.Notifications.DrainInterval)
	if cfg.Notifications.Email.Enabled {
		dispatcher.RegisterProvider("email", breach.NewEmailProvider(cfg.Notifications.Email, logger))
	}
	if cfg.Notifications.Slack.Enabled {
		dispatcher.RegisterProvider("slack", breach.NewSlackProvider(cfg.Notifications.Slack, logger))
	}
	if cfg.Notifications.Webhook.Enabled {
		dispatcher.RegisterProvider("webhook", breach.NewWebhookProvider(cfg.Notifications.Webhook, logger))
	}

	escalator := breach.NewEscalator(ledger,
		breach.NewStaticEscalationPolicy(cfg.Escalation.Contacts), cfg.Escalation, bus, logger)
	analyzer := breach.NewAnalyzer(ledger, bus, cfg.Patterns.Window, logger)

	monitor := services.NewSLAMonitorService(registry, ledger, dispatcher, escalator, analyzer, bus,
		cfg.Monitor.MeasurementWindow, logger)
	monitor.Start(ctx)

	compliance := services.NewComplianceService(registry, ledger, valkey,
		cfg.Compliance.Window, cfg.Compliance.CacheTTL, logger)
	compliance.Start(ctx, cfg.Compliance.RefreshInterval)

	// Optional NATS event sink
	if cfg.NATS.Enabled {
		publisher, err := services.NewEventPublisherService(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without event publishing", "error", err)
		} else {
			publisher.Start(ctx, bus)
			defer publisher.Close()
		}
	}

	apiServer := api.NewServer(cfg, logger, valkey, registry, monitor, compliance, bus)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	compliance.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		logger.Error("Monitor shutdown failed", "error", err)
	}

	logger.Info("MIRADOR-SLA shutdown complete")
}
