package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/delordemm1/routine-notifier/internal/cache"
	"github.com/delordemm1/routine-notifier/internal/config"
	"github.com/delordemm1/routine-notifier/internal/database"
	"github.com/delordemm1/routine-notifier/internal/modules/notify"
	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/queue"
	"github.com/delordemm1/routine-notifier/internal/schedule"
	"github.com/delordemm1/routine-notifier/internal/server"
)

// Options for the CLI.
type Options struct {
	Port int `help:"Port to listen on (defaults to SERVER_PORT)" short:"p"`
}

// scanTimeout keeps one scan inside its one-minute tick.
const scanTimeout = 50 * time.Second

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		cfg := config.Load()
		if cfg == nil {
			logger.Error("failed to load configuration")
			os.Exit(1)
		}
		logger.Info("configuration loaded successfully", "env", cfg.Server.Env)

		// --- Database & Cache ---
		dbPool := database.NewPostgresPool(cfg.Database.URL)
		if dbPool == nil {
			logger.Error("failed to connect to postgres")
			os.Exit(1)
		}
		logger.Info("successfully connected to postgres database")
		redisClient := cache.NewRedisClient(cfg.Redis.URL)

		// --- Delivery ---
		var (
			publisher notify.Publisher
			producer  *queue.Producer
		)
		switch cfg.Delivery.Mode {
		case config.DeliveryDirect:
			ctx := context.Background()
			emailSender, err := notification.NewEmailSenderFromConfig(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to configure email sender", "error", err)
				os.Exit(1)
			}
			smsSender, err := notification.NewSMSSenderFromConfig(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to configure sms sender", "error", err)
				os.Exit(1)
			}
			publisher = notification.NewDirectPublisher(notification.NewService(logger, emailSender, smsSender))
		case config.DeliveryKafka:
			producer = queue.NewProducer(queue.ProducerConfig{
				Brokers:  cfg.Kafka.BrokerList(),
				Topic:    cfg.Kafka.Topic,
				ClientID: cfg.Kafka.ClientID,
				Backoff: queue.Backoff{
					Initial: cfg.Kafka.RetryInitial,
					Max:     cfg.Kafka.RetryMax,
					Factor:  2,
					Retries: cfg.Kafka.Retries,
				},
			}, logger)
			publisher = producer
		default:
			logger.Error("unknown delivery mode", "mode", cfg.Delivery.Mode)
			os.Exit(1)
		}
		logger.Info("notification delivery configured", "mode", cfg.Delivery.Mode)

		// --- Module Initialization (Bottom-Up) ---
		routineRepo := routine.NewRepository(dbPool)
		notifyRepo := notify.NewRepository(dbPool)
		notifyService := notify.NewService(&notify.Config{
			Repo:     notifyRepo,
			Routines: routineRepo,
			Logger:   logger,
		})
		dispatcher := notify.NewDispatcher(&notify.DispatcherConfig{
			Repo:      notifyRepo,
			Routines:  routineRepo,
			Publisher: publisher,
			Logger:    logger,
		})

		scannerCfg := &notify.ScannerConfig{
			Repo:       notifyRepo,
			Routines:   routineRepo,
			Dispatcher: dispatcher,
			Publisher:  publisher,
			Location:   cfg.Scheduler.Location(),
			Logger:     logger,
		}
		if redisClient != nil {
			scannerCfg.Lock = schedule.NewRedisLock(redisClient, schedule.ScanLockKey, scanTimeout)
		}
		if cfg.Scheduler.Dedupe {
			if redisClient != nil {
				scannerCfg.Ledger = schedule.NewRedisLedger(redisClient)
			} else {
				scannerCfg.Ledger = schedule.NewMemoryLedger()
			}
		}
		scanner := notify.NewScanner(scannerCfg)

		var runner *schedule.Runner
		if cfg.Scheduler.Enabled {
			r, err := schedule.NewRunner(cfg.Scheduler.Spec, cfg.Scheduler.Location(), scanTimeout, func(ctx context.Context) error {
				_, err := scanner.Scan(ctx)
				if errors.Is(err, notify.ErrScanInProgress) {
					return nil
				}
				return err
			}, logger)
			if err != nil {
				logger.Error("invalid scheduler spec", "spec", cfg.Scheduler.Spec, "error", err)
				os.Exit(1)
			}
			runner = r
		}

		router := server.New(cfg, logger, server.Deps{
			Notify:     notifyService,
			Dispatcher: dispatcher,
			Scanner:    scanner,
		})

		port := options.Port
		if port == 0 {
			port, _ = strconv.Atoi(cfg.Server.Port)
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			if producer != nil {
				if err := producer.Connect(context.Background()); err != nil {
					logger.Warn("queue producer not connected at startup, will retry on first scan", "error", err)
				}
			}
			if runner != nil {
				runner.Start()
			}
			logger.Info(fmt.Sprintf("Starting server on port %d...", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server failed to start", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if runner != nil {
				runner.Stop(ctx)
			}
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("server shutdown failed", "error", err)
			}
			if producer != nil {
				producer.Disconnect(ctx)
			}
			if redisClient != nil {
				_ = redisClient.Close()
			}
			dbPool.Close()
		})
	})
	cli.Run()
}
