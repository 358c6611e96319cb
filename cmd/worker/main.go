package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/delordemm1/routine-notifier/internal/config"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/queue"
)

// Options for the CLI.
type Options struct {
	MetricsPort int `help:"Port serving /metrics and /health" short:"m" default:"9091"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		cfg := config.Load()
		if cfg == nil {
			logger.Error("failed to load configuration")
			os.Exit(1)
		}

		// --- Senders ---
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
		delivery := notification.NewService(logger, emailSender, smsSender)

		// --- Queue ---
		brokers := cfg.Kafka.BrokerList()
		retryWriter := queue.NewWriter(brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID)
		dlqWriter := queue.NewWriter(brokers, cfg.Kafka.DLQTopic, cfg.Kafka.ClientID)
		reader := queue.NewReader(brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)

		consumer := queue.NewConsumer(reader, &queue.Processor{
			MaxAttempts: cfg.Kafka.MaxAttempts,
			BaseBackoff: cfg.Kafka.BaseBackoff,
			Deliver: func(ctx context.Context, p queue.Payload) error {
				return delivery.Deliver(ctx, notification.MessageFromPayload(p))
			},
			Republish: func(ctx context.Context, msg kafka.Message) error {
				return retryWriter.WriteMessages(ctx, msg)
			},
			SendToDLQ: func(ctx context.Context, msg kafka.Message) error {
				return dlqWriter.WriteMessages(ctx, msg)
			},
		}, logger)

		router := chi.NewMux()
		router.Handle("/metrics", promhttp.Handler())
		router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", options.MetricsPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", "error", err)
				}
			}()

			logger.Info("notification worker started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID, "email", emailSender.Configured(), "sms", smsSender.Configured())
			err := consumer.Run(runCtx)
			close(done)
			if err != nil {
				logger.Error("consumer stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			cancel()
			<-done
			ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			_ = srv.Shutdown(ctx)
			if err := retryWriter.Close(); err != nil {
				logger.Error("failed to close retry writer", "error", err)
			}
			if err := dlqWriter.Close(); err != nil {
				logger.Error("failed to close dlq writer", "error", err)
			}
			logger.Info("notification worker stopped")
		})
	})
	cli.Run()
}
