package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"smartdorm/pkg/config"
	"smartdorm/pkg/kafka"
	kafka_config "smartdorm/pkg/kafka/config"
	kafka_middleware "smartdorm/pkg/kafka/middleware"
	"smartdorm/pkg/notify"
)

const ServiceName = "notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting notification delivery service")

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.Log, cfg.NotifyTopic, cfg.NotifyGroupID, cfg.NotifyDLQTopic, notify.Deliver(initSender(cfg)))
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	cfg.Log.Info("Shutdown signal received, closing consumer")
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notification delivery service stopped")
}

func initSender(cfg *config.Config) notify.Sender {
	if !cfg.TwilioConfigured() {
		cfg.Log.Warn("Twilio not configured, notifications are written to the log")
		return notify.NewLogSender(cfg.Log)
	}

	cfg.Log.Info("Delivering notifications through Twilio", "channel", cfg.TwilioChannel)
	return notify.NewTwilioSender(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFromNumber,
		Channel:    cfg.TwilioChannel,
	}, cfg.Log)
}
