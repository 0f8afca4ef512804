package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/checkout-core/internal/infrastructure/kafka"
	"github.com/example/checkout-core/internal/notification"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Configuration from environment variables
	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "checkout-events")
	consumerGroup := getEnv("CONSUMER_GROUP", "checkout-notifier")

	logger.Info("starting notifier",
		zap.Strings("brokers", kafkaBrokers),
		zap.String("topic", kafkaTopic),
		zap.String("group", consumerGroup))

	handler := notification.NewHandler(logger)

	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, consumerGroup).WithLogger(logger)
	defer consumer.Close()

	go func() {
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			if ctx.Err() == nil {
				logger.Error("consumer error", zap.Error(err))
			}
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
