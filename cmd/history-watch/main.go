// Command history-watch logs the tracked history changes published by the
// history server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-history/internal/config"
	"channel-history/internal/domain"
	"channel-history/internal/messaging"
	"channel-history/internal/observability"
)

func main() {
	binding := flag.String("binding", "history.#", "routing key pattern to consume, e.g. history.reaction_*")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.RabbitMQURL == "" {
		slog.Error("RABBITMQ_URL must be set")
		os.Exit(1)
	}

	slog.Info("starting history watcher", slog.String("binding", *binding))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	rmqCancel()
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	consumer := messaging.NewChangeConsumer(rmq, *binding)
	if err := consumer.Start(ctx, logChange); err != nil {
		slog.Error("failed to start consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("history watcher stopped")
}

func logChange(c domain.Change) {
	attrs := []any{
		slog.String("tracked_id", c.TrackedID),
		slog.String("channel_id", c.ChannelID),
		slog.String("kind", string(c.Kind)),
		slog.String("message_ts", c.MessageTimestamp),
		slog.Time("at", c.At),
	}
	if c.Emoji != "" {
		attrs = append(attrs, slog.String("emoji", c.Emoji), slog.Int("count", c.Count))
	}
	slog.Info("history changed", attrs...)
}
