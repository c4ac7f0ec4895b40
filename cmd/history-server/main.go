package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-history/internal/config"
	"channel-history/internal/handler"
	"channel-history/internal/history"
	"channel-history/internal/messaging"
	"channel-history/internal/observability"
	"channel-history/internal/parser"
	"channel-history/internal/repository/postgres"
	"channel-history/internal/session"
)

const reconnectInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("history server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting history server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(session.Options{
		APIURL:         cfg.SlackAPIURL,
		Token:          cfg.SlackToken,
		RequestTimeout: cfg.ReplyTimeout,
		CommandRate:    cfg.CommandRate,
		CommandBurst:   cfg.CommandBurst,
		EventQueueSize: cfg.EventQueueSize,
	}, parser.NewSlackDecoder())
	defer sess.Close()

	connCtx, connCancel := context.WithTimeout(ctx, cfg.ReplyTimeout)
	if err := sess.Connect(connCtx); err != nil {
		slog.Warn("rtm connect failed, tracked histories stay static until reconnected",
			slog.String("error", err.Error()))
	}
	connCancel()
	go keepConnected(ctx, sess)

	ready := handler.ReadyChecks{Session: sess}

	var archive handler.SnapshotArchive
	if cfg.DatabaseURL != "" {
		db, err := openArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		archive = postgres.NewSnapshotRepository(db)
		ready.DB = db
	}

	var publisher handler.ChangePublisher
	if cfg.RabbitMQURL != "" {
		rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		rmqCancel()
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer rmq.Close()
		publisher = rmq
		ready.Broker = rmq
		slog.Info("publishing tracked history changes", slog.String("exchange", messaging.ChangesExchange))
	}

	registry := history.NewRegistry()
	defer registry.CloseAll()

	service := history.NewService(sess, parser.NewSlackDecoder())
	historyHandler := handler.NewHistoryHandler(service, registry, archive, publisher)

	router, err := newRouter(ctx, routerConfig{
		History:           historyHandler,
		Ready:             ready,
		HTTPRate:          cfg.HTTPRate,
		HTTPBurst:         cfg.HTTPBurst,
		Validation:        cfg.OpenAPIValidation,
		ValidateResponses: !cfg.IsProduction(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ReplyTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("history server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("server stopped gracefully")
	return nil
}

func openArchive(ctx context.Context, url string) (*sql.DB, error) {
	db, err := config.NewPostgresConnection(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("snapshot archive ready")
	return db, nil
}

// keepConnected reopens the RTM stream whenever it drops
func keepConnected(ctx context.Context, sess *session.Session) {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sess.IsConnected() {
				continue
			}
			connCtx, cancel := context.WithTimeout(ctx, reconnectInterval)
			if err := sess.Connect(connCtx); err != nil {
				slog.Warn("rtm reconnect failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}
