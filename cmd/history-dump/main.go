// Command history-dump prints the history of a channel as JSON lines and,
// with -follow, keeps printing the history whenever it changes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-history/internal/config"
	"channel-history/internal/domain"
	"channel-history/internal/history"
	"channel-history/internal/observability"
	"channel-history/internal/parser"
	"channel-history/internal/session"
)

type options struct {
	channel  string
	day      string
	count    int
	follow   bool
	targeted bool
}

func main() {
	var opts options
	flag.StringVar(&opts.channel, "channel", "", "channel id (required)")
	flag.StringVar(&opts.day, "day", "", "only messages of this UTC day, YYYY-MM-DD")
	flag.IntVar(&opts.count, "count", domain.NoCount, "maximum number of messages")
	flag.BoolVar(&opts.follow, "follow", false, "keep the history updated from live events")
	flag.BoolVar(&opts.targeted, "targeted", false, "apply reactions to the message they name")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("history dump failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the history
	observability.InitLoggerTo(os.Stderr, cfg.LogLevel, "text")

	q, err := buildQuery(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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

	service := history.NewService(sess, parser.NewSlackDecoder())

	if !opts.follow {
		messages, err := service.Fetch(ctx, q)
		if err != nil {
			return err
		}
		return writeMessages(os.Stdout, messages)
	}

	if err := sess.Connect(ctx); err != nil {
		return err
	}

	changes := make(chan domain.Change, 64)
	trackOpts := []history.TrackOption{
		history.WithChannelScope(),
		history.WithObserver(forwardChanges(ctx, changes)),
	}
	if opts.targeted {
		trackOpts = append(trackOpts, history.WithTargetedReactions())
	}

	tracked, err := service.FetchUpdating(ctx, q, trackOpts...)
	if err != nil {
		return err
	}
	defer tracked.Close()

	if err := writeMessages(os.Stdout, tracked.Messages()); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-changes:
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
	}
}

// forwardChanges returns an observer that hands every change to out. It
// blocks the event dispatch while out is full and gives up once ctx is done.
func forwardChanges(ctx context.Context, out chan<- domain.Change) func(domain.Change) {
	return func(c domain.Change) {
		select {
		case out <- c:
		case <-ctx.Done():
		}
	}
}

func buildQuery(opts options) (domain.Query, error) {
	var qopts []domain.QueryOption
	if opts.day != "" {
		day, err := time.Parse("2006-01-02", opts.day)
		if err != nil {
			return domain.Query{}, fmt.Errorf("%w: -day must be formatted as YYYY-MM-DD", domain.ErrInvalidInput)
		}
		qopts = append(qopts, domain.OnDay(day))
	}
	if opts.count != domain.NoCount {
		if opts.count < 0 {
			return domain.Query{}, fmt.Errorf("%w: -count must not be negative", domain.ErrInvalidInput)
		}
		qopts = append(qopts, domain.Limit(opts.count))
	}

	q := domain.NewQuery(opts.channel, qopts...)
	return q, q.Validate()
}

func writeMessages(w io.Writer, messages []*domain.Message) error {
	enc := json.NewEncoder(w)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	return nil
}
