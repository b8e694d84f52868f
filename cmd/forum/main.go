package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"forum/internal/client"
	"forum/internal/config"
	"forum/internal/logging"
	"forum/internal/model"
	"forum/internal/store"
	"forum/internal/view"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Forum API base URL")
	flag.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "Topic refresh interval")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "HTTP request timeout")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	username := flag.String("user", "", "Log in as this user on start")
	password := flag.String("password", "", "Password for -user")
	metricsAddr := flag.String("metrics-addr", "", "Serve client metrics on this address")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Logs go to stderr so they do not mix with the screen.
	logger := logging.New(cfg.LogLevel, logrus.InfoLevel, os.Stderr)
	if cfg.LogstashAddr != "" {
		closer, err := logging.ShipToLogstash(logger, cfg.LogstashAddr, "forum")
		if err != nil {
			logger.WithError(err).Warn("Log shipping disabled")
		} else {
			defer closer.Close()
		}
	}

	reg := prometheus.NewRegistry()
	metrics := client.NewMetrics(reg)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	c, err := client.New(cfg.APIURL, cfg.RequestTimeout, client.WithLogger(logger), client.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc := services{
		topics:   client.NewTopicsService(c),
		messages: client.NewMessagesService(c),
		users:    client.NewUsersService(c),
		logger:   logger,
		metrics:  metrics,
		interval: cfg.PollInterval,
		clock:    view.SystemClock{},
	}

	ev := newEvents()
	defer ev.close()
	for _, sub := range watch(svc, ev) {
		defer sub.Unsubscribe()
	}

	ui := newApp(ctx, svc, ev)
	if *username != "" {
		lines, err := login(ctx, svc.users, *username, *password)
		if err != nil {
			return err
		}
		ui.show(lines, nil)
	}

	defer ui.shutdown()

	if _, err := tea.NewProgram(ui, tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// watch turns store broadcasts, including the ones caused by the topic
// poller, into screen updates.
func watch(svc services, ev *events) []*store.Subscription {
	return []*store.Subscription{
		svc.messages.Store.Subscribe(func([]model.Message) { ev.changed() }),
		svc.topics.Store.Subscribe(func([]model.Topic) { ev.changed() }),
		svc.users.Store.Subscribe(func([]model.User) { ev.changed() }),
		svc.users.Connected.Subscribe(func(*model.User) { ev.changed() }),
	}
}
