package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"forum/internal/config"
	"forum/internal/logging"
	"forum/internal/server"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger := logging.New(cfg.LogLevel, logrus.WarnLevel, nil)
	if cfg.LogstashAddr != "" {
		closer, err := logging.ShipToLogstash(logger, cfg.LogstashAddr, "forumd")
		if err != nil {
			logger.WithError(err).Warn("Log shipping disabled")
		} else {
			defer closer.Close()
		}
	}

	db, err := server.ConnectDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}

	// The default registry also carries the Go and process collectors.
	metrics := server.InitMetrics(prometheus.DefaultRegisterer)
	api := server.NewAPI(db, server.NewSessionStore(cfg.SessionKey), logger, metrics)

	srv := &http.Server{
		Handler:      api.Router(prometheus.DefaultGatherer),
		Addr:         cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	logger.WithField("addr", cfg.Port).Warn("Server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("ListenAndServe error")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Warn("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Warn("Server exiting")
}
