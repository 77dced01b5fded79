package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunsworth/cardbox/internal/api"
	"github.com/arunsworth/cardbox/internal/card"
	"github.com/arunsworth/cardbox/internal/config"
	"github.com/arunsworth/cardbox/internal/db"
	"github.com/arunsworth/cardbox/internal/deck"
	"github.com/arunsworth/cardbox/internal/eventlog"
	"github.com/arunsworth/cardbox/internal/logger"
	"github.com/arunsworth/cardbox/internal/media"
	"github.com/arunsworth/cardbox/internal/scheduler"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
	)
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("Cardbox Server Starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	events := eventlog.New(database.DB)
	mediaStore := media.New(database.DB)
	cards := card.NewProjection(events, mediaStore, scheduler.SM2)
	decks := deck.NewEngine(database.DB, deck.WithInvalidator(cards.InvalidateAll))

	srv := api.NewServer(cards, decks)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Info("===========================================")
	log.Info("Cardbox Server Stopped")
	log.Info("===========================================")
}
