// backend/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/collector"
	"github.com/gewnthar/density/backend/config"
	"github.com/gewnthar/density/backend/database"
	"github.com/gewnthar/density/backend/handlers"
	"github.com/gewnthar/density/backend/logger"
	"github.com/gewnthar/density/backend/services"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, "density-backend")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zl.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))

	densityStore := database.NewDensityStore(db, cfg.Parents, zl)
	oauthStore := database.NewOAuthStore(db, zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := collector.NewFeedClient(cfg.Feed, zl)
	poller := services.NewPollService(feed, densityStore, cfg.Feed.PollInterval, zl)
	go poller.Run(ctx)

	mux := http.NewServeMux()
	handlers.NewDensityHandler(densityStore, oauthStore, zl).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}
	go func() {
		zl.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
}
