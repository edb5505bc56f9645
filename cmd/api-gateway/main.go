package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-gradebook-api/api/swagger"
	"github.com/noah-isme/sma-gradebook-api/internal/app"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	"github.com/noah-isme/sma-gradebook-api/pkg/logger"
)

// @title SMA Gradebook API
// @version 1.0.0
// @description Grade entry, final grade calculation and ranked class recaps
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gradebook, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise gradebook", zap.Error(err))
	}
	defer func() {
		if err := gradebook.Close(); err != nil {
			logr.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           gradebook.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
