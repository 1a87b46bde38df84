package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/app"
	"github.com/yourorg/poi-engine/internal/config"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/refresh"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(rootCtx, cfg, logr.Logger)
	if err != nil {
		logr.Fatal("failed to open backends", zap.Error(err))
	}
	defer a.Close()

	go a.Invalidator().Run(rootCtx)

	queue := refresh.New(256, 1, func(ctx context.Context, j refresh.Job) error {
		_, err := a.Batch.AnalyzeOne(ctx, j.PropertyID)
		return err
	}, refresh.WithLogger(logr.Named("refresh")))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      logger.Middleware(logr.Logger, BuildRouter(rootCtx, a, queue)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("poi-engine listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	queue.Close()
	logr.Info("server exited gracefully")
}
