package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/itsDrac/e-auc-bidding/internal/cron"
	"github.com/itsDrac/e-auc-bidding/internal/dependency"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

const closerTimeout = 30 * time.Second

type Server struct {
	HTTPServer   *http.Server
	Dependencies *dependency.Dependencies
}

func New(cfg config.Config, log *logger.Logger) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dependencies, err := dependency.NewDependencies(ctx, cfg, log)
	if err != nil {
		slog.Error("[Dependency] failed to initialize -> ", "error", err.Error())
		panic(err)
	}

	serv := &Server{
		Dependencies: dependencies,
	}

	// builds router
	mux := serv.routes()
	serv.HTTPServer = &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: websocket connections are long lived.
		IdleTimeout: 120 * time.Second,
	}
	return serv
}

func (s *Server) Run() error {
	slog.Info("[SERVER] running -> ", "address", s.HTTPServer.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := s.Dependencies

	// Background workers share one context and stop together.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := deps.Bus.Run(workCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("[Events] bus stopped -> ", "error", err.Error())
		}
	}()
	go func() {
		defer wg.Done()
		if err := deps.Bridge.Run(workCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("[Events] bridge stopped -> ", "error", err.Error())
		}
	}()

	runner := cron.New(workCtx, deps.Log)
	if _, err := runner.Add(deps.Config.LotCloserSchedule, cron.CloseJob(deps.Services.Lifecycle.CloseExpiredLots, closerTimeout, deps.Log)); err != nil {
		slog.Error("[Cron] invalid lot closer schedule -> ", "schedule", deps.Config.LotCloserSchedule, "error", err.Error())
		return err
	}
	runner.Start()

	// Run Server in the background
	go func() {
		if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[SERVER] failed to serve -> ", "error", err.Error())
			stop()
		}
	}()

	// Listen for the interrupt signal
	<-ctx.Done()
	slog.Info("[SERVER] shutdown signal received")

	// create shutdown context with 30 - sec timeout
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop http server
	if err := s.HTTPServer.Shutdown(shutCtx); err != nil {
		slog.Error("[SERVER] shutdown failed -> ", "error", err.Error())
		return err
	}

	// stop closer, bus and bridge
	runner.Stop()
	cancelWork()
	wg.Wait()

	if err := deps.Backbone.Close(); err != nil {
		slog.Error("[Events] backbone close failed -> ", "error", err.Error())
	}

	// close cache
	if err := deps.Cache.Close(); err != nil {
		slog.Error("[Cache] close failed ->", "error", err.Error())
		return err
	}

	// close db
	if err := deps.DB.Close(shutCtx); err != nil {
		slog.Error("[DB] close failed -> ", "error", err.Error())
		return err
	}

	slog.Info("[SERVER] shutdown complete.")
	return nil
}
