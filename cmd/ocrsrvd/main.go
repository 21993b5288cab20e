package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"ocrup/internal/config"
	"ocrup/internal/logger"
	"ocrup/internal/server"
)

const (
	shutdownTimeout = 30 * time.Second
	apiBasePath     = "/api"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	logger.SetupDefault(cfg.Logger)

	slog.Debug("server config", "cfg", cfg)

	engine := server.NewTesseractEngine(cfg.Server.OCRLangs)
	srv, err := server.New(cfg.Server, engine)
	if err != nil {
		log.Fatalf("create server failed: %v", err)
	}
	defer srv.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(logger.HTTPLogging(slog.Default()))
	srv.Register(e, apiBasePath)

	done := make(chan int)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		s := <-c
		slog.Info("shutdown by signal", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := e.Shutdown(ctx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}

		close(done)
	}()

	slog.Info("server startup", "addr", cfg.Server.Addr)
	if err := e.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	os.Exit(<-done)
}
