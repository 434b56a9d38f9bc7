package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rtheil/hrvstream/internal/server"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", "127.0.0.1:8765", "HTTP listen address")
	logsDir := flag.String("logs-dir", "logs", "Directory for session data files")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := server.New(*logsDir)
	defer s.Close()

	// WriteTimeout stays zero: WebSocket connections are long-lived.
	srv := &http.Server{
		Addr:              *addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("graph server starting", "addr", *addr)
		slog.Info("this process must receive score records on stdin",
			"example", "hrv-sim | hrv-engine | hrv-server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// The pipeline feeds stdin; keep serving connected clients after EOF so
	// the chart survives an upstream restart.
	go func() {
		if err := s.Consume(ctx, os.Stdin); err != nil {
			slog.Warn("stdin consumer stopped", "err", err)
			return
		}
		slog.Info("pipeline input closed; still serving")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	slog.Info("goodbye")
}
