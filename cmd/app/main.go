package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/teletha/cointoss-sub007/internal/app"
	"github.com/teletha/cointoss-sub007/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))
	infra.PrintBanner(os.Stdout, cfg)

	go func() {
		// Localhost only
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap(cfg)
	if err := bootstrap.Initialize(ctx, infra.WorkspaceDir(), true); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	eng := bootstrap.Engine
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()
	slog.InfoContext(ctx, "Engine (hot path) started")

	client, err := bootstrap.StartFeed(ctx)
	if err != nil {
		slog.Error("Failed to start feed", slog.Any("error", err))
	}
	if client != nil {
		defer client.Stop()
	}

	slog.InfoContext(ctx, "Simulator running. Press Ctrl+C to exit.",
		slog.String("mode", cfg.Simulator.Mode),
		slog.String("symbol", cfg.Market.Symbol))

	<-done
	slog.Info("Shutting down gracefully...")

	eng.Flush()
	if path, err := bootstrap.SaveSnapshot(); err != nil {
		slog.Error("Final snapshot failed", slog.Any("error", err))
	} else if path != "" {
		slog.Info("Final snapshot saved", slog.String("path", path))
	}

	orders, err := bootstrap.Service.Orders(context.Background())
	if err == nil {
		slog.Info("Session summary",
			slog.Any("stats", eng.Stats()),
			slog.Int("orders", len(orders)),
			slog.Uint64("next_seq", eng.NextSeq()))
	}
}
