package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teletha/cointoss-sub007/backtest"
	"github.com/teletha/cointoss-sub007/internal/app"
	"github.com/teletha/cointoss-sub007/internal/infra"
)

func main() {
	configPath := flag.String("config", "", "config file (default: resolved like the app)")
	workDir := flag.String("workdir", "", "workspace holding the event log (default: app workspace)")
	dbPath := flag.String("db", "", "event log to replay, overrides storage.db_path")
	importJSON := flag.String("import", "", "append a JSON-lines feed recording to the log before replaying")
	importCSV := flag.String("candles", "", "append OHLCV candles (mills,open,high,low,close,volume) before replaying")
	span := flag.Duration("span", time.Minute, "duration of one candle")
	ordersPath := flag.String("orders", "", "YAML list of orders to place during the replay")
	out := flag.String("out", "", "write the JSON report here instead of stdout")
	flag.Parse()

	if err := run(*configPath, *workDir, *dbPath, *importJSON, *importCSV, *span, *ordersPath, *out); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, workDir, dbPath, importJSON, importCSV string, span time.Duration, ordersPath, out string) error {
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if workDir == "" {
		workDir = infra.WorkspaceDir()
	}
	slog.SetDefault(infra.NewLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := app.NewBootstrap(cfg)
	if err := b.Initialize(ctx, workDir, false); err != nil {
		return err
	}
	defer b.Close()

	if importJSON != "" || importCSV != "" {
		im, err := backtest.NewImporter(ctx, b.Store, cfg.Market)
		if err != nil {
			return err
		}
		if err := importFile(importJSON, func(f *os.File) error { return im.JSONLines(ctx, f) }); err != nil {
			return err
		}
		if err := importFile(importCSV, func(f *os.File) error { return im.Candles(ctx, f, span) }); err != nil {
			return err
		}
		slog.Info("Import complete", slog.Int("events", im.Total()))
	}

	r := backtest.NewReplayer(b.Store)
	if ordersPath != "" {
		orders, err := backtest.LoadSchedule(ordersPath)
		if err != nil {
			return err
		}
		r.Schedule(orders...)
	}

	start := time.Now()
	rep, err := r.Run(ctx, b.Engine, b.Service)
	if err != nil {
		return err
	}
	slog.Info("Replay finished",
		slog.Uint64("events", rep.Stats.Events),
		slog.Int("fills", len(rep.Fills)),
		slog.Duration("elapsed", time.Since(start)))

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(out, data, 0644)
}

func importFile(path string, fn func(*os.File) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
