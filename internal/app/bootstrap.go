package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teletha/cointoss-sub007/internal/engine"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/internal/execution"
	"github.com/teletha/cointoss-sub007/internal/feed"
	"github.com/teletha/cointoss-sub007/internal/infra"
	"github.com/teletha/cointoss-sub007/internal/latency"
	"github.com/teletha/cointoss-sub007/internal/simulator"
	"github.com/teletha/cointoss-sub007/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Store     *storage.EventStore
	Snapshots *storage.SnapshotManager
	Engine    *engine.Engine
	Service   execution.Service

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(cfg *infra.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

// Initialize locks workDir, opens the event store and builds the engine and execution
// service. A live session logs incoming events to the store and first recovers from
// it; a replay session only reads it.
func (b *Bootstrap) Initialize(ctx context.Context, workDir string, live bool) (err error) {
	cfg := b.Config
	slog.Info("Bootstrapping simulator...", slog.String("mode", cfg.Simulator.Mode), slog.Bool("live", live))

	event.Warmup()

	if err := infra.EnsureDir(workDir); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	// single instance per workspace
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if err := infra.ResolveStoragePaths(cfg, workDir); err != nil {
		return err
	}

	b.Store, err = storage.NewEventStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	slog.Info("EventStore initialized (WAL-mode)", slog.String("path", cfg.Storage.DBPath))

	lat, err := latency.Parse(cfg.Latency)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithMaxSeqGap(cfg.Simulator.MaxSeqGap),
		engine.WithGroupWidth(cfg.Simulator.GroupWidth),
		engine.WithSimulatorOptions(
			simulator.WithLatency(lat),
			simulator.WithExclusiveExecution(cfg.Simulator.ExclusiveExecution),
			simulator.WithLogger(slog.Default()),
		),
	}
	if live {
		b.Snapshots = storage.NewSnapshotManager(cfg.Storage.SnapshotDir)
		opts = append(opts,
			engine.WithStore(b.Store),
			engine.WithSnapshots(b.Snapshots, cfg.Storage.SnapshotEveryN, cfg.Storage.SnapshotKeep))
	}

	b.Engine, err = engine.New(cfg.Market, opts...)
	if err != nil {
		return err
	}
	if live {
		if err := b.Engine.RecoverFromWAL(ctx); err != nil {
			return err
		}
	}

	b.Service, err = execution.NewFactory(cfg).Create(b.Engine.Simulator(), b.Engine.Pair(), b.Engine.Locker())
	if err != nil {
		return err
	}

	slog.Info("Bootstrap complete",
		slog.String("run_id", b.Engine.RunID()),
		slog.Uint64("next_seq", b.Engine.NextSeq()),
		slog.String("latency", lat.String()))
	return nil
}

// StartFeed connects the configured websocket feed to the engine inbox. It returns
// nil when the feed is disabled.
func (b *Bootstrap) StartFeed(ctx context.Context) (*feed.Client, error) {
	cfg := b.Config
	if !cfg.Feed.Enabled {
		return nil, nil
	}
	if b.Engine == nil {
		return nil, errors.New("bootstrap: engine not initialized")
	}

	dec, err := feed.NewDecoder(cfg.Market.Symbol, cfg.Market.IDPadding, b.Engine.NextSeq())
	if err != nil {
		return nil, err
	}
	c := feed.NewClient(cfg.Feed.URL, dec, b.Engine.Inbox())
	c.ReadTimeout = cfg.Feed.ReadTimeout
	if cfg.Feed.Subscribe != "" {
		c.Subscribe = []byte(cfg.Feed.Subscribe)
	}
	c.Start(ctx)
	slog.Info("Feed started", slog.String("url", cfg.Feed.URL))
	return c, nil
}

// SaveSnapshot writes the engine state once more, typically on shutdown.
func (b *Bootstrap) SaveSnapshot() (string, error) {
	if b.Snapshots == nil || b.Engine == nil {
		return "", nil
	}
	return b.Snapshots.Save(b.Engine.Snapshot())
}

// Close releases the store and the workspace lock.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("Failed to close store", slog.Any("error", err))
		}
		b.Store = nil
	}
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
}
