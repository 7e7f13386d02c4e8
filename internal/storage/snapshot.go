package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
)

// Snapshot is a point-in-time capture of engine state, used to inspect a run or resume
// without replaying the whole log.
type Snapshot struct {
	Seq         uint64         `json:"seq"`          // last processed sequence number
	TsUnix      int64          `json:"ts"`           // wall clock, unix seconds
	VirtualTime int64          `json:"virtual_time"` // engine clock, unix milliseconds
	RunID       string         `json:"run_id"`
	Asks        []domain.Level `json:"asks"`
	Bids        []domain.Level `json:"bids"`
	Orders      []domain.Order `json:"orders"`
}

// SnapshotManager handles saving and loading snapshots.
type SnapshotManager struct {
	dir string
}

// NewSnapshotManager stores snapshot files under dir.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir}
}

// Save writes a snapshot to disk.
func (sm *SnapshotManager) Save(snap *Snapshot) (string, error) {
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	filename := fmt.Sprintf("snapshot_%d_%d.json", snap.Seq, snap.TsUnix)
	path := filepath.Join(sm.dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// atomic replace
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}

	slog.Info("Snapshot saved",
		slog.Uint64("seq", snap.Seq),
		slog.String("path", path))
	return path, nil
}

type snapFile struct {
	path string
	seq  uint64
}

// list returns snapshot files ordered by sequence, newest first.
func (sm *SnapshotManager) list() ([]snapFile, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		return nil, err
	}

	var files []snapFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var seq uint64
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "snapshot_%d_%d.json", &seq, &ts); err != nil {
			continue
		}
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, snapFile{path: filepath.Join(sm.dir, entry.Name()), seq: seq})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].seq > files[j].seq })
	return files, nil
}

// LoadLatest loads the most recent snapshot. It returns nil, nil when there is none.
func (sm *SnapshotManager) LoadLatest() (*Snapshot, error) {
	files, err := sm.list()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(files[0].path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	slog.Info("Snapshot loaded",
		slog.Uint64("seq", snap.Seq),
		slog.String("path", files[0].path))
	return &snap, nil
}

// CreateSnapshot copies state into a new snapshot stamped with the wall clock.
func CreateSnapshot(seq uint64, virtual time.Time, runID string, asks, bids []domain.Level, orders []domain.Order) *Snapshot {
	return &Snapshot{
		Seq:         seq,
		TsUnix:      time.Now().Unix(),
		VirtualTime: virtual.UnixMilli(),
		RunID:       runID,
		Asks:        append([]domain.Level(nil), asks...),
		Bids:        append([]domain.Level(nil), bids...),
		Orders:      append([]domain.Order(nil), orders...),
	}
}

// Cleanup removes old snapshots, keeping only the latest keepCount.
func (sm *SnapshotManager) Cleanup(keepCount int) error {
	files, err := sm.list()
	if err != nil {
		return err
	}
	if len(files) <= keepCount {
		return nil
	}

	for _, f := range files[keepCount:] {
		if err := os.Remove(f.path); err != nil {
			slog.Warn("Failed to remove old snapshot", slog.String("path", f.path))
		} else {
			slog.Info("Removed old snapshot", slog.String("path", f.path))
		}
	}
	return nil
}
