package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	sm := NewSnapshotManager(filepath.Join(t.TempDir(), "snapshots"))

	snap, err := sm.LoadLatest()
	if err != nil || snap != nil {
		t.Fatalf("LoadLatest on missing dir = %v, %v", snap, err)
	}

	orders := []domain.Order{{ID: "LOCAL-ACCEPTANCE-0", State: domain.Active, Price: decimal.NewFromInt(100)}}
	asks := []domain.Level{{Price: 101, Size: 1.5}}
	virtual := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, seq := range []uint64{100, 300, 200} {
		if _, err := sm.Save(CreateSnapshot(seq, virtual, "run", asks, nil, orders)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Snapshot is nil")
	}
	if loaded.Seq != 300 {
		t.Errorf("Seq mismatch: got %d", loaded.Seq)
	}
	if loaded.VirtualTime != virtual.UnixMilli() || loaded.RunID != "run" {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if len(loaded.Asks) != 1 || loaded.Asks[0].Size != 1.5 {
		t.Errorf("Asks mismatch: %v", loaded.Asks)
	}
	if len(loaded.Orders) != 1 || loaded.Orders[0].Price.String() != "100" {
		t.Errorf("Orders mismatch: %v", loaded.Orders)
	}
}

func TestSnapshot_CreateCopies(t *testing.T) {
	asks := []domain.Level{{Price: 1, Size: 1}}
	snap := CreateSnapshot(1, time.Unix(0, 0), "", asks, nil, nil)
	asks[0].Size = 9
	if snap.Asks[0].Size != 1 {
		t.Error("snapshot must not alias the caller's slice")
	}
}

func TestSnapshot_Cleanup(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	for seq := uint64(1); seq <= 5; seq++ {
		if _, err := sm.Save(&Snapshot{Seq: seq, TsUnix: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := sm.Cleanup(2); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := map[string]bool{"snapshot_4_1.json": true, "snapshot_5_1.json": true, "notes.txt": true}
	if len(names) != len(want) {
		t.Fatalf("remaining files = %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected file %s", n)
		}
	}
}
