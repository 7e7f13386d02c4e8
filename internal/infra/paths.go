package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	AppName = "cointoss-sim"
)

// WorkspaceDir returns the root directory for runtime data. A local "_workspace"
// directory wins (portable mode); otherwise the OS data directory is used.
func WorkspaceDir() string {
	localDir := "_workspace"
	if _, err := os.Stat(localDir); err == nil {
		return localDir
	}

	var baseDir string
	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
	case "darwin":
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, "Library", "Application Support")
	default:
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			home, _ := os.UserHomeDir()
			baseDir = filepath.Join(home, ".local", "share")
		}
	}
	if baseDir == "" {
		return localDir
	}
	return filepath.Join(baseDir, AppName)
}

// EnsureDir creates the directory if it doesn't exist (0755).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// ResolveStoragePaths fills empty storage paths with per-mode defaults under root
// and creates the directories they live in.
func ResolveStoragePaths(cfg *Config, root string) error {
	dataDir := filepath.Join(root, "data", strings.ToLower(cfg.Simulator.Mode), cfg.Market.Symbol)
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(dataDir, "events.db")
	}
	if cfg.Storage.SnapshotDir == "" {
		cfg.Storage.SnapshotDir = filepath.Join(dataDir, "snapshots")
	}
	if err := EnsureDir(filepath.Dir(cfg.Storage.DBPath)); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := EnsureDir(cfg.Storage.SnapshotDir); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return nil
}

// CreateLockFile fails when another process already holds the lock in workDir.
// The returned function releases it.
func CreateLockFile(workDir string) (func(), error) {
	lockPath := filepath.Join(workDir, "instance.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another instance is already running (lock file exists: %s)", lockPath)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}

// ResolveConfigPath finds config.yaml.
// Priority: 1. CRYPTOSIM_CONFIG, 2. ./configs, 3. OS config dir
func ResolveConfigPath() string {
	if p := os.Getenv("CRYPTOSIM_CONFIG"); p != "" {
		return p
	}

	defaultPath := filepath.Join("configs", "config.yaml")
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	if configRoot, err := os.UserConfigDir(); err == nil {
		osPath := filepath.Join(configRoot, AppName, "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	// LoadConfig reports the missing file
	return defaultPath
}
