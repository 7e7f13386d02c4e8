package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/latency"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// Config holds every setting of the simulator process.
// LoadConfig applies CRYPTOSIM_* environment overrides after parsing the file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market domain.MarketSetting `yaml:"market"`

	Latency latency.Config `yaml:"latency"`

	Simulator struct {
		Mode               string          `yaml:"mode"` // VERIFY or PAPER
		ExclusiveExecution bool            `yaml:"exclusive_execution"`
		GroupWidth         decimal.Decimal `yaml:"group_width"`
		MaxSeqGap          uint64          `yaml:"max_seq_gap"`
	} `yaml:"simulator"`

	Storage struct {
		DBPath         string `yaml:"db_path"`
		SnapshotDir    string `yaml:"snapshot_dir"`
		SnapshotKeep   int    `yaml:"snapshot_keep"`
		SnapshotEveryN uint64 `yaml:"snapshot_every_n"`
	} `yaml:"storage"`

	Feed struct {
		Enabled     bool          `yaml:"enabled"`
		URL         string        `yaml:"url"`
		Subscribe   string        `yaml:"subscribe"` // sent after each connect
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"feed"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when a key is absent from the file.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = AppName
	cfg.Market = domain.DefaultMarketSetting()
	cfg.Latency.Kind = "zero"
	cfg.Simulator.Mode = "VERIFY"
	cfg.Simulator.MaxSeqGap = 1000
	cfg.Storage.SnapshotKeep = 5
	cfg.Feed.ReadTimeout = 60 * time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return &cfg
}

// LoadConfig reads the YAML file at path over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes, applies environment overrides and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// environment wins over the file
	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if _, err := latency.Parse(c.Latency); err != nil {
		return err
	}

	switch strings.ToUpper(c.Simulator.Mode) {
	case "VERIFY", "PAPER":
	default:
		return fmt.Errorf("unknown simulator mode: %q", c.Simulator.Mode)
	}
	if c.Simulator.GroupWidth.IsNegative() {
		return fmt.Errorf("group width must not be negative")
	}

	if c.Storage.SnapshotKeep < 0 {
		return fmt.Errorf("snapshot keep count must not be negative")
	}

	if c.Feed.Enabled {
		if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
			return fmt.Errorf("invalid feed WS URL: %s", c.Feed.URL)
		}
		if c.Feed.ReadTimeout <= 0 {
			return fmt.Errorf("feed read timeout must be positive")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging format: %q", c.Logging.Format)
	}
	return nil
}

// overrideWithEnv lets environment variables replace file values.
func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("CRYPTOSIM_MODE"); v != "" {
		cfg.Simulator.Mode = v
	}
	if v := os.Getenv("CRYPTOSIM_SYMBOL"); v != "" {
		cfg.Market.Symbol = v
	}
	if v := os.Getenv("CRYPTOSIM_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CRYPTOSIM_FEED_URL"); v != "" {
		cfg.Feed.URL = v
		cfg.Feed.Enabled = true
	}
	if v := os.Getenv("CRYPTOSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CRYPTOSIM_LATENCY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CRYPTOSIM_LATENCY: %w", err)
		}
		cfg.Latency.Kind = "fixed"
		cfg.Latency.Fixed = d
	}
	if v := os.Getenv("CRYPTOSIM_EXCLUSIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CRYPTOSIM_EXCLUSIVE: %w", err)
		}
		cfg.Simulator.ExclusiveExecution = b
	}
	return nil
}
