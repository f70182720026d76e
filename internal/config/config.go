package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the barkeep tools.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Download Download `yaml:"download"`
	Universe Universe `yaml:"universe"`
	Refresh  Refresh  `yaml:"refresh"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
}

// Storage holds paths for data persistence. Unset directories default to
// subdirectories of DataDir.
type Storage struct {
	DataDir      string `yaml:"data_dir"`
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	ExportDir    string `yaml:"export_dir"`
	CatalogPath  string `yaml:"catalog_path"`
}

// Download controls pacing, retry, and lookback for bulk downloads.
// Durations are plain integers (milliseconds or seconds) in YAML.
type Download struct {
	Provider        string `yaml:"provider"`
	LookbackYears   int    `yaml:"lookback_years"`
	PaceDelayMS     int    `yaml:"pace_delay_ms"`
	RequestTimeout  int    `yaml:"request_timeout_sec"`
	BackoffBaseSec  int    `yaml:"backoff_base_sec"`
	BackoffAttempts int    `yaml:"backoff_attempts"`
}

// Universe selects symbol sources for bulk downloads.
type Universe struct {
	SymbolsFile string `yaml:"symbols_file"`
}

// Refresh configures the periodic re-download daemon.
type Refresh struct {
	Cron     string `yaml:"cron"`
	Universe string `yaml:"universe"` // sp500 | tradable | all | file
}

// Alpaca holds credentials and endpoints for the Alpaca API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, applies
// environment variable overrides, and fills in defaults. A missing file is
// not an error; the tools then run on overrides and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.CatalogPath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca SDK env vars win over the ALPACA_* spellings.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills in every field a fresh checkout can run with.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.RawDir == "" {
		cfg.Storage.RawDir = filepath.Join(cfg.Storage.DataDir, "raw")
	}
	if cfg.Storage.ProcessedDir == "" {
		cfg.Storage.ProcessedDir = filepath.Join(cfg.Storage.DataDir, "processed")
	}
	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = filepath.Join(cfg.Storage.DataDir, "export")
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = filepath.Join(cfg.Storage.DataDir, "barkeep.db")
	}

	if cfg.Download.Provider == "" {
		cfg.Download.Provider = "yahoo"
	}
	if cfg.Download.LookbackYears == 0 {
		cfg.Download.LookbackYears = 30
	}
	if cfg.Download.PaceDelayMS == 0 {
		cfg.Download.PaceDelayMS = 1500
	}
	if cfg.Download.RequestTimeout == 0 {
		cfg.Download.RequestTimeout = 20
	}
	if cfg.Download.BackoffBaseSec == 0 {
		cfg.Download.BackoffBaseSec = 2
	}
	if cfg.Download.BackoffAttempts == 0 {
		cfg.Download.BackoffAttempts = 4
	}

	if cfg.Universe.SymbolsFile == "" {
		cfg.Universe.SymbolsFile = filepath.Join(cfg.Storage.DataDir, "universe", "sp500.csv")
	}

	if cfg.Refresh.Cron == "" {
		cfg.Refresh.Cron = "0 18 * * 1-5"
	}
	if cfg.Refresh.Universe == "" {
		cfg.Refresh.Universe = "file"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
