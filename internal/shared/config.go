package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Images   ImagesConfig   `toml:"images"`
	Sync     SyncConfig     `toml:"sync"`
	Server   ServerConfig   `toml:"server"`
	UI       UIConfig       `toml:"ui"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"BINDER_DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CatalogConfig points at the directory holding set definition files.
type CatalogConfig struct {
	DataDir   string `toml:"data_dir" env:"BINDER_DATA_DIR"`
	BatchSize int    `toml:"batch_size"`
}

// ImagesConfig contains card image resolution settings.
type ImagesConfig struct {
	IndexURL          string            `toml:"index_url" env:"BINDER_IMAGES_INDEX_URL"`
	IndexCodes        map[string]string `toml:"index_codes"`
	LocalRoot         string            `toml:"local_root"`
	Placeholder       string            `toml:"placeholder"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
	ScrydexSets       []string          `toml:"scrydex_sets"`
}

// SyncConfig contains remote sync settings.
type SyncConfig struct {
	Enabled      bool   `toml:"enabled" env:"BINDER_SYNC_ENABLED"`
	URL          string `toml:"url" env:"BINDER_SYNC_URL"`
	Token        string `toml:"token" env:"BINDER_SYNC_TOKEN"`
	CollectionID string `toml:"collection_id" env:"BINDER_COLLECTION_ID"`
	DialTimeout  string `toml:"dial_timeout"`
}

// ServerConfig contains settings for the sync mirror server.
type ServerConfig struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Token string `toml:"token" env:"BINDER_SERVER_TOKEN"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	ConfirmTimeout string `toml:"confirm_timeout"`
	LogFile        string `toml:"log_file"`
}

// Timeout returns the dial timeout, falling back to 10 seconds when unset or invalid.
func (c SyncConfig) Timeout() time.Duration {
	return parseDuration(c.DialTimeout, 10*time.Second)
}

// Timeout returns how long an uncheck confirmation stays open.
func (c UIConfig) Timeout() time.Duration {
	return parseDuration(c.ConfirmTimeout, 5*time.Second)
}

// Addr returns the host:port the mirror server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides config values with any BINDER_* environment variables that are set.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
