package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./binder.db" {
			t.Errorf("expected database path ./binder.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 7420 {
			t.Errorf("expected server port 7420, got %d", config.Server.Port)
		}

		if config.Catalog.BatchSize != 10 {
			t.Errorf("expected catalog batch size 10, got %d", config.Catalog.BatchSize)
		}

		if config.Images.IndexCodes["first-chapter"] != "1" {
			t.Errorf("expected index code 1 for first-chapter, got %q", config.Images.IndexCodes["first-chapter"])
		}

		if config.UI.Timeout() != 5*time.Second {
			t.Errorf("expected confirm timeout 5s, got %v", config.UI.Timeout())
		}

		if config.Sync.Enabled {
			t.Error("sync should be disabled by default")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[sync]
enabled = true
url = "ws://sync.example.com/ws"
collection_id = "abc"

[ui]
confirm_timeout = "2s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected server addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if !config.Sync.Enabled || config.Sync.CollectionID != "abc" {
			t.Errorf("unexpected sync config: %+v", config.Sync)
		}

		if config.UI.Timeout() != 2*time.Second {
			t.Errorf("expected confirm timeout 2s, got %v", config.UI.Timeout())
		}

		if config.Catalog.DataDir != "./data" {
			t.Errorf("unset values should keep defaults, got data dir %q", config.Catalog.DataDir)
		}
	})

	t.Run("LoadConfig invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("BINDER_DATABASE_PATH", "/env/binder.db")
		t.Setenv("BINDER_SYNC_URL", "ws://env.example.com/ws")
		t.Setenv("BINDER_COLLECTION_ID", "from-env")

		config := DefaultConfig()
		if err := ApplyEnv(config); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}

		if config.Database.Path != "/env/binder.db" {
			t.Errorf("expected env database path, got %s", config.Database.Path)
		}
		if config.Sync.URL != "ws://env.example.com/ws" {
			t.Errorf("expected env sync url, got %s", config.Sync.URL)
		}
		if config.Sync.CollectionID != "from-env" {
			t.Errorf("expected env collection id, got %s", config.Sync.CollectionID)
		}
		if config.Server.Port != 7420 {
			t.Errorf("env parsing should not touch untagged fields, got port %d", config.Server.Port)
		}
	})

	t.Run("Durations fall back", func(t *testing.T) {
		tc := []struct {
			name string
			in   string
			want time.Duration
		}{
			{name: "empty", in: "", want: 5 * time.Second},
			{name: "garbage", in: "soon", want: 5 * time.Second},
			{name: "negative", in: "-1s", want: 5 * time.Second},
			{name: "valid", in: "750ms", want: 750 * time.Millisecond},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := (UIConfig{ConfirmTimeout: tt.in}).Timeout(); got != tt.want {
					t.Errorf("Timeout() = %v, want %v", got, tt.want)
				}
			})
		}
	})
}
