package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the clipget configuration file. Flags override it.
type Config struct {
	DataURL     string   `toml:"data_url"`
	DownloadDir string   `toml:"download_dir"`
	GateFile    string   `toml:"gate_file"`
	DatabaseURL string   `toml:"database_url"`
	TimeZone    string   `toml:"timezone"`
	S3          S3Config `toml:"s3"`
}

// S3Config enables uploading downloaded clips to a bucket and sharing a
// presigned link instead of saving them locally.
type S3Config struct {
	Endpoint       string  `toml:"endpoint"`
	PublicEndpoint string  `toml:"public_endpoint"`
	Bucket         string  `toml:"bucket"`
	AccessKey      string  `toml:"access_key"`
	SecretKey      string  `toml:"secret_key"`
	Region         string  `toml:"region"`
	ShareHours     float64 `toml:"share_hours"`
}

func (c S3Config) shareExpiry() time.Duration {
	if c.ShareHours <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(c.ShareHours * float64(time.Hour))
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "clipget", "config.toml")
}

// loadConfig reads path. A missing file yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := Config{DownloadDir: "."}
	if dir, err := os.UserConfigDir(); err == nil {
		cfg.GateFile = filepath.Join(dir, "clipget", "gate.json")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
