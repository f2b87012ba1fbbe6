// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Engine   EngineConfig   `toml:"engine"`
	License  LicenseConfig  `toml:"license"`
	Metadata MetadataConfig `toml:"metadata"`
	Library  LibraryConfig  `toml:"library"`
	Network  NetworkConfig  `toml:"network"`
	Media    MediaConfig    `toml:"media"`
	Workflow WorkflowConfig `toml:"workflow"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// EngineConfig points at the external queued-download engine.
type EngineConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// LicenseConfig points at the licensing service that issues download
// URLs and decryption material.
type LicenseConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

type MetadataConfig struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	CacheTTL int    `toml:"cache_ttl_hours"`
}

// LibraryConfig describes the final destination for converted audiobooks.
type LibraryConfig struct {
	Root     string `toml:"root"`
	Naming   string `toml:"naming"`    // flat, author, author_series
	CoverArt bool   `toml:"cover_art"` // write companion cover.jpg
}

type NetworkConfig struct {
	RestrictedOnly bool   `toml:"restricted_only"`
	CheckURL       string `toml:"check_url"`
	CheckInterval  int    `toml:"check_interval_seconds"`
}

type MediaConfig struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

type WorkflowConfig struct {
	PollInterval int    `toml:"poll_interval_seconds"`
	StagingDir   string `toml:"staging_dir"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/talefetch.db"
	}
	if cfg.Library.Naming == "" {
		cfg.Library.Naming = "author"
	}
	if cfg.Media.FFmpeg == "" {
		cfg.Media.FFmpeg = "ffmpeg"
	}
	if cfg.Media.FFprobe == "" {
		cfg.Media.FFprobe = "ffprobe"
	}
	if cfg.Workflow.PollInterval == 0 {
		cfg.Workflow.PollInterval = 2
	}
	if cfg.Workflow.StagingDir == "" {
		cfg.Workflow.StagingDir = os.TempDir()
	}
	if cfg.Network.CheckInterval == 0 {
		cfg.Network.CheckInterval = 15
	}

	return &cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
