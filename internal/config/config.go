package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Projects      []string      `yaml:"projects"`
	Extraction    Extraction    `yaml:"extraction"`
	Transcription Transcription `yaml:"transcription"`
	Storage       Storage       `yaml:"storage"`
	Database      Database      `yaml:"database"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Extraction struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	OpenAIURL   string `yaml:"openai_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Transcription struct {
	Enabled    bool   `yaml:"enabled"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	WhisperURL string `yaml:"whisper_url"`
	OpenAIURL  string `yaml:"openai_url"`
	Language   string `yaml:"language"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

type Storage struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	AudioBucket string `yaml:"audio_bucket"`
	PhotoBucket string `yaml:"photo_bucket"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for dailyreport.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "dailyreport")
}

// DataDir returns the XDG data directory for dailyreport.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "dailyreport")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/dailyreport/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'dailyreport init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Extraction: Extraction{
			Enabled:     true,
			Provider:    "openai",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   1024,
		},
		Transcription: Transcription{
			Enabled:    true,
			Provider:   "openai",
			Model:      "whisper-1",
			WhisperURL: "http://localhost:8080",
			APIKeyEnv:  "OPENAI_API_KEY",
		},
		Storage: Storage{
			Provider:    "dir",
			APIKeyEnv:   "STORAGE_API_KEY",
			AudioBucket: "daily-audio",
			PhotoBucket: "daily-photos",
		},
		Database: Database{Driver: "sqlite"},
		Server:   Server{Host: "127.0.0.1", Port: 8000},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	switch c.Storage.Provider {
	case "dir":
	case "http":
		if c.Storage.BaseURL == "" {
			return fmt.Errorf("storage.base_url is required for the http provider")
		}
	default:
		return fmt.Errorf("storage.provider must be dir or http, got %q", c.Storage.Provider)
	}
	for i, p := range c.Projects {
		c.Projects[i] = strings.TrimSpace(p)
		if c.Projects[i] == "" {
			return fmt.Errorf("projects[%d] is empty", i)
		}
	}
	return nil
}

// HasProject reports whether name is one of the configured projects.
// An empty project list accepts any name.
func (c *Config) HasProject(name string) bool {
	if len(c.Projects) == 0 {
		return true
	}
	return slices.Contains(c.Projects, name)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabaseDSN returns the configured DSN, or the SQLite file under the data
// directory when none is set.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return filepath.Join(c.GetDataDir(), "dailyreport.db")
}

// MediaDir returns the root of the local directory bucket.
func (c *Config) MediaDir() string {
	return filepath.Join(c.GetDataDir(), "media")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
