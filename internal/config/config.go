// Package config loads truthd configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all truthd configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// Language model
	LLM LLMConfig `yaml:"llm"`

	// Google Custom Search
	Search SearchConfig `yaml:"search"`

	// Page retrieval
	Scraper ScraperConfig `yaml:"scraper"`

	// Scoring table
	Game GameConfig `yaml:"game"`

	// Session persistence
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig configures the Ollama client.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`

	// Per-role sampling temperatures.
	StoryTemperature   float64 `yaml:"story_temperature"`
	ExtractTemperature float64 `yaml:"extract_temperature"`
	JudgeTemperature   float64 `yaml:"judge_temperature"`
}

// SearchConfig configures the Google Custom Search JSON API.
type SearchConfig struct {
	APIKey     string `yaml:"api_key"`
	EngineID   string `yaml:"engine_id"`
	MaxResults int    `yaml:"max_results"`
	Timeout    string `yaml:"timeout"`
}

// ScraperConfig configures web page retrieval.
type ScraperConfig struct {
	MaxPages     int    `yaml:"max_pages"`
	UserAgent    string `yaml:"user_agent"`
	Timeout      string `yaml:"timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	Concurrency  int    `yaml:"concurrency"`
}

// GameConfig configures the scoring table.
type GameConfig struct {
	CorrectGuessPoints int `yaml:"correct_guess_points"`
	WrongGuessPenalty  int `yaml:"wrong_guess_penalty"`
	AllFoundBonus      int `yaml:"all_found_bonus"`
	MissedFactPenalty  int `yaml:"missed_fact_penalty"`
}

// StorageConfig configures session snapshot persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "the-hallucinated-truth",
		Version: "1.0.0",

		Server: ServerConfig{
			Addr: ":3023",
		},

		LLM: LLMConfig{
			BaseURL:            "http://localhost:11434",
			Model:              "llama3:latest",
			Timeout:            "5m",
			StoryTemperature:   0.7,
			ExtractTemperature: 0.2,
			JudgeTemperature:   0.0,
		},

		Search: SearchConfig{
			MaxResults: 20,
			Timeout:    "30s",
		},

		Scraper: ScraperConfig{
			MaxPages:     10,
			UserAgent:    "truthd/1.0 (+https://github.com/rilhia/the-hallucinated-truth)",
			Timeout:      "20s",
			MaxBodyBytes: 1 << 20,
			Concurrency:  4,
		},

		Game: GameConfig{
			CorrectGuessPoints: 2,
			WrongGuessPenalty:  2,
			AllFoundBonus:      3,
			MissedFactPenalty:  2,
		},

		Storage: StorageConfig{
			DatabasePath: "data/truthd.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Search.APIKey = key
	}
	if id := os.Getenv("GOOGLE_CSE_ID"); id != "" {
		c.Search.EngineID = id
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("TRUTHD_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("TRUTHD_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDurationOr(c.LLM.Timeout, 5*time.Minute)
}

// GetSearchTimeout returns the search timeout as a duration.
func (c *Config) GetSearchTimeout() time.Duration {
	return parseDurationOr(c.Search.Timeout, 30*time.Second)
}

// GetScraperTimeout returns the per-page fetch timeout as a duration.
func (c *Config) GetScraperTimeout() time.Duration {
	return parseDurationOr(c.Scraper.Timeout, 20*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
