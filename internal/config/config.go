package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrNoConfig             = errors.New("config file not found")
	ErrInvalidJSON          = errors.New("invalid config JSON")
	ErrInvalidImageProvider = errors.New("image_provider must be \"pollinations\" or \"openai\"")
)

// Image provider selectors.
const (
	ImageProviderPollinations = "pollinations"
	ImageProviderOpenAI       = "openai"
)

// Config holds the global quill configuration.
//
// The api_key may be empty: text and provider-B image generation then fail
// fast with a configuration error instead of issuing requests, but the
// process still starts and pollinations image generation still works.
type Config struct {
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url"`
	Model         string `json:"model"`
	SystemPrompt  string `json:"system_prompt"`  // overrides the embedded default when set
	ImageProvider string `json:"image_provider"` // "pollinations" or "openai"
	ImageModel    string `json:"image_model"`    // required for the openai provider
	ImageBaseURL  string `json:"image_base_url"` // pollinations endpoint
	ImageAPIURL   string `json:"image_api_url"`  // openai-style images endpoint
	ImageWidth    int    `json:"image_width"`
	ImageHeight   int    `json:"image_height"`
}

// Load reads the config from ~/.config/quill/config.json.
// A missing file yields a usable zero config with defaults applied, so the
// serve loop can start and report missing credentials per request.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "quill", "config.json")
	cfg, err := LoadFrom(configPath)
	if errors.Is(err, ErrNoConfig) {
		cfg = &Config{}
		applyDefaults(cfg)
		return cfg, nil
	}
	return cfg, err
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidJSON
	}

	applyDefaults(&cfg)

	switch cfg.ImageProvider {
	case ImageProviderPollinations, ImageProviderOpenAI:
		// valid
	default:
		return nil, ErrInvalidImageProvider
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.ImageProvider == "" {
		cfg.ImageProvider = ImageProviderPollinations
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = "https://image.pollinations.ai"
	}
	if cfg.ImageAPIURL == "" {
		cfg.ImageAPIURL = cfg.BaseURL + "/images/generations"
	}
	if cfg.ImageWidth <= 0 {
		cfg.ImageWidth = 1024
	}
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = 1024
	}
}
