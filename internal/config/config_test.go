package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{
			"api_key": "sk-test-123",
			"base_url": "https://api.example.com/v1",
			"model": "gpt-4o",
			"image_provider": "openai",
			"image_model": "dall-e-3"
		}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.APIKey != "sk-test-123" {
			t.Errorf("APIKey = %q, want %q", cfg.APIKey, "sk-test-123")
		}
		if cfg.BaseURL != "https://api.example.com/v1" {
			t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "https://api.example.com/v1")
		}
		if cfg.ImageProvider != ImageProviderOpenAI {
			t.Errorf("ImageProvider = %q, want %q", cfg.ImageProvider, ImageProviderOpenAI)
		}
		if cfg.ImageModel != "dall-e-3" {
			t.Errorf("ImageModel = %q, want %q", cfg.ImageModel, "dall-e-3")
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{"api_key": "sk-test-123"}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BaseURL != "https://api.openai.com/v1" {
			t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
		}
		if cfg.Model != "gpt-4o-mini" {
			t.Errorf("Model = %q, want default", cfg.Model)
		}
		if cfg.ImageProvider != ImageProviderPollinations {
			t.Errorf("ImageProvider = %q, want default", cfg.ImageProvider)
		}
		if cfg.ImageAPIURL != "https://api.openai.com/v1/images/generations" {
			t.Errorf("ImageAPIURL = %q, want derived from BaseURL", cfg.ImageAPIURL)
		}
		if cfg.ImageWidth != 1024 || cfg.ImageHeight != 1024 {
			t.Errorf("image size = %dx%d, want 1024x1024", cfg.ImageWidth, cfg.ImageHeight)
		}
	})

	t.Run("missing api_key allowed", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.APIKey != "" {
			t.Errorf("APIKey = %q, want empty", cfg.APIKey)
		}
	})

	t.Run("invalid image provider", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		if err := os.WriteFile(path, []byte(`{"image_provider": "dalle"}`), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidImageProvider) {
			t.Errorf("err = %v, want ErrInvalidImageProvider", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
		if !errors.Is(err, ErrNoConfig) {
			t.Errorf("err = %v, want ErrNoConfig", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		if err := os.WriteFile(path, []byte(`{not json`), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("err = %v, want ErrInvalidJSON", err)
		}
	})
}
