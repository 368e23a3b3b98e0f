package image

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/youruser/quill/internal/config"
)

func pollinationsConfig(baseURL string) *config.Config {
	return &config.Config{
		ImageProvider: config.ImageProviderPollinations,
		ImageBaseURL:  baseURL,
		ImageWidth:    512,
		ImageHeight:   256,
	}
}

func TestPollinations(t *testing.T) {
	t.Run("valid image response returns the built URL", func(t *testing.T) {
		var gotPath, gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("fake image bytes"))
		}))
		defer server.Close()

		p := NewPollinations(server.URL, "flux", 512, 256)
		url, err := p.Generate(context.Background(), "a red fox")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.HasPrefix(url, server.URL+"/prompt/") {
			t.Errorf("url = %q, want templated prompt URL", url)
		}
		if gotPath != "/prompt/a red fox" {
			t.Errorf("request path = %q", gotPath)
		}
		for _, want := range []string{"width=512", "height=256", "model=flux"} {
			if !strings.Contains(gotQuery, want) {
				t.Errorf("query %q missing %q", gotQuery, want)
			}
		}
	})

	t.Run("non-image content type fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>error page</html>"))
		}))
		defer server.Close()

		p := NewPollinations(server.URL, "", 512, 256)
		if _, err := p.Generate(context.Background(), "x"); err == nil {
			t.Fatal("expected error for non-image content type")
		}
	})

	t.Run("non-2xx status fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		p := NewPollinations(server.URL, "", 512, 256)
		if _, err := p.Generate(context.Background(), "x"); err == nil {
			t.Fatal("expected error for 500 response")
		}
	})
}

func TestOpenAI(t *testing.T) {
	t.Run("missing key issues no request", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer server.Close()

		p := NewOpenAI(server.URL, "", "dall-e-3", 1024, 1024)
		_, err := p.Generate(context.Background(), "x")
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("err = %v, want ErrNotConfigured", err)
		}
		if requests != 0 {
			t.Errorf("server saw %d requests, want 0", requests)
		}
	})

	t.Run("missing model issues no request", func(t *testing.T) {
		p := NewOpenAI("http://unreachable.invalid", "key", "", 1024, 1024)
		if _, err := p.Generate(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("err = %v, want ErrNotConfigured", err)
		}
	})

	t.Run("extracts first result URL", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/img.png"}]}`))
		}))
		defer server.Close()

		p := NewOpenAI(server.URL, "key", "dall-e-3", 1024, 1024)
		url, err := p.Generate(context.Background(), "x")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if url != "https://cdn.example.com/img.png" {
			t.Errorf("url = %q", url)
		}
	})

	t.Run("empty data is a typed failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		p := NewOpenAI(server.URL, "key", "dall-e-3", 1024, 1024)
		if _, err := p.Generate(context.Background(), "x"); !errors.Is(err, ErrNoImage) {
			t.Fatalf("err = %v, want ErrNoImage", err)
		}
	})

	t.Run("structured error body surfaces the message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"prompt rejected"}}`))
		}))
		defer server.Close()

		p := NewOpenAI(server.URL, "key", "dall-e-3", 1024, 1024)
		_, err := p.Generate(context.Background(), "x")
		if err == nil || !strings.Contains(err.Error(), "prompt rejected") {
			t.Fatalf("err = %v, want provider message", err)
		}
	})
}

func TestGeneratorFallback(t *testing.T) {
	t.Run("pollinations failure falls back to deterministic URL", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		g, err := NewGenerator(pollinationsConfig(server.URL))
		if err != nil {
			t.Fatalf("NewGenerator: %v", err)
		}
		url, err := g.Generate(context.Background(), "x")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if url != "https://picsum.photos/512/256" {
			t.Errorf("url = %q, want fallback URL", url)
		}
	})

	t.Run("openai failure does not fall back", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		g, err := NewGenerator(&config.Config{
			ImageProvider: config.ImageProviderOpenAI,
			ImageAPIURL:   server.URL,
			APIKey:        "key",
			ImageModel:    "dall-e-3",
			ImageWidth:    1024,
			ImageHeight:   1024,
		})
		if err != nil {
			t.Fatalf("NewGenerator: %v", err)
		}
		if _, err := g.Generate(context.Background(), "x"); err == nil {
			t.Fatal("expected error to surface without fallback")
		}
	})

	t.Run("cancellation suppresses the fallback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		g, err := NewGenerator(pollinationsConfig(server.URL))
		if err != nil {
			t.Fatalf("NewGenerator: %v", err)
		}
		_, err = g.Generate(ctx, "x")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		if _, err := NewGenerator(&config.Config{ImageProvider: "stable-diffusion"}); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})
}
