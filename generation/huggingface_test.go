package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	imageBytes := []byte("\x89PNG fake image data")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/black-forest-labs/FLUX.1-dev" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["inputs"] != "a red cube" {
			t.Errorf("expected inputs %q, got %q", "a red cube", body["inputs"])
		}
		w.Write(imageBytes)
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewClient(Config{
		BaseURL:   srv.URL,
		Model:     "black-forest-labs/FLUX.1-dev",
		Token:     "test-token",
		OutputDir: dir,
	})

	url, err := client.Generate(context.Background(), "a red cube")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(url, "/images/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("unexpected image url %q", url)
	}

	saved, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(saved) != string(imageBytes) {
		t.Error("saved image does not match response body")
	}
}

func TestGenerateErrorCarriesStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:   srv.URL,
		Model:     "m",
		Token:     "test-token",
		OutputDir: t.TempDir(),
	})

	_, err := client.Generate(context.Background(), "a red cube")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "Service Unavailable") {
		t.Errorf("error should carry status and status text, got %q", err)
	}
}

func TestGenerateRequiresToken(t *testing.T) {
	client := NewClient(Config{Model: "m", OutputDir: t.TempDir()})

	if _, err := client.Generate(context.Background(), "a red cube"); err == nil {
		t.Fatal("expected error when no token is configured")
	}
}
