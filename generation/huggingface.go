package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pyala/promptbattle/logger"
)

// Config 图片生成服务配置。Token由服务端配置提供，绝不下发给客户端。
type Config struct {
	BaseURL    string // inference endpoint, e.g. https://api-inference.huggingface.co
	Model      string // e.g. black-forest-labs/FLUX.1-dev
	Token      string
	OutputDir  string // where generated images are written
	PublicPath string // URL prefix the output dir is served under
	Timeout    time.Duration
}

// Client proxies prompt text to a Hugging Face style inference endpoint and
// stores the returned image bytes locally. It implements battle.Generator.
// Failed calls are not retried here; the player resubmits manually.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PublicPath == "" {
		cfg.PublicPath = "/images"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate sends the prompt to the inference endpoint and returns the URL path
// under which the stored image is served.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Token == "" {
		return "", errors.New("missing generation API token")
	}

	payload, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return "", err
	}

	url := c.cfg.BaseURL + "/models/" + c.cfg.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("generation failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	filename := uuid.NewString() + ".png"
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(c.cfg.OutputDir, filename), data, 0o644); err != nil {
		return "", err
	}

	logger.Log.Infof("generated image %s (%d bytes) in %v", filename, len(data), time.Since(start))
	return path.Join(c.cfg.PublicPath, filename), nil
}
