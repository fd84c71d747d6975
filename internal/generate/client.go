// Package generate talks to the external image-generation service and runs
// generation jobs on behalf of design sessions.
package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teestudio/backend/internal/canvas"
)

const maxResponseBytes = 32 << 20

var (
	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("generate: empty prompt")
	// ErrNotConfigured is returned when no generator endpoint is set.
	ErrNotConfigured = errors.New("generate: no generator endpoint configured")
)

// StatusError is a non-2xx reply from the generator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generator returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration // per attempt
	MaxRetries int
	Backoff    time.Duration // doubled after every failed attempt
	HTTPClient *http.Client
}

// Client calls the image generator: POST {"prompt": ...} and receive
// {"image": "<base64>"}.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a client. Zero timeouts fall back to 60s per attempt and
// 500ms initial backoff.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Image string `json:"image"`
	Error string `json:"error,omitempty"`
}

// Generate returns the raw image bytes for prompt. 5xx, 429 and transport
// failures are retried with exponential backoff; other 4xx replies are not.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if c.cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	delay := c.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		img, err := c.attempt(ctx, body)
		if err == nil {
			return img, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("generation attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("generation failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading generator response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := string(raw)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: msg}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding generator response: %w", err)
	}
	if out.Image == "" {
		if out.Error != "" {
			return nil, fmt.Errorf("generator error: %s", out.Error)
		}
		return nil, errors.New("generator response has no image")
	}
	if strings.HasPrefix(out.Image, "data:") {
		return canvas.DecodeDataURL(out.Image)
	}
	img, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("decoding generated image: %w", err)
	}
	return img, nil
}
