// Package speech narrates text through an OpenAI-compatible /audio/speech endpoint.
package speech

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/course-jobs/internal/llm"
)

// Audio is synthesized speech, base64 encoded so it can be stored in a job result.
type Audio struct {
	ContentType string `json:"content_type"`
	Base64      string `json:"base64"`
}

// Synthesizer is the text-to-speech adapter.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

type Config struct {
	BaseURL string        // default https://api.openai.com/v1
	APIKey  string        // falls back to OPENAI_API_KEY
	Model   string        // default tts-1
	Voice   string        // default alloy
	Timeout time.Duration // default 30s
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Synthesize returns mp3 audio. Errors are classified like llm errors, so a
// timeout or 5xx is an *llm.UnavailableError.
func (c *Client) Synthesize(ctx context.Context, text string) (Audio, error) {
	start := time.Now()
	body := map[string]any{
		"model":           c.cfg.Model,
		"voice":           c.cfg.Voice,
		"input":           text,
		"response_format": "mp3",
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/speech"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("speech.synthesize.failed", "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Audio{}, err
	}
	c.logger.Info("speech.synthesize.ok", "input_len", len(text), "audio_bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())
	return Audio{ContentType: "audio/mpeg", Base64: base64.StdEncoding.EncodeToString(raw)}, nil
}
