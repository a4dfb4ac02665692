// Package imagesearch looks up a stock photo URL for a slide's search term.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/course-jobs/internal/llm"
)

// Searcher returns an image URL for term, or "" when nothing matched.
type Searcher interface {
	Search(ctx context.Context, term string) (string, error)
}

type Config struct {
	BaseURL string // default https://api.pexels.com
	APIKey  string
	Timeout time.Duration
}

// PexelsClient speaks the Pexels v1 search API.
type PexelsClient struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewPexelsClient(cfg Config, logger *slog.Logger) *PexelsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pexels.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PexelsClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *PexelsClient) Search(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", nil
	}
	q := url.Values{"query": {term}, "per_page": {"1"}, "orientation": {"landscape"}}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", llm.ClassifyHTTP(0, nil, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if err := llm.ClassifyHTTP(resp.StatusCode, raw, nil); err != nil {
		return "", err
	}

	var out struct {
		Photos []struct {
			Src struct {
				Large    string `json:"large"`
				Original string `json:"original"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(out.Photos) == 0 {
		c.logger.Debug("imagesearch.no_match", "term", term)
		return "", nil
	}
	if u := out.Photos[0].Src.Large; u != "" {
		return u, nil
	}
	return out.Photos[0].Src.Original, nil
}

// Disabled is a Searcher that never finds anything.
type Disabled struct{}

func (Disabled) Search(context.Context, string) (string, error) { return "", nil }
