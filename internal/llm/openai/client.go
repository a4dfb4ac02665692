package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/internal/llm"
)

// Generate implements llm.Generator using chat/completions and returns the
// first choice's content untouched.
func (c *Client) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.generate.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(p.User),
		"json_mode", c.cfg.JSONMode,
	)

	messages := make([]map[string]any, 0, 2)
	if p.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": p.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": p.User})

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	}
	if c.cfg.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.generate.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.generate.no_choices", "req_id", rid)
		return "", fmt.Errorf("no choices in openai response")
	}

	content := cc.Choices[0].Message.Content
	c.logger.Info("llm.generate.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
