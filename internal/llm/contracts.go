package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Prompt is an opaque instruction pair sent to a text-generation model.
type Prompt struct {
	System string
	User   string
}

// Generator is the AI text-generation adapter the pipeline depends on.
// It returns the model's raw text, which may be wrapped in code fences.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// RateLimitError signals the provider asked us to slow down (HTTP 429).
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Body)
}

// UnavailableError signals a provider outage: any 5xx response or a timeout.
type UnavailableError struct {
	StatusCode int
	Cause      error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("service unavailable: status %d", e.StatusCode)
	}
	return fmt.Sprintf("service unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// StatusError is any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d: %s", e.StatusCode, e.Body)
}

// ClassifyHTTP turns a transport error or response status into one of the typed errors above.
func ClassifyHTTP(status int, body []byte, err error) error {
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return &UnavailableError{Cause: err}
		}
		return err
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Body: truncate(string(body), 512)}
	case status/100 == 5:
		return &UnavailableError{StatusCode: status}
	case status/100 != 2:
		return &StatusError{StatusCode: status, Body: truncate(string(body), 512)}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
