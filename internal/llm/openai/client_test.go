package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/course-jobs/internal/llm"
)

func TestClient_Generate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n{}\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil).WithJSONMode()
	out, err := c.Generate(context.Background(), llm.Prompt{System: "sys", User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "```json\n{}\n```", out)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "m", gotBody["model"])
	assert.Contains(t, gotBody, "response_format")
	assert.Len(t, gotBody["messages"], 2)
}

func TestClient_GenerateClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"rate limit", http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rl *llm.RateLimitError
			assert.ErrorAs(t, err, &rl)
		}},
		{"unavailable", http.StatusServiceUnavailable, func(t *testing.T, err error) {
			var ue *llm.UnavailableError
			assert.ErrorAs(t, err, &ue)
		}},
		{"bad request", http.StatusBadRequest, func(t *testing.T, err error) {
			var se *llm.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, http.StatusBadRequest, se.StatusCode)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"x"}`))
			}))
			defer srv.Close()

			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			_, err := c.Generate(context.Background(), llm.Prompt{User: "hi"})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}
