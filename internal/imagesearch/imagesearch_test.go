package imagesearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPexelsClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "fire safety", r.URL.Query().Get("query"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"photos":[{"src":{"large":"https://img.example.com/1.jpg"}}]}`))
	}))
	defer srv.Close()

	c := NewPexelsClient(Config{BaseURL: srv.URL, APIKey: "secret"}, nil)
	u, err := c.Search(context.Background(), " fire safety ")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/1.jpg", u)
}

func TestPexelsClient_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"photos":[]}`))
	}))
	defer srv.Close()

	c := NewPexelsClient(Config{BaseURL: srv.URL}, nil)
	u, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestPexelsClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewPexelsClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Search(context.Background(), "x")
	assert.Error(t, err)
}
