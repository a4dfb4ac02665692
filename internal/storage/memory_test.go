package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UploadRequiresBucket(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("https://cdn.example.com/")

	_, err := s.Upload(ctx, "slides", "c1/slide-001.png", []byte("png"), "image/png")
	require.Error(t, err)

	require.NoError(t, s.CreateBucket(ctx, "slides", true))
	url, err := s.Upload(ctx, "slides", "/c1/slide-001.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/slides/c1/slide-001.png", url)

	got, ok := s.Object("slides", "/c1/slide-001.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(got))

	names, err := s.ListBuckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"slides"}, names)
}

func TestNewMinioStore_DefaultPublicURL(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", s.baseURL)
}
