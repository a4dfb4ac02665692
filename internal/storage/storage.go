// Package storage uploads generated assets to S3-compatible object storage.
package storage

import (
	"context"
	"strings"
)

// ObjectStore is the subset of object storage the pipeline needs.
type ObjectStore interface {
	ListBuckets(ctx context.Context) ([]string, error)
	CreateBucket(ctx context.Context, name string, public bool) error
	// Upload stores data under path in bucket and returns its public URL.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
}

// PublicURL joins base, bucket and object path.
func PublicURL(base, bucket, path string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(path, "/")
}
