// Package storage holds the sinks a scan report can be written to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("object not found")

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ParseS3Target splits "s3://bucket/key" into bucket and key.
func ParseS3Target(target string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(target, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 target: %q", target)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 target %q has no bucket", target)
	}
	if key == "" {
		return "", "", fmt.Errorf("s3 target %q has no object key", target)
	}
	return bucket, key, nil
}

// Open resolves an output target to a store and the key within it.
// Targets starting with s3:// use the default AWS credential chain; anything
// else is a local file path.
func Open(ctx context.Context, target string) (BlobStore, string, error) {
	if strings.HasPrefix(target, "s3://") {
		bucket, key, err := ParseS3Target(target)
		if err != nil {
			return nil, "", err
		}
		store, err := openS3(ctx, bucket)
		return store, key, err
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, "", fmt.Errorf("resolve output path: %w", err)
	}
	return NewLocalStore(filepath.Dir(abs)), filepath.Base(abs), nil
}

// OpenPrefix resolves a listing target, a local directory or
// s3://bucket[/prefix], to a store and the prefix to list under.
func OpenPrefix(ctx context.Context, target string) (BlobStore, string, error) {
	if rest, ok := strings.CutPrefix(target, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, "", fmt.Errorf("s3 target %q has no bucket", target)
		}
		store, err := openS3(ctx, bucket)
		return store, prefix, err
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, "", fmt.Errorf("resolve report directory: %w", err)
	}
	return NewLocalStore(abs), "", nil
}

func openS3(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewS3Store(cfg, bucket), nil
}
