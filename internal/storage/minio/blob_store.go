// Package minio provides a BlobStore backed by a MinIO (S3-compatible) server.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config captures the parameters required to connect to MinIO.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Secure         bool
	PublicEndpoint string
}

// BlobStore writes artifacts to a MinIO bucket and returns publicly
// reachable URLs built from the configured public endpoint.
type BlobStore struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
}

// New creates a MinIO-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		publicEndpoint = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}
	return &BlobStore{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: strings.TrimRight(publicEndpoint, "/"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *BlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// PutObject uploads data to the bucket and returns the public URL.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucket, path), nil
}
