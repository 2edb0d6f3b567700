package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// VideoSource fetches climbing videos from S3-compatible object
// storage and publishes finished results back.
type VideoSource struct {
	client        *miniogo.Client
	videoBucket   string
	resultsBucket string
}

// VideoSourceConfig configures the object-store connection.
type VideoSourceConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	VideoBucket   string
	ResultsBucket string
}

// NewVideoSource builds the client; buckets are created lazily via
// EnsureBuckets.
func NewVideoSource(cfg VideoSourceConfig) (*VideoSource, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("video source: create client: %w", err)
	}
	return &VideoSource{
		client:        client,
		videoBucket:   cfg.VideoBucket,
		resultsBucket: cfg.ResultsBucket,
	}, nil
}

// EnsureBuckets creates the configured buckets when missing.
func (v *VideoSource) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{v.videoBucket, v.resultsBucket} {
		if bucket == "" {
			continue
		}
		exists, err := v.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("video source: check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := v.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("video source: create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// Fetch downloads the object to destPath.
func (v *VideoSource) Fetch(ctx context.Context, objectKey, destPath string) error {
	err := v.client.FGetObject(ctx, v.videoBucket, objectKey, destPath, miniogo.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("video source: fetch %s: %w", objectKey, err)
	}
	return nil
}

// PublishResult uploads the finished result JSON next to the videos.
func (v *VideoSource) PublishResult(ctx context.Context, analysisID string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("video source: marshal result %s: %w", analysisID, err)
	}
	_, err = v.client.PutObject(ctx, v.resultsBucket, analysisID+".json",
		strings.NewReader(string(data)), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("video source: publish %s: %w", analysisID, err)
	}
	return nil
}
