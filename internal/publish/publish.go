// Package publish uploads generated diagrams to an S3-compatible bucket.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/roach88/pipemap/internal/config"
)

// ContentType is the MIME type stored with uploaded diagrams.
const ContentType = "text/plain; charset=utf-8"

// Publisher uploads rendered diagrams.
type Publisher interface {
	Publish(ctx context.Context, key string, content []byte) (string, error)
}

// S3Publisher uploads to an S3-compatible bucket through minio-go.
type S3Publisher struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewS3Publisher validates cfg and creates a client. No request is made
// until the first Publish.
func NewS3Publisher(cfg config.Publish) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("publish bucket is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("publish access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Publisher{client: client, bucket: bucket, region: region}, nil
}

// Bucket returns the target bucket name.
func (p *S3Publisher) Bucket() string {
	return p.bucket
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads content under key and returns the object location as
// bucket/key.
func (p *S3Publisher) Publish(ctx context.Context, key string, content []byte) (string, error) {
	key = ObjectKey(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	if content == nil {
		content = []byte{}
	}

	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return p.bucket + "/" + key, nil
}

// ObjectKey normalizes a key: surrounding spaces and leading slashes are
// removed.
func ObjectKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

// RunKey prefixes key with a run id so every run keeps its own copy.
func RunKey(runID, key string) string {
	runID = strings.Trim(strings.TrimSpace(runID), "/")
	if runID == "" {
		return ObjectKey(key)
	}
	return runID + "/" + ObjectKey(key)
}
