// Package storage persists form image attachments. S3 is used when a
// bucket is configured; otherwise files land in a local directory.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader stores an attachment and returns a reference URL
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// S3Uploader stores attachments in an S3 bucket
type S3Uploader struct {
	client *s3.Client
	bucket string
	region string
}

// Config holds attachment storage configuration
type Config struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3Bucket           string
	LocalPath          string
}

// NewS3Uploader creates an S3-backed uploader
func NewS3Uploader(cfg Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		region: cfg.AWSRegion,
	}, nil
}

// Upload stores the attachment under attachments/ and returns its URL
func (u *S3Uploader) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	key := fmt.Sprintf("attachments/%s/%s%s",
		time.Now().UTC().Format("2006-01-02"), uuid.NewString(), filepath.Ext(filename))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key), nil
}

// LocalUploader stores attachments on the local filesystem
type LocalUploader struct {
	dir string
}

// NewLocalUploader creates a directory-backed uploader
func NewLocalUploader(dir string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &LocalUploader{dir: dir}, nil
}

// Upload writes the attachment to disk and returns its relative path
func (u *LocalUploader) Upload(_ context.Context, data []byte, filename, _ string) (string, error) {
	name := uuid.NewString() + filepath.Ext(filename)
	path := filepath.Join(u.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	return path, nil
}

// New picks the uploader based on configuration: S3 when a bucket is
// set, the local directory otherwise
func New(cfg Config) (Uploader, error) {
	if cfg.S3Bucket != "" {
		return NewS3Uploader(cfg)
	}
	return NewLocalUploader(cfg.LocalPath)
}
