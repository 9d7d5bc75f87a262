package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/scholarscout/scraper/slug"
)

// S3Config contains S3 storage configuration
type S3Config struct {
	Endpoint        string // MinIO or DigitalOcean Spaces endpoint; empty for AWS
	Region          string
	Bucket          string
	Prefix          string // optional key prefix inside the bucket
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool // required for MinIO
}

// Validate reports the first missing required field
func (c S3Config) Validate() error {
	switch {
	case c.Bucket == "":
		return errors.New("S3 bucket name is required")
	case c.Region == "":
		return errors.New("S3 region is required")
	case c.AccessKeyID == "" || c.SecretAccessKey == "":
		return errors.New("S3 credentials are required")
	}
	return nil
}

// S3Storage archives snapshots in S3-compatible object storage
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage creates an S3Storage with static credentials
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// snapshotKey builds snapshots/YYYY/MM/<slug>-<id>.json. Object keys carry
// a random suffix since a bucket has no cheap existence check.
func snapshotKey(now time.Time, snap Snapshot) string {
	base := slug.GenerateWithFallback(slug.ForSnapshot(snap.Title, snap.URL), "snapshot")
	return path.Join(snapshotDir(now), base+"-"+uuid.New().String()[:8]+".json")
}

// objectKey applies the configured prefix
func (s *S3Storage) objectKey(key string) *string {
	if s.prefix == "" {
		return aws.String(key)
	}
	return aws.String(s.prefix + "/" + key)
}

// SaveSnapshot uploads snap and returns its key, relative to the prefix
func (s *S3Storage) SaveSnapshot(ctx context.Context, snap Snapshot) (string, error) {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return "", err
	}

	key := snapshotKey(time.Now(), snap)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.objectKey(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}
	return key, nil
}

// ReadSnapshot downloads a snapshot by key
func (s *S3Storage) ReadSnapshot(ctx context.Context, key string) (*Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot data from S3: %w", err)
	}
	return decodeSnapshot(data)
}

// DeleteSnapshot deletes a snapshot from S3
func (s *S3Storage) DeleteSnapshot(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	}); err != nil {
		return fmt.Errorf("failed to delete snapshot from S3: %w", err)
	}
	return nil
}

// GetFullPath returns the s3:// URL for a key
func (s *S3Storage) GetFullPath(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, aws.ToString(s.objectKey(key)))
}
