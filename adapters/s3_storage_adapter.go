package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3StorageAdapter.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3StorageConfig holds configuration for S3StorageAdapter.
type S3StorageConfig struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
}

// S3StorageAdapter stores the recording as a single S3 object.
type S3StorageAdapter struct {
	client S3API
	bucket string
	key    string
}

var _ StorageAdapter = (*S3StorageAdapter)(nil)

// NewS3StorageAdapter loads the default AWS configuration and creates an
// adapter writing to cfg.Bucket/cfg.Key.
func NewS3StorageAdapter(ctx context.Context, cfg S3StorageConfig) (*S3StorageAdapter, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3 storage requires a bucket and a key")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	})
	return NewS3StorageAdapterWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewS3StorageAdapterWithClient creates an adapter around an existing client.
func NewS3StorageAdapterWithClient(client S3API, bucket, key string) *S3StorageAdapter {
	return &S3StorageAdapter{client: client, bucket: bucket, key: key}
}

// Save uploads data, replacing any previous recording.
func (s *S3StorageAdapter) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

// Load downloads the recording.
// Returns ErrNoRecording if the object doesn't exist.
func (s *S3StorageAdapter) Load(ctx context.Context) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNoRecording
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer func() { _ = result.Body.Close() }()

	return io.ReadAll(result.Body)
}

// Clear deletes the object. S3 deletes of missing keys succeed.
func (s *S3StorageAdapter) Clear(ctx context.Context) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (s *S3StorageAdapter) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}
