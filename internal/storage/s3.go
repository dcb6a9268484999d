package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const s3Scheme = "s3://"

// S3 stores files as objects in one bucket. Paths are s3://bucket/key.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3 store. Static credentials are used when both key and
// secret are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("storage/s3: S3_BUCKET is not configured")
	}

	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.S3Region),
	}
	if cfg.S3Key != "" && cfg.S3Secret != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage/s3: load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // MinIO
		})
	}

	return &S3{client: s3.NewFromConfig(awsCfg, clientOpts...), bucket: cfg.S3Bucket}, nil
}

// Store uploads data under key.
func (d *S3) Store(ctx context.Context, key string, data []byte) (string, error) {
	key = strings.TrimLeft(key, "/")
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("storage/s3: put %s: %w", key, err)
	}
	return s3Scheme + d.bucket + "/" + key, nil
}

// Fetch downloads the object at an s3://bucket/key path.
func (d *S3) Fetch(ctx context.Context, path string) ([]byte, error) {
	key, err := d.keyFor(path)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage/s3: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (d *S3) keyFor(path string) (string, error) {
	prefix := s3Scheme + d.bucket + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("storage/s3: %s is not in bucket %s", path, d.bucket)
	}
	return strings.TrimPrefix(path, prefix), nil
}
