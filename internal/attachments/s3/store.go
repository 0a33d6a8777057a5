package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"famledger/internal/attachments"
)

// Store implements attachments.Store on an S3-compatible backend (AWS S3 or
// MinIO). Single bucket; keys map to object keys directly.
type Store struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  *url.URL // set for custom endpoints such as MinIO
	pathStyle bool
}

var _ attachments.Store = (*Store)(nil)

type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// New creates an S3 attachment store. Credentials come from the default
// AWS chain (AWS_ACCESS_KEY_ID and friends).
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newWithConfig(awsCfg, cfg, region)
}

func newWithConfig(awsCfg aws.Config, cfg Config, region string) (*Store, error) {
	var endpoint *url.URL
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse s3 endpoint: %w", err)
		}
		endpoint = u
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, region: region, endpoint: endpoint, pathStyle: cfg.PathStyle}, nil
}

// Put uploads the blob create-only and returns its object URL. Uploads are
// bounded by attachments.MaxSize, so the body is buffered to give the SDK a
// seekable reader.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err == nil {
		return "", fmt.Errorf("attachment %s already exists", key)
	}

	data, err := io.ReadAll(io.LimitReader(r, attachments.MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read attachment %s: %w", key, err)
	}
	if len(data) > attachments.MaxSize {
		return "", fmt.Errorf("attachment %s exceeds %d bytes", key, attachments.MaxSize)
	}

	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: bytes.NewReader(data)}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put attachment %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

func (s *Store) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.endpoint != nil {
		base := strings.TrimRight(s.endpoint.String(), "/")
		if s.pathStyle {
			return base + "/" + s.bucket + "/" + escaped
		}
		return s.endpoint.Scheme + "://" + s.bucket + "." + s.endpoint.Host + "/" + escaped
	}
	if s.pathStyle {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.region, s.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}
