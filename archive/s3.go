package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the settings for an S3 or S3-compatible bucket.
type S3Config struct {
	// Endpoint is only needed for S3-compatible providers such as MinIO.
	Endpoint       string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Region         string `json:"region" yaml:"region" toml:"region"`
	Bucket         string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Prefix         string `json:"prefix" yaml:"prefix" toml:"prefix"`
	AccessKey      string `json:"access_key" yaml:"access_key" toml:"access_key"`
	SecretKey      string `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	UseSSL         bool   `json:"use_ssl" yaml:"use_ssl" toml:"use_ssl"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style" toml:"force_path_style"`
}

// uploader is the part of manager.Uploader we use.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads exports to a bucket.
type S3 struct {
	up     uploader
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3{
		up:     manager.NewUploader(client),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

func (a *S3) Archive(ctx context.Context, runID, name string, data []byte) (string, error) {
	key := path.Join(a.prefix, objectKey(a.now(), runID, name))
	contentType := "text/csv"
	if strings.HasSuffix(name, ".xz") {
		contentType = "application/x-xz"
	}
	_, err := a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: upload %s: %w", key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}

// normaliseEndpoint adds a scheme when the endpoint has none.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}

var (
	_ Archiver = Nop{}
	_ Archiver = (*Dir)(nil)
	_ Archiver = (*S3)(nil)
	_ Archiver = XZ{}
)
