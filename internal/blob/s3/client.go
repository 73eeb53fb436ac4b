// Package s3blob archives the suggestion log and decision journal to
// S3-compatible object storage (AWS, MinIO, R2, iDrive e2) using AWS SDK v2.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	defaultRegion = "us-east-1"
	healthTimeout = 10 * time.Second
)

// ClientConfig describes the archive bucket.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for MinIO, R2 and similar. A bare
	// host:port gets a scheme from UseSSL.
	Endpoint string
	// Region defaults to us-east-1, which MinIO accepts.
	Region string
	Bucket string
	// Prefix is prepended to every archive key, e.g. "prod/sniper".
	Prefix string
	// AccessKey and SecretKey are optional; when both are empty the SDK's
	// default chain (env, shared config, instance role) supplies credentials.
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Client is the archive bucket handle.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New builds an archive client. It does not touch the network; call Health
// to verify the bucket.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3blob: bucket name is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("s3blob: access_key and secret_key must be set together")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Health checks that the archive bucket exists and is reachable with the
// configured credentials.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: archive bucket %s unreachable: %w", c.bucket, err)
	}
	return nil
}

// Close releases nothing; the SDK's HTTP client needs no teardown.
func (c *Client) Close() error { return nil }

// key maps an archive path to its object key under the configured prefix.
func (c *Client) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if c.prefix == "" {
		return p
	}
	return path.Join(c.prefix, p)
}

// normaliseEndpoint adds a scheme to a bare host and strips a trailing slash.
// An empty endpoint stays empty so the SDK resolves AWS itself.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return ""
	}
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
