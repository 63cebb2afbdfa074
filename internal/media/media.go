// Package media stores complaint photos in S3-compatible object storage.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicBaseURL is prepended to object keys in returned URIs. Defaults
	// to endpoint/bucket when empty.
	PublicBaseURL string
}

// Uploader stores complaint images. When not configured it is disabled and
// uploads return an error; complaint creation without an image is unaffected.
type Uploader struct {
	cfg    Config
	client s3Client
}

func NewUploader(cfg Config) *Uploader {
	u := &Uploader{cfg: cfg}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		u.client = newS3Client(cfg)
	}
	return u
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether object storage is configured.
func (u *Uploader) Enabled() bool {
	return u.client != nil
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadDataURI decodes a base64 data URI ("data:image/jpeg;base64,...")
// and stores it under a fresh key. Returns the public URI of the object.
func (u *Uploader) UploadDataURI(ctx context.Context, dataURI string) (string, error) {
	if !u.Enabled() {
		return "", fmt.Errorf("media storage is not configured")
	}

	contentType, data, err := decodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}

	key := fmt.Sprintf("complaints/%s%s", uuid.NewString(), ext)

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	return u.publicURI(key), nil
}

// Delete removes a previously uploaded object by its public URI. Unknown
// URIs are ignored so callers can pass through externally hosted images.
func (u *Uploader) Delete(ctx context.Context, uri string) error {
	if !u.Enabled() {
		return nil
	}
	base := u.baseURL() + "/"
	if !strings.HasPrefix(uri, base) {
		return nil
	}
	key := strings.TrimPrefix(uri, base)

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (u *Uploader) baseURL() string {
	if u.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(u.cfg.PublicBaseURL, "/")
	}
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.cfg.Endpoint, "/"), u.cfg.Bucket)
}

func (u *Uploader) publicURI(key string) string {
	return u.baseURL() + "/" + key
}

func decodeDataURI(uri string) (contentType string, data []byte, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return "", nil, fmt.Errorf("not a data URI")
	}
	rest := uri[len(prefix):]

	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	contentType = rest[:semi]

	data, err = base64.StdEncoding.DecodeString(rest[semi+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("decode image data: %w", err)
	}
	return contentType, data, nil
}
