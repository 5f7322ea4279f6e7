// Package s3store implements storage.Provider on an S3-compatible bucket
// fronted by a CDN or static website endpoint.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/amodomio/media-uploader/internal/storage"
)

const fallbackContentType = "application/octet-stream"

// API is the subset of *s3.Client used by Provider.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ClientConfig describes how to reach the bucket.
type ClientConfig struct {
	Region          string
	Endpoint        string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient builds an S3 client with static credentials. Endpoint is only
// needed for S3-compatible services such as MinIO or R2.
func NewClient(cfg ClientConfig) (*s3.Client, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("s3store: region is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("s3store: access key id and secret access key are required")
	}
	creds := aws.Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Source:          "media-uploader",
	}
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})),
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return s3.New(opts), nil
}

// Provider stores objects under Prefix in Bucket.
type Provider struct {
	api     API
	bucket  string
	prefix  string
	baseURL string
}

var _ storage.Provider = (*Provider)(nil)

// New returns a provider writing to bucket. Objects are published under
// baseURL at the same path as their object key.
func New(api API, bucket, prefix, baseURL string) (*Provider, error) {
	if api == nil {
		return nil, errors.New("s3store: client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	return &Provider{
		api:     api,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Promote uploads srcPath to key and removes the local file once the
// object is written. A failed upload leaves srcPath in place.
func (p *Provider) Promote(ctx context.Context, srcPath, key string) error {
	objectKey, err := p.objectKey(key)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("s3store: open %s: %w", srcPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("s3store: stat %s: %w", srcPath, err)
	}

	_, err = p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(objectKey),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(objectKey)),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", objectKey, err)
	}

	_ = f.Close()
	if err := os.Remove(srcPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("s3store: remove %s: %w", srcPath, err)
	}
	return nil
}

// Open streams the object stored at key.
func (p *Provider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := p.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("s3store: get %s: %w", objectKey, err)
	}
	return out.Body, nil
}

// AccessPath joins the public base URL and the object key.
func (p *Provider) AccessPath(key string) string {
	objectKey, err := p.objectKey(key)
	if err != nil {
		objectKey = strings.TrimLeft(path.Clean("/"+key), "/")
	}
	return p.baseURL + "/" + objectKey
}

func (p *Provider) objectKey(key string) (string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	if p.prefix == "" {
		return cleaned, nil
	}
	return p.prefix + "/" + cleaned, nil
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return fallbackContentType
}
