package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

// MinioOptions configures an object-store fetcher
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectFetcher reads s3://bucket/key locators from an S3-compatible store.
type ObjectFetcher struct {
	client *minio.Client
}

// NewObject connects a MinIO client.
func NewObject(opts MinioOptions) (*ObjectFetcher, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint required: %w", internalerr.ErrInvalidConfig)
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &ObjectFetcher{client: client}, nil
}

// Fetch implements Fetcher.
func (f *ObjectFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, err := splitObjectLocator(locator)
	if err != nil {
		return nil, err
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyObjectErr(locator, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyObjectErr(locator, err)
	}
	return data, nil
}

func splitObjectLocator(locator string) (string, string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("locator %q: %w", locator, internalerr.ErrInvalidInput)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("locator %q has no object key: %w", locator, internalerr.ErrInvalidInput)
	}
	return u.Host, key, nil
}

func classifyObjectErr(locator string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("fetch %s: %w", locator, internalerr.ErrNotFound)
	case "AccessDenied":
		return fmt.Errorf("fetch %s: %w", locator, err)
	}
	return fmt.Errorf("fetch %s: %w", locator, errors.Join(internalerr.ErrTransient, err))
}
