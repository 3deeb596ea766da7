package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned by Open when the blob does not exist.
var ErrObjectNotFound = errors.New("objectstore: object not found")

// Config contains the information required to talk to a blob store.
type Config struct {
	Provider         string
	ConnectionString string
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	UseSSL           bool
}

// Object is an open blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Client is the storage surface the asset manager needs: read the source
// blob and write into an asset's container.
type Client interface {
	Open(ctx context.Context, container, key string) (*Object, error)
	EnsureContainer(ctx context.Context, container string) error
	Put(ctx context.Context, container, key string, reader io.Reader, size int64, opts PutOptions) error
	Close() error
}

// PutOptions carries optional blob properties.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// New creates a blob store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "azure", "azure-blob":
		return newAzureClient(cfg)
	case "minio", "s3":
		return newMinioClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

type minioClient struct {
	client *minio.Client
	region string
}

func newMinioClient(cfg Config) (Client, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &minioClient{client: cl, region: cfg.Region}, nil
}

func (m *minioClient) Open(ctx context.Context, container, key string) (*Object, error) {
	obj, err := m.client.GetObject(ctx, container, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", container, key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("stat object %s/%s: %w", container, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat object %s/%s: %w", container, key, err)
	}
	return &Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

func (m *minioClient) EnsureContainer(ctx context.Context, container string) error {
	exists, err := m.client.BucketExists(ctx, container)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", container, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, container, minio.MakeBucketOptions{Region: m.region}); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("make bucket %s: %w", container, err)
	}
	return nil
}

func (m *minioClient) Put(ctx context.Context, container, key string, reader io.Reader, size int64, opts PutOptions) error {
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType, UserMetadata: opts.Metadata}
	if _, err := m.client.PutObject(ctx, container, key, reader, size, putOpts); err != nil {
		return fmt.Errorf("put object %s/%s: %w", container, key, err)
	}
	return nil
}

func (m *minioClient) Close() error {
	return nil
}
