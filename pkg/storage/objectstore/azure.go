package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type azureClient struct {
	client *azblob.Client
}

func newAzureClient(cfg Config) (Client, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("azure blob store requires a connection string")
	}
	cl, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("init azure blob client: %w", err)
	}
	return &azureClient{client: cl}, nil
}

func (a *azureClient) Open(ctx context.Context, container, key string) (*Object, error) {
	resp, err := a.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("download blob %s/%s: %w", container, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("download blob %s/%s: %w", container, key, err)
	}
	obj := &Object{Body: resp.Body}
	if resp.ContentLength != nil {
		obj.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}
	return obj, nil
}

func (a *azureClient) EnsureContainer(ctx context.Context, container string) error {
	_, err := a.client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", container, err)
	}
	return nil
}

func (a *azureClient) Put(ctx context.Context, container, key string, reader io.Reader, _ int64, opts PutOptions) error {
	upload := &azblob.UploadStreamOptions{}
	if opts.ContentType != "" {
		upload.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &opts.ContentType}
	}
	if len(opts.Metadata) > 0 {
		upload.Metadata = make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			upload.Metadata[k] = &v
		}
	}
	if _, err := a.client.UploadStream(ctx, container, key, reader, upload); err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", container, key, err)
	}
	return nil
}

func (a *azureClient) Close() error {
	return nil
}
