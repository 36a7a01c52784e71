package store

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStore wraps an Azure Blob Storage container client.
type AzureStore struct {
	container *container.Client
}

// NewAzureStore creates a store for one container from a storage account
// connection string.
func NewAzureStore(connectionString, containerName string) (*AzureStore, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("storage connection string is empty")
	}
	if containerName == "" {
		return nil, fmt.Errorf("storage container is empty")
	}
	c, err := container.NewClientFromConnectionString(connectionString, containerName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create container client for %s: %w", containerName, err)
	}
	return &AzureStore{container: c}, nil
}

func (s *AzureStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	opts := &container.ListBlobsFlatOptions{
		Include: container.ListBlobsInclude{Metadata: true},
	}
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}

	var entries []Entry
	pager := s.container.NewListBlobsFlatPager(opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs under %q: %w", prefix, err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			entries = append(entries, Entry{
				Path:     *item.Name,
				Metadata: fromAzureMetadata(item.Metadata),
			})
		}
	}
	return entries, nil
}

func (s *AzureStore) Download(ctx context.Context, path string) (*Content, error) {
	resp, err := s.container.NewBlobClient(path).DownloadStream(ctx, nil)
	if err != nil {
		return nil, wrapAzureError("download", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	c := &Content{Data: data}
	if resp.ContentEncoding != nil {
		c.ContentEncoding = *resp.ContentEncoding
	}
	return c, nil
}

func (s *AzureStore) SetMetadata(ctx context.Context, path string, metadata map[string]string) error {
	_, err := s.container.NewBlobClient(path).SetMetadata(ctx, toAzureMetadata(metadata), nil)
	if err != nil {
		return wrapAzureError("set metadata on", path, err)
	}
	return nil
}

func (s *AzureStore) StartCopy(ctx context.Context, src, dst string) error {
	source := s.container.NewBlobClient(src).URL()
	_, err := s.container.NewBlobClient(dst).StartCopyFromURL(ctx, source, nil)
	if err != nil {
		return fmt.Errorf("failed to start copy of %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *AzureStore) CopyStatus(ctx context.Context, dst string) (CopyStatus, error) {
	props, err := s.container.NewBlobClient(dst).GetProperties(ctx, nil)
	if err != nil {
		return CopyNone, wrapAzureError("read properties of", dst, err)
	}
	if props.CopyStatus == nil {
		return CopyNone, nil
	}
	switch *props.CopyStatus {
	case blob.CopyStatusTypePending:
		return CopyPending, nil
	case blob.CopyStatusTypeSuccess:
		return CopySuccess, nil
	case blob.CopyStatusTypeAborted:
		return CopyAborted, nil
	case blob.CopyStatusTypeFailed:
		return CopyFailed, nil
	default:
		return CopyStatus(*props.CopyStatus), nil
	}
}

func (s *AzureStore) Delete(ctx context.Context, path string) error {
	_, err := s.container.NewBlobClient(path).Delete(ctx, nil)
	if err != nil {
		return wrapAzureError("delete", path, err)
	}
	return nil
}

func wrapAzureError(op, path string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("failed to %s blob %s: %w", op, path, ErrNotFound)
	}
	return fmt.Errorf("failed to %s blob %s: %w", op, path, err)
}

func fromAzureMetadata(m map[string]*string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func toAzureMetadata(m map[string]string) map[string]*string {
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = to.Ptr(v)
	}
	return out
}
