package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"go-scan-sorter/internal/repository"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobClient is the part of azblob.Client the source needs.
type BlobClient interface {
	NewListBlobsFlatPager(containerName string, o *azblob.ListBlobsFlatOptions) *runtime.Pager[azblob.ListBlobsFlatResponse]
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// AzureSource copies images out of a blob container, optionally below a prefix.
type AzureSource struct {
	client    BlobClient
	container string
	prefix    string
	blobs     map[string]string
}

func NewAzureClient(accountName, accountKey string) (*azblob.Client, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewAzureSource reads "container" or "container/prefix" from location.
func NewAzureSource(client BlobClient, location string) *AzureSource {
	containerName, prefix, _ := strings.Cut(location, "/")
	return &AzureSource{client: client, container: containerName, prefix: prefix, blobs: make(map[string]string)}
}

func (s *AzureSource) Name() string {
	return "azure:" + s.container
}

func (s *AzureSource) List(ctx context.Context) ([]string, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if s.prefix != "" {
		opts.Prefix = &s.prefix
	}
	pager := s.client.NewListBlobsFlatPager(s.container, opts)

	s.blobs = make(map[string]string)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := path.Base(*item.Name)
			if !repository.IsImageFile(name) {
				continue
			}
			// nested blobs with the same base name: first one wins
			if _, seen := s.blobs[name]; !seen {
				s.blobs[name] = *item.Name
			}
		}
	}

	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *AzureSource) Copy(ctx context.Context, name, dstDir string) error {
	blobName, ok := s.blobs[name]
	if !ok {
		return fmt.Errorf("unknown blob %q", name)
	}

	resp, err := s.client.DownloadStream(ctx, s.container, blobName, nil)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	return writeFile(dstDir, name, body)
}
