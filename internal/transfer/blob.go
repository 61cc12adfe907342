package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"

	"github.com/JaimeStill/intake/internal/backend"
)

type blobWriter struct {
	client *http.Client
}

// A destination carrying a SAS signature is written anonymously. Otherwise the
// ambient Azure identity (environment, managed identity, CLI) authorizes the write.
func (b *blobWriter) write(ctx context.Context, target *url.URL, _ backend.Destination, file File) error {
	opts := &blockblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: b.client,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	}

	client, err := b.newClient(target, opts)
	if err != nil {
		return err
	}

	upload := &blockblob.UploadBufferOptions{}
	if file.ContentType != "" {
		contentType := file.ContentType
		upload.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}

	if _, err := client.UploadBuffer(ctx, file.Data, upload); err != nil {
		return fmt.Errorf("upload block blob: %w", err)
	}
	return nil
}

func (b *blobWriter) newClient(target *url.URL, opts *blockblob.ClientOptions) (*blockblob.Client, error) {
	if target.Query().Has("sig") {
		client, err := blockblob.NewClientWithNoCredential(target.String(), opts)
		if err != nil {
			return nil, fmt.Errorf("create blob client: %w", err)
		}
		return client, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve azure credential: %w", err)
	}

	client, err := blockblob.NewClient(target.String(), cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return client, nil
}
