package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/JaimeStill/intake/internal/backend"
)

type relay struct {
	client    *http.Client
	authorize func(*http.Request)
}

// Relay destinations always take a multipart POST with the bytes under "file".
func (r *relay) write(ctx context.Context, target *url.URL, _ backend.Destination, file File) error {
	body, contentType, err := backend.MultipartBody("file", file.Name, file.ContentType, file.Data)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay upload: %w", err)
	}
	return checkResponse(resp)
}
