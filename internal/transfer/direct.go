package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/intake/internal/backend"
)

type direct struct {
	client *http.Client
}

func (d *direct) write(ctx context.Context, target *url.URL, dest backend.Destination, file File) error {
	method := strings.ToUpper(dest.Method)
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(file.Data))
	if err != nil {
		return fmt.Errorf("create direct request: %w", err)
	}

	if file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	}
	for k, v := range dest.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("direct upload: %w", err)
	}
	return checkResponse(resp)
}
