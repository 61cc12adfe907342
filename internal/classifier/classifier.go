// Package classifier guesses a document's declared type by sending it to the
// backend's classification endpoint. Classification is an optimization: every
// failure collapses into ErrClassificationUnavailable and callers fall back to
// TypeGeneric rather than aborting the upload.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/pkg/formatting"
)

// ErrClassificationUnavailable is returned for any failed classification attempt.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// Remote is the backend operation the classifier depends on.
type Remote interface {
	Classify(ctx context.Context, filename string, data []byte) (*backend.Classification, error)
}

// Result is a classification guess with its optional metadata.
type Result struct {
	DeclaredType DocumentType   `json:"declared_type"`
	Confidence   *float64       `json:"confidence,omitempty"`
	Method       string         `json:"method,omitempty"`
	Explain      map[string]any `json:"explain,omitempty"`
}

// Client classifies documents through a Remote.
type Client struct {
	remote  Remote
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a classifier client. A positive timeout bounds each request
// independently of the caller's context.
func New(remote Remote, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		remote:  remote,
		timeout: timeout,
		logger:  logger.With("system", "classifier"),
	}
}

// Classify makes a single classification request. It does not retry.
func (c *Client) Classify(ctx context.Context, filename string, data []byte) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.remote.Classify(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	if resp == nil || resp.DocumentType == "" {
		return nil, fmt.Errorf("%w: empty document type", ErrClassificationUnavailable)
	}

	result := &Result{
		DeclaredType: ParseDocumentType(resp.DocumentType),
		Confidence:   resp.Confidence,
		Method:       resp.Method,
	}

	if len(resp.Explain) > 0 {
		explain, err := formatting.Parse[map[string]any](resp.Explain)
		if err != nil {
			c.logger.Debug("classification explain not decodable", "filename", filename, "error", err)
		} else {
			result.Explain = explain
		}
	}

	return result, nil
}

// DeclaredTypeOrDefault classifies the document and returns TypeGeneric when
// classification is unavailable. The Result is nil in that case.
func (c *Client) DeclaredTypeOrDefault(ctx context.Context, filename string, data []byte) (DocumentType, *Result) {
	result, err := c.Classify(ctx, filename, data)
	if err != nil {
		c.logger.Warn("classification unavailable, using generic", "filename", filename, "error", err)
		return TypeGeneric, nil
	}

	c.logger.Info(
		"document classified",
		"filename", filename,
		"declared_type", result.DeclaredType,
		"method", result.Method,
	)
	return result.DeclaredType, result
}
