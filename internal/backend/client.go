package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

const maxErrorDetail = 512

// Client issues requests against the backend API rooted at a base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	logger *slog.Logger
}

// New creates a Client from the given configuration.
// The base URL is normalized to end with a slash so relative paths resolve beneath it.
func New(cfg *Config, logger *slog.Logger) (*Client, error) {
	raw := cfg.BaseURL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.TimeoutDuration()},
		token:  cfg.Token,
		logger: logger.With("system", "backend"),
	}, nil
}

// HTTPClient returns the HTTP client shared by backend calls and transfers.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Resolve turns an address returned by the backend into an absolute URL.
// Relative addresses are resolved against the host of the base URL.
func (c *Client) Resolve(address string) (*url.URL, error) {
	ref, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	return c.base.ResolveReference(ref), nil
}

// Authorize sets the bearer token on requests bound for the backend host.
func (c *Client) Authorize(req *http.Request) {
	if c.token != "" && req.URL.Host == c.base.Host {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// RequestUploadSlot asks the backend for a document id and a write destination.
func (c *Client) RequestUploadSlot(ctx context.Context, req SlotRequest) (*Slot, error) {
	var slot Slot
	if err := c.postJSON(ctx, "request upload slot", "documents/upload-slot", req, &slot); err != nil {
		return nil, err
	}
	if slot.DocumentID == "" || slot.Destination.Address == "" {
		return nil, fmt.Errorf("request upload slot: %w: missing document id or destination", ErrMalformedResponse)
	}
	return &slot, nil
}

// ConfirmUpload tells the backend the transfer finished, which enqueues extraction.
func (c *Client) ConfirmUpload(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrEmptyDocumentID
	}

	var resp confirmResponse
	path := "documents/" + url.PathEscape(documentID) + "/confirm"
	if err := c.postJSON(ctx, "confirm upload", path, struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Acknowledged != nil && !*resp.Acknowledged {
		return ErrNotAcknowledged
	}
	return nil
}

// GetDocumentStatus fetches the current extraction state of a document.
func (c *Client) GetDocumentStatus(ctx context.Context, documentID string) (*StatusResponse, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}

	req, err := c.newRequest(ctx, http.MethodGet, "documents/"+url.PathEscape(documentID)+"/status", nil)
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := c.do(req, "get document status", &status); err != nil {
		return nil, err
	}
	if status.Status == "" {
		return nil, fmt.Errorf("get document status: %w: empty status", ErrMalformedResponse)
	}
	return &status, nil
}

// Classify sends the file to the classification endpoint as a multipart upload.
func (c *Client) Classify(ctx context.Context, filename string, data []byte) (*Classification, error) {
	body, contentType, err := MultipartBody("file", filename, "", data)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "documents/classify", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var result Classification
	if err := c.do(req, "classify", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateEvaluation creates the evaluation that depends on an extracted document.
func (c *Client) CreateEvaluation(ctx context.Context, ownerEntityID, documentID string) (string, error) {
	if documentID == "" {
		return "", ErrEmptyDocumentID
	}

	var resp evaluationResponse
	req := evaluationRequest{OwnerEntityID: ownerEntityID, DocumentID: documentID}
	if err := c.postJSON(ctx, "create evaluation", "evaluations", req, &resp); err != nil {
		return "", err
	}
	if resp.EvaluationID == "" {
		return "", fmt.Errorf("create evaluation: %w: missing evaluation id", ErrMalformedResponse)
	}
	return resp.EvaluationID, nil
}

// MultipartBody encodes data as a single-file multipart form.
// An empty contentType defaults to application/octet-stream.
func MultipartBody(field, filename, contentType string, data []byte) (*bytes.Buffer, string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	payload, err := sonic.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.Authorize(req)
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("close response body failed", "op", op, "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := truncate(strings.TrimSpace(string(body)), maxErrorDetail)
		return &StatusError{Op: op, Code: resp.StatusCode, Detail: detail}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
