// Package backend is the HTTP client for the remote scoring and extraction service.
// It exposes the six operations the ingestion protocol consumes: slot requests,
// upload confirmation, document status, classification, and evaluation creation,
// plus the shared HTTP client used by the transfer strategies.
package backend

import "encoding/json"

// DocumentStatus is the extraction state reported by the backend.
type DocumentStatus string

// Document status values. Anything else is treated as pending.
const (
	StatusPending       DocumentStatus = "pending"
	StatusExtracted     DocumentStatus = "extracted"
	StatusExtractFailed DocumentStatus = "extract-failed"
)

// SlotRequest carries the file metadata sent when requesting a write slot.
type SlotRequest struct {
	Filename      string            `json:"filename"`
	ContentType   string            `json:"contentType"`
	DeclaredType  string            `json:"declaredType"`
	OwnerEntityID string            `json:"ownerEntityId"`
	IdentityHints map[string]string `json:"identityHints,omitempty"`
	SizeBytes     int64             `json:"sizeBytes"`
	PageCount     *int              `json:"pageCount,omitempty"`
}

// Destination is where the file bytes are written. Method and Headers apply
// only to direct writes; relay addresses always receive a multipart POST.
type Destination struct {
	Address string            `json:"address"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Slot is the backend's answer to a slot request.
type Slot struct {
	DocumentID  string      `json:"documentId"`
	Destination Destination `json:"destination"`
}

// ExtractError is the structured failure reported for an extract-failed document.
type ExtractError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusMeta holds the optional payloads attached to a status response.
// Partial may be present while a document is still pending.
type StatusMeta struct {
	Variables    json.RawMessage `json:"variables,omitempty"`
	Partial      json.RawMessage `json:"partial,omitempty"`
	ExtractError *ExtractError   `json:"extractError,omitempty"`
}

// StatusResponse is the body returned by the document status endpoint.
type StatusResponse struct {
	Status DocumentStatus `json:"status"`
	Meta   *StatusMeta    `json:"meta,omitempty"`
}

// Classification is the body returned by the classify endpoint.
// Explain is model output and may arrive as an object or as a JSON-encoded string.
type Classification struct {
	DocumentType string          `json:"documentType"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Method       string          `json:"method,omitempty"`
	Explain      json.RawMessage `json:"explain,omitempty"`
}

type confirmResponse struct {
	Acknowledged *bool `json:"acknowledged,omitempty"`
}

type evaluationRequest struct {
	OwnerEntityID string `json:"ownerEntityId"`
	DocumentID    string `json:"documentId"`
}

type evaluationResponse struct {
	EvaluationID string `json:"evaluationId"`
}
