package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse indicates a success status with an unusable body.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrEmptyDocumentID indicates an operation was called without a document id.
	ErrEmptyDocumentID = errors.New("document id must not be empty")
	// ErrNotAcknowledged indicates the backend answered a confirmation with acknowledged=false.
	ErrNotAcknowledged = errors.New("upload not acknowledged")
)

// StatusError reports a non-success HTTP response from the backend.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Code, http.StatusText(e.Code), e.Detail)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// IsStatus reports whether err is a StatusError with the given HTTP code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
