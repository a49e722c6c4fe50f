package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Search error categories. Concrete failures wrap one of these so callers
// can branch with errors.Is.
var (
	ErrBackendUnavailable = stderrors.New("search backend unavailable")
	ErrIndexMissing       = stderrors.New("search index missing")
	ErrInvalidRequest     = stderrors.New("invalid search request")
	ErrBulkFailed         = stderrors.New("bulk operation reported failures")
	ErrDocumentNotFound   = stderrors.New("document not found")
	ErrRebuildInProgress  = stderrors.New("index rebuild already in progress")
)

// BackendError describes a failed call to the search backend.
type BackendError struct {
	Op     string
	Index  string
	Status int
	Reason string
	Err    error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Index)
	if e.Status != 0 {
		msg += fmt.Sprintf(": [%d]", e.Status)
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports category membership. An index-missing failure is also a
// backend-unavailable failure from the caller's perspective.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrIndexMissing:
		return e.Status == http.StatusNotFound && e.Reason == "index_not_found_exception"
	case ErrDocumentNotFound:
		return e.Status == http.StatusNotFound && e.Reason != "index_not_found_exception"
	case ErrBackendUnavailable:
		if e.Status == 0 || e.Status >= http.StatusInternalServerError {
			return true
		}
		return e.Status == http.StatusNotFound && e.Reason == "index_not_found_exception"
	}
	return false
}

// InvalidRequest wraps ErrInvalidRequest with a field-level message.
type InvalidRequest struct {
	Field   string
	Message string
}

func (e *InvalidRequest) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *InvalidRequest) Unwrap() error {
	return ErrInvalidRequest
}

// NewInvalidRequest creates a field-level validation failure
func NewInvalidRequest(field, message string) *InvalidRequest {
	return &InvalidRequest{Field: field, Message: message}
}

// FromSearchError maps a search-layer error onto the API error taxonomy.
func FromSearchError(err error) *APIError {
	var invalid *InvalidRequest
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &invalid):
		return ValidationError(invalid.Field, invalid.Message)
	case stderrors.Is(err, ErrInvalidRequest):
		return BadRequest(err.Error())
	case stderrors.Is(err, ErrRebuildInProgress):
		return Conflict(err.Error())
	case stderrors.Is(err, ErrDocumentNotFound):
		return NotFound("document")
	case stderrors.Is(err, context.DeadlineExceeded):
		return Timeout("search")
	case stderrors.Is(err, ErrBackendUnavailable):
		return ServiceUnavailable("search")
	default:
		return InternalError("search failed").WithDetails(err.Error())
	}
}
