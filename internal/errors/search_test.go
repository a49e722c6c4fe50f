package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendError_Categories(t *testing.T) {
	missing := &BackendError{Op: "search", Index: "pets", Status: 404, Reason: "index_not_found_exception"}
	assert.ErrorIs(t, missing, ErrIndexMissing)
	assert.ErrorIs(t, missing, ErrBackendUnavailable)
	assert.NotErrorIs(t, missing, ErrDocumentNotFound)

	doc := &BackendError{Op: "update", Index: "pets", Status: 404, Reason: "document_missing_exception"}
	assert.ErrorIs(t, doc, ErrDocumentNotFound)
	assert.NotErrorIs(t, doc, ErrBackendUnavailable)

	transport := &BackendError{Op: "search", Index: "pets", Err: fmt.Errorf("connection refused")}
	assert.ErrorIs(t, transport, ErrBackendUnavailable)

	bad := &BackendError{Op: "search", Index: "pets", Status: 400, Reason: "parsing_exception"}
	assert.NotErrorIs(t, bad, ErrBackendUnavailable)
}

func TestFromSearchError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"field validation", NewInvalidRequest("limit", "must be positive"), http.StatusUnprocessableEntity, "limit"},
		{"wrapped validation", fmt.Errorf("search: %w", NewInvalidRequest("lat", "out of range")), http.StatusUnprocessableEntity, "lat"},
		{"bare invalid request", fmt.Errorf("bad query: %w", ErrInvalidRequest), http.StatusBadRequest, ""},
		{"rebuild running", fmt.Errorf("pets: %w", ErrRebuildInProgress), http.StatusConflict, ""},
		{"missing document", &BackendError{Op: "update", Status: 404, Reason: "document_missing_exception"}, http.StatusNotFound, ""},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ""},
		{"unavailable", &BackendError{Op: "search", Status: 503}, http.StatusServiceUnavailable, ""},
		{"index missing", &BackendError{Op: "search", Status: 404, Reason: "index_not_found_exception"}, http.StatusServiceUnavailable, ""},
		{"unknown", stderrors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromSearchError(tt.err)
			if assert.NotNil(t, apiErr) {
				assert.Equal(t, tt.status, apiErr.Status)
				assert.Equal(t, tt.field, apiErr.Field)
			}
		})
	}

	assert.Nil(t, FromSearchError(nil))
}
