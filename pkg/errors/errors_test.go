package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("parsing: %w", ErrInvalidInput), http.StatusBadRequest},
		{ErrTooManyClauses, http.StatusBadRequest},
		{fmt.Errorf("doc 3: %w", ErrDocumentDeleted), http.StatusGone},
		{ErrFileNotFound, http.StatusNotFound},
		{ErrLockHeld, http.StatusConflict},
		{fmt.Errorf("publish: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusServiceUnavailable},
		{Corruptf("bad segment %s", "_3"), http.StatusInternalServerError},
		{New(ErrInvalidInput, http.StatusUnprocessableEntity, "custom"), http.StatusUnprocessableEntity},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrLockHeld, http.StatusConflict, "segment %d", 4))
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, "handler: index is locked by another writer: segment 4", err.Error())

	corrupt := Corruptf("term %q after %q", "a", "b")
	assert.ErrorIs(t, corrupt, ErrCorruptIndex)
	assert.Equal(t, `corrupt index: term "a" after "b"`, corrupt.Error())
}
