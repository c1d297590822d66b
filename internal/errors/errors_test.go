package errors

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewError("missing").Mark(ErrNotFound), http.StatusNotFound},
		{"validation", NewError("bad").Mark(ErrValidation), http.StatusBadRequest},
		{"duplicate resolves to validation", NewError("dup").Mark(ErrAlreadyExists, ErrValidation), http.StatusBadRequest},
		{"concurrency", NewError("locked").Mark(ErrConcurrency), http.StatusConflict},
		{"database", NewError("boom").Mark(ErrDatabase), http.StatusInternalServerError},
		{"unmarked", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestMarksSurviveWrapping(t *testing.T) {
	base := NewError("payment not found").
		WithHint("Payment no longer exists").
		Mark(ErrNotFound)
	wrapped := errors.Wrap(base, "deleting payment")

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, ErrCodeNotFound, CodeFromErr(wrapped))
	assert.Contains(t, errors.GetAllHints(wrapped), "Payment no longer exists")
}
