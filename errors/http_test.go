package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"wrapped forbidden", fmt.Errorf("%w: not a participant", ErrForbidden), http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"invalid state", fmt.Errorf("%w: match is accepted", ErrInvalidState), http.StatusConflict},
		{"self swipe", ErrInvalidOperation, http.StatusBadRequest},
		{"bad payload", ErrInvalidPayload, http.StatusBadRequest},
		{"unknown", fmt.Errorf("disk is gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		req.Equal(tt.want, HTTPStatus(tt.err), tt.name)
	}
}
