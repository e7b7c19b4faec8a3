package chat

import (
	"errors"
	"net/http"

	"github.com/piliapp/pili/internal/memory"
)

// Domain errors for chat operations.
var (
	ErrInvalidRequest = errors.New("invalid chat request")
	ErrSessionBuild   = errors.New("session build failed")
)

// MapHTTPStatus maps domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	if errors.Is(err, memory.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrSessionBuild) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
