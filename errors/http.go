package errors

import "net/http"

// HTTPStatus maps the domain taxonomy to a transport status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case Is(err, ErrForbidden):
		return http.StatusForbidden
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrConflict), Is(err, ErrInvalidState):
		return http.StatusConflict
	case Is(err, ErrInvalidOperation), Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case Is(err, ErrProviderUnavailable), Is(err, ErrCommandRejected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
