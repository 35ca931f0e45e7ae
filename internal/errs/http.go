package errs

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to its response status and machine-readable
// kind. Unrecognized errors are internal.
func HTTPStatus(err error) (status int, kind string) {
	var insufficient *InsufficientDataError
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "authorization"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, ErrUpstreamFormat), errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream"
	}
	return http.StatusInternalServerError, "internal"
}
