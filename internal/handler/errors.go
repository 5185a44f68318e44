package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
)

// statusOf maps an error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.CapacityExceeded, apperr.IllegalOperation:
		return http.StatusConflict
	case apperr.ValidationFailed:
		return http.StatusBadRequest
	case apperr.ConcurrencyExhausted, apperr.TransientInfrastructure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error", "kind", "details"}.  Errors that are
// not *apperr.Error become a bare 500.
func writeError(c echo.Context, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	status := statusOf(ae.Kind)
	if ae.Kind == apperr.ConcurrencyExhausted {
		c.Response().Header().Set("Retry-After", "1")
	}
	details := ae.Details
	if details == nil {
		details = map[string]any{}
	}
	return c.JSON(status, echo.Map{"error": ae.Message, "kind": ae.Kind, "details": details})
}

// badRequest reports an undecodable body.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":   msg,
		"kind":    apperr.ValidationFailed,
		"details": map[string]any{},
	})
}
