package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/service"
)

// CreateParticipation handles POST /v1/hangouts/:hangoutId/participations.
func (h *HangoutHandler) CreateParticipation(c echo.Context) error {
	userID, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.CreateParticipationInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.Svc.CreateParticipation(c.Request().Context(), userID, c.Param("hangoutId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdateParticipation handles
// PATCH /v1/hangouts/:hangoutId/participations/:participationId.
func (h *HangoutHandler) UpdateParticipation(c echo.Context) error {
	var in service.UpdateParticipationInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.Svc.UpdateParticipation(c.Request().Context(), c.Param("hangoutId"), c.Param("participationId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *HangoutHandler) DeleteParticipation(c echo.Context) error {
	if err := h.Svc.DeleteParticipation(c.Request().Context(), c.Param("hangoutId"), c.Param("participationId")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
