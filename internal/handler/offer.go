package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/service"
)

// CreateOffer handles POST /v1/hangouts/:hangoutId/offers.
func (h *HangoutHandler) CreateOffer(c echo.Context) error {
	userID, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.CreateOfferInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	o, err := h.Svc.CreateOffer(c.Request().Context(), userID, c.Param("hangoutId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// UpdateOffer handles PATCH /v1/hangouts/:hangoutId/offers/:offerId.
func (h *HangoutHandler) UpdateOffer(c echo.Context) error {
	var in service.UpdateOfferInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	o, err := h.Svc.UpdateOffer(c.Request().Context(), c.Param("hangoutId"), c.Param("offerId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// DeleteOffer handles DELETE /v1/hangouts/:hangoutId/offers/:offerId.
func (h *HangoutHandler) DeleteOffer(c echo.Context) error {
	if err := h.Svc.DeleteOffer(c.Request().Context(), c.Param("hangoutId"), c.Param("offerId")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ClaimSpot handles POST /v1/hangouts/:hangoutId/offers/:offerId/claim for
// the calling user.
func (h *HangoutHandler) ClaimSpot(c echo.Context) error {
	userID, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	p, err := h.Svc.ClaimSpot(c.Request().Context(), c.Param("hangoutId"), c.Param("offerId"), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// UnclaimSpot handles DELETE /v1/hangouts/:hangoutId/offers/:offerId/claim.
func (h *HangoutHandler) UnclaimSpot(c echo.Context) error {
	userID, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	o, err := h.Svc.UnclaimSpot(c.Request().Context(), c.Param("hangoutId"), c.Param("offerId"), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

type completeRequest struct {
	service.Selector
	service.CompleteFields
}

// CompleteOffer handles POST /v1/hangouts/:hangoutId/offers/:offerId/complete.
// When a conversion batch fails the error carries the sizes of the batches
// that did commit.
func (h *HangoutHandler) CompleteOffer(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Svc.CompleteOffer(c.Request().Context(), c.Param("hangoutId"), c.Param("offerId"), req.Selector, req.CompleteFields)
	if err != nil {
		var ae *apperr.Error
		if len(res.Batches) > 0 && errors.As(err, &ae) {
			err = ae.With("committedBatches", res.Batches).With("converted", res.Converted)
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
