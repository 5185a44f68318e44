package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/service"
)

// CreateHangout handles POST /v1/hangouts.
func (h *HangoutHandler) CreateHangout(c echo.Context) error {
	userID, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.CreateHangoutInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	hg, err := h.Svc.CreateHangout(c.Request().Context(), userID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, hg)
}

// GetHangout handles GET /v1/hangouts/:hangoutId and returns the full
// aggregate with the referenced users.
func (h *HangoutHandler) GetHangout(c echo.Context) error {
	d, err := h.Svc.GetHangoutDetail(c.Request().Context(), c.Param("hangoutId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateHangout handles PATCH /v1/hangouts/:hangoutId.
func (h *HangoutHandler) UpdateHangout(c echo.Context) error {
	var in service.UpdateHangoutInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	hg, err := h.Svc.UpdateHangout(c.Request().Context(), c.Param("hangoutId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hg)
}

// DeleteHangout handles DELETE /v1/hangouts/:hangoutId.
func (h *HangoutHandler) DeleteHangout(c echo.Context) error {
	n, err := h.Svc.DeleteHangout(c.Request().Context(), c.Param("hangoutId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

type groupsRequest struct {
	GroupIDs []string `json:"groupIds"`
}

// AssociateGroups handles POST /v1/hangouts/:hangoutId/groups.
func (h *HangoutHandler) AssociateGroups(c echo.Context) error {
	var req groupsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	hg, err := h.Svc.AssociateGroups(c.Request().Context(), c.Param("hangoutId"), req.GroupIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hg)
}

// DisassociateGroup handles DELETE /v1/hangouts/:hangoutId/groups/:groupId.
func (h *HangoutHandler) DisassociateGroup(c echo.Context) error {
	hg, err := h.Svc.DisassociateGroup(c.Request().Context(), c.Param("hangoutId"), c.Param("groupId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hg)
}

// RepairPointers handles POST /v1/hangouts/:hangoutId/pointers/repair.
func (h *HangoutHandler) RepairPointers(c echo.Context) error {
	report, err := h.Svc.RepairPointers(c.Request().Context(), c.Param("hangoutId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// GroupFeed handles GET /v1/groups/:groupId/feed.  The body token is also
// sent as the ETag so clients can revalidate with If-None-Match.
func (h *HangoutHandler) GroupFeed(c echo.Context) error {
	feed, err := h.Svc.ListGroupFeed(c.Request().Context(), c.Param("groupId"))
	if err != nil {
		return writeError(c, err)
	}
	if feed.Token != "" {
		c.Response().Header().Set("ETag", `"`+feed.Token+`"`)
	}
	return c.JSON(http.StatusOK, feed)
}
