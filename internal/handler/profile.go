package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
)

// ProfileWriter stores the display fields of a user.
type ProfileWriter interface {
	Save(ctx context.Context, u model.User) error
}

// ProfileHandler lets callers publish the name and image shown next to
// their participations.
type ProfileHandler struct {
	Users ProfileWriter
}

func NewProfileHandler(w ProfileWriter) *ProfileHandler {
	if w == nil {
		panic("nil profile writer passed to NewProfileHandler")
	}
	return &ProfileHandler{Users: w}
}

type profileInput struct {
	DisplayName string `json:"displayName"`
	ImagePath   string `json:"imagePath"`
}

// PutProfile handles PUT /v1/users/me.
func (h *ProfileHandler) PutProfile(c echo.Context) error {
	userID, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var in profileInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		return badRequest(c, "displayName is required")
	}
	u := model.User{ID: userID, DisplayName: in.DisplayName, ImagePath: strings.TrimSpace(in.ImagePath)}
	if err := h.Users.Save(c.Request().Context(), u); err != nil {
		return writeError(c, apperr.FromStore("save profile", err))
	}
	return c.JSON(http.StatusOK, model.UserSummary{DisplayName: u.DisplayName, ImagePath: u.ImagePath})
}
