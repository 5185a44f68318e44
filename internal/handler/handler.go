// Package handler exposes the reservation service over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/middleware"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
	"github.com/iliyamo/hangout-reservations/internal/service"
)

// Reservations is the part of *service.Service the handlers call.
type Reservations interface {
	CreateHangout(ctx context.Context, userID string, in service.CreateHangoutInput) (model.Hangout, error)
	UpdateHangout(ctx context.Context, hangoutID string, in service.UpdateHangoutInput) (model.Hangout, error)
	DeleteHangout(ctx context.Context, hangoutID string) (int, error)
	GetHangoutDetail(ctx context.Context, hangoutID string) (service.HangoutDetail, error)
	AssociateGroups(ctx context.Context, hangoutID string, groupIDs []string) (model.Hangout, error)
	DisassociateGroup(ctx context.Context, hangoutID, groupID string) (model.Hangout, error)
	ListGroupFeed(ctx context.Context, groupID string) (service.GroupFeed, error)
	RepairPointers(ctx context.Context, hangoutID string) (pointer.Report, error)

	CreateOffer(ctx context.Context, userID, hangoutID string, in service.CreateOfferInput) (model.ReservationOffer, error)
	UpdateOffer(ctx context.Context, hangoutID, offerID string, in service.UpdateOfferInput) (model.ReservationOffer, error)
	DeleteOffer(ctx context.Context, hangoutID, offerID string) error
	ClaimSpot(ctx context.Context, hangoutID, offerID, userID string) (model.Participation, error)
	UnclaimSpot(ctx context.Context, hangoutID, offerID, userID string) (model.ReservationOffer, error)
	CompleteOffer(ctx context.Context, hangoutID, offerID string, sel service.Selector, f service.CompleteFields) (service.CompletionResult, error)

	CreateParticipation(ctx context.Context, userID, hangoutID string, in service.CreateParticipationInput) (model.Participation, error)
	UpdateParticipation(ctx context.Context, hangoutID, participationID string, in service.UpdateParticipationInput) (model.Participation, error)
	DeleteParticipation(ctx context.Context, hangoutID, participationID string) error
}

// HangoutHandler serves every /v1 route.  Routes behind JWTAuth read the
// caller from the context.
type HangoutHandler struct {
	Svc Reservations
}

// NewHangoutHandler panics on a nil service.
func NewHangoutHandler(svc Reservations) *HangoutHandler {
	if svc == nil {
		panic("nil service passed to NewHangoutHandler")
	}
	return &HangoutHandler{Svc: svc}
}

// caller returns the authenticated user; ok is false on anonymous requests.
func caller(c echo.Context) (string, bool) {
	id := middleware.UserID(c)
	return id, id != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
