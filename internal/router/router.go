// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hangout-reservations/internal/handler"
	"github.com/iliyamo/hangout-reservations/internal/middleware"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// Options carries the middleware applied to the /v1 routes.  Nil entries are
// skipped.
type Options struct {
	JWTSecret string
	// RateLimit guards every mutating route.
	RateLimit echo.MiddlewareFunc
	// Freshness answers conditional GETs of the group feed.
	Freshness echo.MiddlewareFunc
}

// RegisterHangouts registers the reservation API under /v1.  Every route
// requires a valid access token.
func RegisterHangouts(e *echo.Echo, h *handler.HangoutHandler, opts Options) {
	v1 := e.Group("/v1", middleware.JWTAuth(opts.JWTSecret))

	var write []echo.MiddlewareFunc
	if opts.RateLimit != nil {
		write = append(write, opts.RateLimit)
	}
	var feed []echo.MiddlewareFunc
	if opts.Freshness != nil {
		feed = append(feed, opts.Freshness)
	}

	v1.GET("/groups/:groupId/feed", h.GroupFeed, feed...)

	v1.POST("/hangouts", h.CreateHangout, write...)
	v1.GET("/hangouts/:hangoutId", h.GetHangout)
	v1.PATCH("/hangouts/:hangoutId", h.UpdateHangout, write...)
	v1.DELETE("/hangouts/:hangoutId", h.DeleteHangout, write...)
	v1.POST("/hangouts/:hangoutId/groups", h.AssociateGroups, write...)
	v1.DELETE("/hangouts/:hangoutId/groups/:groupId", h.DisassociateGroup, write...)
	v1.POST("/hangouts/:hangoutId/pointers/repair", h.RepairPointers, write...)

	offers := v1.Group("/hangouts/:hangoutId/offers")
	offers.POST("", h.CreateOffer, write...)
	offers.PATCH("/:offerId", h.UpdateOffer, write...)
	offers.DELETE("/:offerId", h.DeleteOffer, write...)
	offers.POST("/:offerId/claim", h.ClaimSpot, write...)
	offers.DELETE("/:offerId/claim", h.UnclaimSpot, write...)
	offers.POST("/:offerId/complete", h.CompleteOffer, write...)

	parts := v1.Group("/hangouts/:hangoutId/participations")
	parts.POST("", h.CreateParticipation, write...)
	parts.PATCH("/:participationId", h.UpdateParticipation, write...)
	parts.DELETE("/:participationId", h.DeleteParticipation, write...)
}

// RegisterProfile registers the caller's profile route under /v1.
func RegisterProfile(e *echo.Echo, h *handler.ProfileHandler, opts Options) {
	v1 := e.Group("/v1", middleware.JWTAuth(opts.JWTSecret))
	var write []echo.MiddlewareFunc
	if opts.RateLimit != nil {
		write = append(write, opts.RateLimit)
	}
	v1.PUT("/users/me", h.PutProfile, write...)
}
