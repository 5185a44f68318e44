package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/hangout-reservations/internal/handler"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

// unused satisfies handler.Reservations; no test request reaches it.
type unused struct{ handler.Reservations }

// unusedProfiles satisfies handler.ProfileWriter.
type unusedProfiles struct{ handler.ProfileWriter }

func TestRegisterHangouts_RoutesAndAuth(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, okPinger{})
	limited := 0
	RegisterHangouts(e, handler.NewHangoutHandler(unused{}), Options{
		JWTSecret: "s",
		RateLimit: func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { limited++; return next(c) }
		},
	})

	RegisterProfile(e, handler.NewProfileHandler(unusedProfiles{}), Options{JWTSecret: "s"})

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"GET /v1/groups/:groupId/feed",
		"POST /v1/hangouts/:hangoutId/offers/:offerId/claim",
		"DELETE /v1/hangouts/:hangoutId/offers/:offerId/claim",
		"POST /v1/hangouts/:hangoutId/offers/:offerId/complete",
		"PATCH /v1/hangouts/:hangoutId/participations/:participationId",
		"PUT /v1/users/me",
	} {
		assert.True(t, registered[want], want)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/hangouts/h1/offers/o1/claim", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, limited, "auth runs before the limiter")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
