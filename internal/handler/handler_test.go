package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/middleware"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/service"
)

const secret = "handler-secret"

// fakeReservations implements only what a test sets; other calls panic
// through the nil embedded interface.
type fakeReservations struct {
	Reservations
	claim    func(hangoutID, offerID, userID string) (model.Participation, error)
	complete func(sel service.Selector, f service.CompleteFields) (service.CompletionResult, error)
	feed     func(groupID string) (service.GroupFeed, error)
}

func (f *fakeReservations) ClaimSpot(_ context.Context, hangoutID, offerID, userID string) (model.Participation, error) {
	return f.claim(hangoutID, offerID, userID)
}

func (f *fakeReservations) CompleteOffer(_ context.Context, _, _ string, sel service.Selector, fields service.CompleteFields) (service.CompletionResult, error) {
	return f.complete(sel, fields)
}

func (f *fakeReservations) ListGroupFeed(_ context.Context, groupID string) (service.GroupFeed, error) {
	return f.feed(groupID)
}

func newServer(f *fakeReservations) *echo.Echo {
	e := echo.New()
	h := NewHangoutHandler(f)
	auth := middleware.JWTAuth(secret)
	e.POST("/v1/hangouts/:hangoutId/offers/:offerId/claim", h.ClaimSpot, auth)
	e.POST("/v1/hangouts/:hangoutId/offers/:offerId/complete", h.CompleteOffer, auth)
	e.GET("/v1/groups/:groupId/feed", h.GroupFeed)
	e.POST("/anon/claim/:hangoutId/:offerId", h.ClaimSpot)
	return e
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, "u-1"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestClaimSpot_UsesCallerFromToken(t *testing.T) {
	var got []string
	f := &fakeReservations{claim: func(hangoutID, offerID, userID string) (model.Participation, error) {
		got = []string{hangoutID, offerID, userID}
		return model.Participation{ID: "p1", UserID: userID, Type: model.ParticipationClaimedSpot}, nil
	}}
	rec := do(t, newServer(f), http.MethodPost, "/v1/hangouts/h1/offers/o1/claim", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"h1", "o1", "u-1"}, got)
	assert.Equal(t, "CLAIMED_SPOT", decode(t, rec)["type"])
}

func TestClaimSpot_RequiresCaller(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(&fakeReservations{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anon/claim/h1/o1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err        error
		status     int
		kind       string
		retryAfter string
	}{
		{apperr.NotFoundf("claim spot", "offer o1 not found"), http.StatusNotFound, "not_found", ""},
		{apperr.Capacity("claim spot", "o1", 5, 5), http.StatusConflict, "capacity_exceeded", ""},
		{apperr.Illegal("claim spot", "offer o1 is COMPLETED"), http.StatusConflict, "illegal_operation", ""},
		{apperr.Invalid("claim spot", "user id is required"), http.StatusBadRequest, "validation_failed", ""},
		{apperr.Exhausted("claim spot", 5, nil), http.StatusServiceUnavailable, "concurrency_exhausted", "1"},
		{apperr.Transient("claim spot", errors.New("dial tcp")), http.StatusServiceUnavailable, "transient_infrastructure", ""},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			f := &fakeReservations{claim: func(string, string, string) (model.Participation, error) {
				return model.Participation{}, tc.err
			}}
			rec := do(t, newServer(f), http.MethodPost, "/v1/hangouts/h1/offers/o1/claim", "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
			body := decode(t, rec)
			assert.Equal(t, tc.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
			assert.NotNil(t, body["details"])
		})
	}
}

func TestErrorMapping_CapacityDetails(t *testing.T) {
	f := &fakeReservations{claim: func(string, string, string) (model.Participation, error) {
		return model.Participation{}, apperr.Capacity("claim spot", "o1", 5, 5)
	}}
	rec := do(t, newServer(f), http.MethodPost, "/v1/hangouts/h1/offers/o1/claim", "")
	details := decode(t, rec)["details"].(map[string]any)
	assert.Equal(t, "o1", details["offerId"])
	assert.EqualValues(t, 5, details["capacity"])
	assert.EqualValues(t, 5, details["claimedSpots"])
}

func TestErrorMapping_UnknownErrorIs500(t *testing.T) {
	f := &fakeReservations{claim: func(string, string, string) (model.Participation, error) {
		return model.Participation{}, errors.New("boom")
	}}
	rec := do(t, newServer(f), http.MethodPost, "/v1/hangouts/h1/offers/o1/claim", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCompleteOffer_DecodesSelectorAndFields(t *testing.T) {
	var sel service.Selector
	var fields service.CompleteFields
	f := &fakeReservations{complete: func(s service.Selector, cf service.CompleteFields) (service.CompletionResult, error) {
		sel, fields = s, cf
		return service.CompletionResult{Converted: 3, Batches: []int{3}}, nil
	}}
	rec := do(t, newServer(f), http.MethodPost, "/v1/hangouts/h1/offers/o1/complete",
		`{"participationIds":["a","b","c"],"ticketCount":3,"totalPriceCents":4500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sel.All)
	assert.Equal(t, []string{"a", "b", "c"}, sel.ParticipationIDs)
	require.NotNil(t, fields.TicketCount)
	assert.Equal(t, 3, *fields.TicketCount)
	assert.EqualValues(t, 4500, *fields.TotalPriceCents)
	assert.EqualValues(t, 3, decode(t, rec)["converted"])
}

func TestCompleteOffer_PartialFailureReportsCommittedBatches(t *testing.T) {
	f := &fakeReservations{complete: func(service.Selector, service.CompleteFields) (service.CompletionResult, error) {
		return service.CompletionResult{Converted: 180, Batches: []int{90, 90}}, apperr.Transient("complete offer", errors.New("timeout"))
	}}
	rec := do(t, newServer(f), http.MethodPost, "/v1/hangouts/h1/offers/o1/complete", `{"all":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	details := decode(t, rec)["details"].(map[string]any)
	assert.Equal(t, []any{float64(90), float64(90)}, details["committedBatches"])
	assert.EqualValues(t, 180, details["converted"])
}

func TestCompleteOffer_BadBody(t *testing.T) {
	rec := do(t, newServer(&fakeReservations{}), http.MethodPost, "/v1/hangouts/h1/offers/o1/complete", `{"all":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["kind"])
}

func TestGroupFeed_SetsETag(t *testing.T) {
	f := &fakeReservations{feed: func(groupID string) (service.GroupFeed, error) {
		return service.GroupFeed{GroupID: groupID, Token: groupID + ":42", Hangouts: []model.HangoutPointer{}}, nil
	}}
	rec := do(t, newServer(f), http.MethodGet, "/v1/groups/g1/feed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"g1:42"`, rec.Header().Get("ETag"))
	assert.Equal(t, "g1:42", decode(t, rec)["token"])
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

type savedProfiles struct{ users []model.User }

func (s *savedProfiles) Save(_ context.Context, u model.User) error {
	s.users = append(s.users, u)
	return nil
}

func TestPutProfile(t *testing.T) {
	saved := &savedProfiles{}
	e := echo.New()
	e.PUT("/v1/users/me", NewProfileHandler(saved).PutProfile, middleware.JWTAuth(secret))

	put := func(body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/v1/users/me", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if token != "" {
			req.Header.Set(echo.HeaderAuthorization, token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := put(`{"displayName":" Ada ","imagePath":"a.png"}`, bearer(t, "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, saved.users, 1)
	assert.Equal(t, model.User{ID: "u1", DisplayName: "Ada", ImagePath: "a.png"}, saved.users[0])

	rec = put(`{"displayName":"  "}`, bearer(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = put(`{"displayName":"Ada"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, saved.users, 1)
}
