package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/repository"
)

func TestCreateParticipation(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)

	p, err := h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationTicketNeeded, ReservationOfferID: &o.ID})
	require.NoError(t, err)
	assert.Equal(t, o.ID, p.OfferID())
	assert.EqualValues(t, 1, p.Version)

	_, err = h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationClaimedSpot, ReservationOfferID: &o.ID})
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation))

	missing := "nope"
	_, err = h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationTicketNeeded, ReservationOfferID: &missing})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = h.svc.CreateParticipation(ctx, "u1", "missing", CreateParticipationInput{Type: model.ParticipationSection})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: "SPECTATOR"})
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailed))
}

func TestCreateParticipation_CancelledOfferIsIllegal(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)
	cancelled := model.OfferStatusCancelled
	_, err := h.svc.UpdateOffer(ctx, hg.ID, o.ID, UpdateOfferInput{Status: &cancelled})
	require.NoError(t, err)

	_, err = h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationTicketNeeded, ReservationOfferID: &o.ID})
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation))
}

func TestUpdateParticipation(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)
	p, err := h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationTicketNeeded, ReservationOfferID: &o.ID})
	require.NoError(t, err)

	bought := model.ParticipationTicketPurchased
	seat := "12B"
	updated, err := h.svc.UpdateParticipation(ctx, hg.ID, p.ID, UpdateParticipationInput{Type: &bought, Seat: &seat})
	require.NoError(t, err)
	assert.Equal(t, bought, updated.Type)
	assert.Equal(t, "12B", *updated.Seat)
	assert.EqualValues(t, 2, updated.Version)

	unlink := ""
	updated, err = h.svc.UpdateParticipation(ctx, hg.ID, p.ID, UpdateParticipationInput{ReservationOfferID: &unlink})
	require.NoError(t, err)
	assert.Nil(t, updated.ReservationOfferID)

	_, err = h.svc.UpdateParticipation(ctx, hg.ID, "missing", UpdateParticipationInput{Seat: &seat})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestClaimedSpot_CannotBeEditedOrDeletedDirectly(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, intp(2))
	claim, err := h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u1")
	require.NoError(t, err)

	needed := model.ParticipationTicketNeeded
	_, err = h.svc.UpdateParticipation(ctx, hg.ID, claim.ID, UpdateParticipationInput{Type: &needed})
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation))

	err = h.svc.DeleteParticipation(ctx, hg.ID, claim.ID)
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation))

	// the seat can still be recorded
	seat := "A1"
	updated, err := h.svc.UpdateParticipation(ctx, hg.ID, claim.ID, UpdateParticipationInput{Seat: &seat})
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationClaimedSpot, updated.Type)
	assert.Equal(t, 1, h.getOffer(t, hg.ID, o.ID).ClaimedSpots)
}

func TestDeleteParticipation(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t, "g1")
	p, err := h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationTicketNeeded})
	require.NoError(t, err)

	ptr, err := h.svc.pointers.Get(ctx, "g1", hg.ID)
	require.NoError(t, err)
	assert.Len(t, ptr.Summary.UsersNeedingTickets, 1)

	require.NoError(t, h.svc.DeleteParticipation(ctx, hg.ID, p.ID))
	_, err = h.svc.repo.GetParticipation(ctx, hg.ID, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ptr, err = h.svc.pointers.Get(ctx, "g1", hg.ID)
	require.NoError(t, err)
	assert.Empty(t, ptr.Summary.UsersNeedingTickets)

	err = h.svc.DeleteParticipation(ctx, hg.ID, p.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestLinkingBumpsOfferVersion(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)

	p, err := h.svc.CreateParticipation(ctx, "u1", hg.ID, CreateParticipationInput{Type: model.ParticipationTicketNeeded, ReservationOfferID: &o.ID})
	require.NoError(t, err)
	assert.Equal(t, o.Version+1, h.getOffer(t, hg.ID, o.ID).Version)

	_, err = h.svc.CreateParticipation(ctx, "u2", hg.ID, CreateParticipationInput{Type: model.ParticipationSection})
	require.NoError(t, err)
	assert.Equal(t, o.Version+1, h.getOffer(t, hg.ID, o.ID).Version, "unlinked participations leave the offer alone")

	other := h.offer(t, hg.ID, nil)
	_, err = h.svc.UpdateParticipation(ctx, hg.ID, p.ID, UpdateParticipationInput{ReservationOfferID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, other.Version+1, h.getOffer(t, hg.ID, other.ID).Version)

	missing := "nope"
	_, err = h.svc.UpdateParticipation(ctx, hg.ID, p.ID, UpdateParticipationInput{ReservationOfferID: &missing})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}
