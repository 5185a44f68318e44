package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/txn"
)

func TestClaimSpot_FillsCapacityThenRejects(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t, "g1")
	o := h.offer(t, hg.ID, intp(5))

	for i := 0; i < 5; i++ {
		p, err := h.svc.ClaimSpot(ctx, hg.ID, o.ID, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		assert.Equal(t, model.ParticipationClaimedSpot, p.Type)
		assert.Equal(t, o.ID, p.OfferID())
	}
	assert.Equal(t, 5, h.getOffer(t, hg.ID, o.ID).ClaimedSpots)

	_, err := h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u6")
	require.True(t, apperr.IsKind(err, apperr.CapacityExceeded), "got %v", err)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, o.ID, ae.Details["offerId"])
	assert.Equal(t, 5, ae.Details["capacity"])
	assert.Equal(t, 5, ae.Details["claimedSpots"])

	assert.Equal(t, 5, h.getOffer(t, hg.ID, o.ID).ClaimedSpots)
	assert.Equal(t, 5, h.claimedSpots(t, o.ID))
}

func TestClaimSpot_UnlimitedOfferIsIllegal(t *testing.T) {
	h := createTestService(t)
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)

	_, err := h.svc.ClaimSpot(context.Background(), hg.ID, o.ID, "u1")
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation), "got %v", err)
	assert.Equal(t, 0, h.claimedSpots(t, o.ID))
}

func TestClaimSpot_UnknownOffer(t *testing.T) {
	h := createTestService(t)
	hg := h.hangout(t)
	_, err := h.svc.ClaimSpot(context.Background(), hg.ID, "missing", "u1")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestClaimSpot_SameUserTwiceIsIllegal(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, intp(3))

	_, err := h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u1")
	require.NoError(t, err)
	_, err = h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u1")
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation), "got %v", err)
	assert.Equal(t, 1, h.getOffer(t, hg.ID, o.ID).ClaimedSpots)
}

func TestClaimSpot_TerminalOfferIsIllegal(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)

	completed := h.offer(t, hg.ID, intp(3))
	_, err := h.svc.CompleteOffer(ctx, hg.ID, completed.ID, Selector{All: true}, CompleteFields{})
	require.NoError(t, err)
	_, err = h.svc.ClaimSpot(ctx, hg.ID, completed.ID, "u1")
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation), "got %v", err)

	cancelled := h.offer(t, hg.ID, intp(3))
	status := model.OfferStatusCancelled
	_, err = h.svc.UpdateOffer(ctx, hg.ID, cancelled.ID, UpdateOfferInput{Status: &status})
	require.NoError(t, err)
	_, err = h.svc.ClaimSpot(ctx, hg.ID, cancelled.ID, "u1")
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation), "got %v", err)
}

func TestClaimUnclaim_RoundTrip(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t, "g1")
	o := h.offer(t, hg.ID, intp(4))
	_, err := h.svc.ClaimSpot(ctx, hg.ID, o.ID, "other")
	require.NoError(t, err)
	before := h.getOffer(t, hg.ID, o.ID)

	_, err = h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u1")
	require.NoError(t, err)
	after, err := h.svc.UnclaimSpot(ctx, hg.ID, o.ID, "u1")
	require.NoError(t, err)

	stored := h.getOffer(t, hg.ID, o.ID)
	assert.Equal(t, before.ClaimedSpots, stored.ClaimedSpots)
	assert.Equal(t, before.Version+2, stored.Version)
	assert.Equal(t, stored.Version, after.Version)
	assert.Equal(t, 1, h.claimedSpots(t, o.ID))

	// the same user can claim again after releasing
	_, err = h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u1")
	assert.NoError(t, err)
}

func TestUnclaimSpot_WithoutClaimIsNotFound(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, intp(2))
	_, err := h.svc.ClaimSpot(ctx, hg.ID, o.ID, "u1")
	require.NoError(t, err)

	_, err = h.svc.UnclaimSpot(ctx, hg.ID, o.ID, "u2")
	assert.True(t, apperr.IsKind(err, apperr.NotFound), "got %v", err)
	assert.Equal(t, 1, h.getOffer(t, hg.ID, o.ID).ClaimedSpots)
}

func TestClaimSpot_ConcurrentClaimsNeverOverbook(t *testing.T) {
	h := createTestService(t)
	hg := h.hangout(t, "g1")
	o := h.offer(t, hg.ID, intp(5))

	const claimers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.svc.ClaimSpot(context.Background(), hg.ID, o.ID, fmt.Sprintf("racer-%d", i))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.IsKind(err, apperr.CapacityExceeded):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 3, full)
	assert.Equal(t, 5, h.getOffer(t, hg.ID, o.ID).ClaimedSpots)
	assert.Equal(t, 5, h.claimedSpots(t, o.ID))
}

func TestCompleteOffer_ConvertsInBatches(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t, "g1")
	o := h.offer(t, hg.ID, nil)
	h.seedNeeded(t, hg.ID, o.ID, 185)

	tickets := 185
	res, err := h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{All: true}, CompleteFields{TicketCount: &tickets})
	require.NoError(t, err)
	assert.Equal(t, []int{90, 90, 5}, res.Batches)
	assert.Equal(t, 185, res.Converted)
	assert.Equal(t, model.OfferStatusCompleted, res.Offer.Status)
	assert.NotNil(t, res.Offer.CompletedDate)
	assert.Equal(t, 185, *res.Offer.TicketCount)

	needed, err := h.svc.repo.ParticipationsByOffer(ctx, o.ID, model.ParticipationTicketNeeded)
	require.NoError(t, err)
	assert.Empty(t, needed)
	bought, err := h.svc.repo.ParticipationsByOffer(ctx, o.ID, model.ParticipationTicketPurchased)
	require.NoError(t, err)
	assert.Len(t, bought, 185)

	p, err := h.svc.GetHangoutDetail(ctx, hg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusCompleted, p.Offers[0].Status)
}

func TestCompleteOffer_BatchRerunIsIdempotent(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)
	ids := h.seedNeeded(t, hg.ID, o.ID, 10)

	_, err := h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{All: true}, CompleteFields{})
	require.NoError(t, err)

	ops, err := h.svc.conversionBatch(hg.ID)(ctx, ids, 1)
	require.NoError(t, err)
	assert.Empty(t, ops, "already converted participations need no write")

	report, err := h.svc.engine.ExecuteBatches(ctx, "rerun", ids, h.svc.conversionBatch(hg.ID))
	require.NoError(t, err)
	assert.Zero(t, report.Written())

	res, err := h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{ParticipationIDs: ids}, CompleteFields{})
	require.NoError(t, err)
	assert.Zero(t, res.Converted)

	for _, id := range ids {
		p, err := h.svc.repo.GetParticipation(ctx, hg.ID, id)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipationTicketPurchased, p.Type)
		assert.EqualValues(t, 2, p.Version)
	}
}

func TestCompleteOffer_PartialFailureKeepsEarlierBatches(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)
	h.seedNeeded(t, hg.ID, o.ID, 6)

	writer := &failingAfter{next: h.store, ok: 2}
	h.svc.engine = txn.New(writer, txn.Config{BatchSize: 2}, nil)

	res, err := h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{All: true}, CompleteFields{})
	assert.True(t, apperr.IsKind(err, apperr.TransientInfrastructure), "got %v", err)
	assert.Equal(t, []int{2}, res.Batches)

	bought, err := h.svc.repo.ParticipationsByOffer(ctx, o.ID, model.ParticipationTicketPurchased)
	require.NoError(t, err)
	assert.Len(t, bought, 2)

	// resuming finishes the remaining batches
	h.svc.engine = txn.New(h.store, txn.Config{BatchSize: 2}, nil)
	res, err = h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{All: true}, CompleteFields{})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, res.Batches)
	assert.Equal(t, 4, res.Converted)
}

func TestCompleteOffer_Validation(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, nil)
	other := h.offer(t, hg.ID, nil)
	ids := h.seedNeeded(t, hg.ID, other.ID, 1)

	_, err := h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{}, CompleteFields{})
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailed))

	_, err = h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{ParticipationIDs: []string{"nope"}}, CompleteFields{})
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailed))

	_, err = h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{ParticipationIDs: ids}, CompleteFields{})
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailed))

	neg := -1
	_, err = h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{All: true}, CompleteFields{TicketCount: &neg})
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailed))

	// nothing was written
	assert.Equal(t, model.OfferStatusCollecting, h.getOffer(t, hg.ID, o.ID).Status)
}

func TestCompleteOffer_CancelledOfferIsIllegal(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, intp(2))
	status := model.OfferStatusCancelled
	_, err := h.svc.UpdateOffer(ctx, hg.ID, o.ID, UpdateOfferInput{Status: &status})
	require.NoError(t, err)

	_, err = h.svc.CompleteOffer(ctx, hg.ID, o.ID, Selector{All: true}, CompleteFields{})
	assert.True(t, apperr.IsKind(err, apperr.IllegalOperation))
}

func TestClaimSpot_StoreDownIsTransient(t *testing.T) {
	h := createTestService(t)
	hg := h.hangout(t)
	o := h.offer(t, hg.ID, intp(2))
	require.NoError(t, h.store.DB().Close())

	_, err := h.svc.ClaimSpot(context.Background(), hg.ID, o.ID, "u1")
	assert.True(t, apperr.IsKind(err, apperr.TransientInfrastructure), "got %v", err)
}
