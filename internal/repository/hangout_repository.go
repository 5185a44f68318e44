package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/hangout-reservations/internal/model"
)

// HangoutRepo reads and writes hangout aggregates: the METADATA record plus
// every OFFER# and PART# child under the same EVENT# partition.
type HangoutRepo struct{ Store *ItemStore }

func NewHangoutRepo(store *ItemStore) *HangoutRepo { return &HangoutRepo{Store: store} }

// GetAggregate fetches the whole aggregate with a single range query.  It
// returns ErrNotFound when the partition has no canonical record, even if
// orphaned children remain.
func (r *HangoutRepo) GetAggregate(ctx context.Context, hangoutID string) (model.HangoutAggregate, error) {
	items, err := r.Store.Query(ctx, HangoutPK(hangoutID), "")
	if err != nil {
		return model.HangoutAggregate{}, err
	}
	return decodeAggregate(items)
}

// GetFullAggregate satisfies the aggregate provider used by the pointer
// maintainer.
func (r *HangoutRepo) GetFullAggregate(ctx context.Context, hangoutID string) (model.HangoutAggregate, error) {
	return r.GetAggregate(ctx, hangoutID)
}

func decodeAggregate(items []Item) (model.HangoutAggregate, error) {
	agg := model.HangoutAggregate{
		Offers:         []model.ReservationOffer{},
		Participations: []model.Participation{},
	}
	found := false
	for _, it := range items {
		switch {
		case it.SK == MetadataSK():
			h, err := DecodeHangout(it)
			if err != nil {
				return agg, err
			}
			agg.Hangout = h
			found = true
		case strings.HasPrefix(it.SK, offerPrefix):
			o, err := DecodeOffer(it)
			if err != nil {
				return agg, err
			}
			agg.Offers = append(agg.Offers, o)
		case strings.HasPrefix(it.SK, partPrefix):
			p, err := DecodeParticipation(it)
			if err != nil {
				return agg, err
			}
			agg.Participations = append(agg.Participations, p)
		}
	}
	if !found {
		return model.HangoutAggregate{}, ErrNotFound
	}
	return agg, nil
}

// GetHangout reads only the canonical record.
func (r *HangoutRepo) GetHangout(ctx context.Context, hangoutID string) (model.Hangout, error) {
	it, err := r.Store.Get(ctx, HangoutPK(hangoutID), MetadataSK())
	if err != nil {
		return model.Hangout{}, err
	}
	return DecodeHangout(it)
}

// GetOffer reads one offer.
func (r *HangoutRepo) GetOffer(ctx context.Context, hangoutID, offerID string) (model.ReservationOffer, error) {
	it, err := r.Store.Get(ctx, HangoutPK(hangoutID), OfferSK(offerID))
	if err != nil {
		return model.ReservationOffer{}, err
	}
	return DecodeOffer(it)
}

// GetParticipation reads one participation.
func (r *HangoutRepo) GetParticipation(ctx context.Context, hangoutID, participationID string) (model.Participation, error) {
	it, err := r.Store.Get(ctx, HangoutPK(hangoutID), ParticipationSK(participationID))
	if err != nil {
		return model.Participation{}, err
	}
	return DecodeParticipation(it)
}

// ParticipationsByOffer returns every participation linked to offerID,
// optionally restricted to one type ("" for all).
func (r *HangoutRepo) ParticipationsByOffer(ctx context.Context, offerID string, typ model.ParticipationType) ([]model.Participation, error) {
	items, err := r.Store.QueryByRef(ctx, offerID, TypeParticipation)
	if err != nil {
		return nil, err
	}
	out := make([]model.Participation, 0, len(items))
	for _, it := range items {
		if typ != "" && it.State != string(typ) {
			continue
		}
		p, err := DecodeParticipation(it)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// FindClaim locates the CLAIMED_SPOT participation of userID on offerID.
func (r *HangoutRepo) FindClaim(ctx context.Context, offerID, userID string) (model.Participation, error) {
	parts, err := r.ParticipationsByOffer(ctx, offerID, model.ParticipationClaimedSpot)
	if err != nil {
		return model.Participation{}, err
	}
	for _, p := range parts {
		if p.UserID == userID {
			return p, nil
		}
	}
	return model.Participation{}, ErrNotFound
}

// DeleteAggregate removes every record of the hangout partition in
// transactions of at most MaxTransactItems.  Deleting a missing aggregate
// is not an error.
func (r *HangoutRepo) DeleteAggregate(ctx context.Context, hangoutID string) (int, error) {
	n, err := r.Store.BatchDeleteOwner(ctx, HangoutPK(hangoutID))
	if errors.Is(err, ErrNotFound) {
		return n, nil
	}
	return n, err
}
