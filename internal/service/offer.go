package service

import (
	"context"
	"errors"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/repository"
)

// CreateOfferInput describes a new offer.  A nil Capacity makes the offer
// unlimited.
type CreateOfferInput struct {
	Type     model.OfferType `json:"type"`
	Capacity *int            `json:"capacity"`
	BuyDate  *int64          `json:"buyDate"`
	Section  *string         `json:"section"`
}

// CreateOffer adds a COLLECTING offer to the hangout.
func (s *Service) CreateOffer(ctx context.Context, userID, hangoutID string, in CreateOfferInput) (model.ReservationOffer, error) {
	const op = "create offer"
	if !in.Type.Valid() {
		return model.ReservationOffer{}, apperr.Invalid(op, "unknown offer type %q", in.Type)
	}
	if in.Capacity != nil && *in.Capacity < 0 {
		return model.ReservationOffer{}, apperr.Invalid(op, "capacity must not be negative")
	}
	now := s.nowMs()
	o := model.ReservationOffer{
		ID:            s.newID(),
		HangoutID:     hangoutID,
		CreatorUserID: userID,
		Type:          in.Type,
		Status:        model.OfferStatusCollecting,
		Capacity:      in.Capacity,
		Version:       1,
		BuyDate:       in.BuyDate,
		Section:       in.Section,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	it, err := repository.OfferItem(o)
	if err != nil {
		return model.ReservationOffer{}, apperr.FromStore(op, err)
	}
	err = s.store.TransactWrite(ctx, []repository.WriteOp{
		repository.Check(repository.HangoutPK(hangoutID), repository.MetadataSK(), repository.Condition{MustExist: true}),
		repository.Put(it, repository.Condition{MustNotExist: true}),
	})
	var cf *repository.ConditionFailedError
	if errors.As(err, &cf) && cf.Index == 0 {
		return model.ReservationOffer{}, apperr.NotFoundf(op, "hangout %s not found", hangoutID)
	}
	if err != nil {
		return model.ReservationOffer{}, apperr.FromStore(op, err)
	}
	s.afterMutation(ctx, hangoutID)
	return o, nil
}

// UpdateOfferInput patches an offer.  Nil fields stay unchanged.  Status
// may only move to CANCELLED; completion goes through CompleteOffer.
type UpdateOfferInput struct {
	Capacity      *int               `json:"capacity"`
	ClearCapacity bool               `json:"clearCapacity"`
	BuyDate       *int64             `json:"buyDate"`
	Section       *string            `json:"section"`
	Status        *model.OfferStatus `json:"status"`
}

// UpdateOffer applies in under the offer's version.  Capacity can neither
// drop below the claimed spots nor be cleared while spots are claimed.
func (s *Service) UpdateOffer(ctx context.Context, hangoutID, offerID string, in UpdateOfferInput) (model.ReservationOffer, error) {
	const op = "update offer"
	if in.Capacity != nil && in.ClearCapacity {
		return model.ReservationOffer{}, apperr.Invalid(op, "capacity and clearCapacity are mutually exclusive")
	}
	if in.Capacity != nil && *in.Capacity < 0 {
		return model.ReservationOffer{}, apperr.Invalid(op, "capacity must not be negative")
	}
	if in.Status != nil && *in.Status != model.OfferStatusCancelled && *in.Status != model.OfferStatusCollecting {
		return model.ReservationOffer{}, apperr.Illegal(op, "status can only be set to %s", model.OfferStatusCancelled)
	}

	var updated model.ReservationOffer
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
		if err != nil {
			return nil, missing(err, op, "offer", offerID)
		}
		if o.Status != model.OfferStatusCollecting {
			return nil, apperr.Illegal(op, "offer %s is %s", offerID, o.Status).
				With("offerId", offerID).With("status", o.Status)
		}
		switch {
		case in.ClearCapacity && o.ClaimedSpots > 0:
			return nil, apperr.Invalid(op, "cannot remove the capacity of offer %s while %d spots are claimed", offerID, o.ClaimedSpots).
				With("offerId", offerID).With("claimedSpots", o.ClaimedSpots)
		case in.ClearCapacity:
			o.Capacity = nil
		case in.Capacity != nil && *in.Capacity < o.ClaimedSpots:
			return nil, apperr.Invalid(op, "capacity %d is below the %d claimed spots", *in.Capacity, o.ClaimedSpots).
				With("offerId", offerID).With("claimedSpots", o.ClaimedSpots)
		case in.Capacity != nil:
			c := *in.Capacity
			o.Capacity = &c
		}
		if in.BuyDate != nil {
			o.BuyDate = in.BuyDate
		}
		if in.Section != nil {
			o.Section = in.Section
		}
		if in.Status != nil {
			o.Status = *in.Status
		}
		observed := o.Version
		o.Version++
		o.UpdatedAt = s.nowMs()
		updated = o
		it, err := repository.OfferItem(o)
		if err != nil {
			return nil, err
		}
		return []repository.WriteOp{repository.Put(it, repository.Condition{ExpectedVersion: &observed})}, nil
	}, nil)
	if err != nil {
		return model.ReservationOffer{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return updated, nil
}

// DeleteOffer removes the offer together with its CLAIMED_SPOT
// participations and unlinks every other participation from it.  The
// linked participations are processed in batches; the offer itself goes
// last, guarded by its version, so a claim racing the delete is picked up
// by the next attempt.
func (s *Service) DeleteOffer(ctx context.Context, hangoutID, offerID string) error {
	const op = "delete offer"
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
		if err != nil {
			return nil, missing(err, op, "offer", offerID)
		}
		linked, err := s.repo.ParticipationsByOffer(ctx, offerID, "")
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(linked))
		for _, p := range linked {
			if p.HangoutID == hangoutID {
				ids = append(ids, p.ID)
			}
		}
		observed := o.Version
		deleteOffer := repository.Delete(repository.HangoutPK(hangoutID), repository.OfferSK(offerID),
			repository.Condition{ExpectedVersion: &observed})

		if len(ids) < s.engine.Config().BatchSize {
			ops, err := s.detachBatch(hangoutID, offerID)(ctx, ids, attempt)
			if err != nil {
				return nil, err
			}
			return append(ops, deleteOffer), nil
		}
		if _, err := s.engine.ExecuteBatches(ctx, op, ids, s.detachBatch(hangoutID, offerID)); err != nil {
			return nil, err
		}
		return []repository.WriteOp{deleteOffer}, nil
	}, nil)
	if err != nil {
		return err
	}
	s.afterMutation(ctx, hangoutID)
	return nil
}

// detachBatch deletes the claims among ids and clears the offer link of
// the rest.
func (s *Service) detachBatch(hangoutID, offerID string) func(ctx context.Context, ids []string, attempt int) ([]repository.WriteOp, error) {
	return func(ctx context.Context, ids []string, attempt int) ([]repository.WriteOp, error) {
		ops := make([]repository.WriteOp, 0, len(ids))
		now := s.nowMs()
		for _, id := range ids {
			p, err := s.repo.GetParticipation(ctx, hangoutID, id)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if p.OfferID() != offerID {
				continue
			}
			observed := p.Version
			if p.Type == model.ParticipationClaimedSpot {
				ops = append(ops, repository.Delete(repository.HangoutPK(hangoutID), repository.ParticipationSK(id),
					repository.Condition{ExpectedVersion: &observed}))
				continue
			}
			p.ReservationOfferID = nil
			p.Version++
			p.UpdatedAt = now
			it, err := repository.ParticipationItem(p)
			if err != nil {
				return nil, err
			}
			ops = append(ops, repository.Put(it, repository.Condition{ExpectedVersion: &observed}))
		}
		return ops, nil
	}
}
