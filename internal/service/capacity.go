package service

import (
	"context"
	"errors"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/repository"
)

// ClaimSpot takes one spot of a limited offer for userID.  The offer
// counter and the CLAIMED_SPOT participation are written in one atomic
// transaction guarded by the observed version and by
// claimed_spots < capacity, so claimed spots never exceed capacity.
//
// Each failed attempt means another claim committed in between, so a
// claimer that loses every attempt finds the offer full on its final
// re-read and reports CapacityExceeded rather than exhaustion.
func (s *Service) ClaimSpot(ctx context.Context, hangoutID, offerID, userID string) (model.Participation, error) {
	const op = "claim spot"
	if userID == "" {
		return model.Participation{}, apperr.Invalid(op, "user id is required")
	}
	var claim model.Participation

	// checkClaimable is shared by the plan and the conflict re-read.
	checkClaimable := func(o model.ReservationOffer) error {
		switch {
		case o.Unlimited():
			return apperr.Illegal(op, "offer %s has unlimited capacity; join it with a participation", offerID).
				With("offerId", offerID)
		case o.Status != model.OfferStatusCollecting:
			return apperr.Illegal(op, "offer %s is %s", offerID, o.Status).
				With("offerId", offerID).With("status", o.Status)
		case o.Full():
			return apperr.Capacity(op, offerID, *o.Capacity, o.ClaimedSpots)
		}
		return nil
	}

	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
		if err != nil {
			return nil, missing(err, op, "offer", offerID)
		}
		if err := checkClaimable(o); err != nil {
			return nil, err
		}
		now := s.nowMs()
		observed := o.Version
		o.ClaimedSpots++
		o.Version++
		o.UpdatedAt = now
		claim = model.Participation{
			ID:                 claimID(offerID, userID),
			HangoutID:          hangoutID,
			UserID:             userID,
			Type:               model.ParticipationClaimedSpot,
			ReservationOfferID: &offerID,
			Section:            o.Section,
			Version:            1,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		oi, err := repository.OfferItem(o)
		if err != nil {
			return nil, err
		}
		pi, err := repository.ParticipationItem(claim)
		if err != nil {
			return nil, err
		}
		return []repository.WriteOp{
			repository.Put(oi, repository.Condition{
				ExpectedVersion:      &observed,
				ClaimedBelowCapacity: true,
				State:                string(model.OfferStatusCollecting),
			}),
			repository.Put(pi, repository.Condition{MustNotExist: true}),
		}, nil
	}, func(ctx context.Context, cf *repository.ConditionFailedError) error {
		if cf.Index == 1 {
			return apperr.Illegal(op, "user %s already holds a spot on offer %s", userID, offerID).
				With("offerId", offerID).With("userId", userID)
		}
		o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
		if err != nil {
			return missing(err, op, "offer", offerID)
		}
		return checkClaimable(o)
	})
	if err != nil {
		return model.Participation{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return claim, nil
}

// UnclaimSpot releases userID's spot on the offer and returns the updated
// offer.
func (s *Service) UnclaimSpot(ctx context.Context, hangoutID, offerID, userID string) (model.ReservationOffer, error) {
	const op = "unclaim spot"
	claim, err := s.repo.FindClaim(ctx, offerID, userID)
	if err == nil && claim.HangoutID != hangoutID {
		err = repository.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ReservationOffer{}, apperr.NotFoundf(op, "user %s has no claimed spot on offer %s", userID, offerID).
				With("offerId", offerID).With("userId", userID)
		}
		return model.ReservationOffer{}, apperr.FromStore(op, err)
	}

	var updated model.ReservationOffer
	_, err = s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
		if err != nil {
			return nil, missing(err, op, "offer", offerID)
		}
		if o.Status != model.OfferStatusCollecting {
			return nil, apperr.Illegal(op, "offer %s is %s", offerID, o.Status).
				With("offerId", offerID).With("status", o.Status)
		}
		if o.ClaimedSpots <= 0 {
			return nil, apperr.Illegal(op, "offer %s has no claimed spots", offerID).With("offerId", offerID)
		}
		observed := o.Version
		o.ClaimedSpots--
		o.Version++
		o.UpdatedAt = s.nowMs()
		updated = o
		oi, err := repository.OfferItem(o)
		if err != nil {
			return nil, err
		}
		return []repository.WriteOp{
			repository.Put(oi, repository.Condition{ExpectedVersion: &observed}),
			repository.Delete(repository.HangoutPK(hangoutID), repository.ParticipationSK(claim.ID),
				repository.Condition{MustExist: true}),
		}, nil
	}, func(ctx context.Context, cf *repository.ConditionFailedError) error {
		if cf.Index == 1 {
			return apperr.NotFoundf(op, "claimed spot of user %s on offer %s was already released", userID, offerID).
				With("offerId", offerID).With("userId", userID)
		}
		return nil
	})
	if err != nil {
		return model.ReservationOffer{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return updated, nil
}

// Selector picks the participations CompleteOffer converts: every
// TICKET_NEEDED participation linked to the offer, or an explicit list.
type Selector struct {
	All              bool     `json:"all"`
	ParticipationIDs []string `json:"participationIds"`
}

// CompleteFields are the optional values recorded on completion.
type CompleteFields struct {
	TicketCount     *int   `json:"ticketCount"`
	TotalPriceCents *int64 `json:"totalPriceCents"`
}

// CompletionResult reports the completed offer and the conversion batches.
type CompletionResult struct {
	Offer     model.ReservationOffer `json:"offer"`
	Converted int                    `json:"converted"`
	Batches   []int                  `json:"batches"`
}

// CompleteOffer marks the offer COMPLETED and converts the selected
// TICKET_NEEDED participations to TICKET_PURCHASED in sequential batches.
// Batches commit independently: when one fails, earlier batches stay
// converted and the error is returned with the partial result.  Calling
// CompleteOffer again on a completed offer resumes the conversion.
func (s *Service) CompleteOffer(ctx context.Context, hangoutID, offerID string, sel Selector, f CompleteFields) (CompletionResult, error) {
	const op = "complete offer"
	var res CompletionResult

	if !sel.All && len(dedupe(sel.ParticipationIDs)) == 0 {
		return res, apperr.Invalid(op, "participation id list must not be empty")
	}
	if sel.All && len(sel.ParticipationIDs) > 0 {
		return res, apperr.Invalid(op, "choose either all participations or an explicit list")
	}
	if f.TicketCount != nil && *f.TicketCount < 0 {
		return res, apperr.Invalid(op, "ticket count must not be negative")
	}
	if f.TotalPriceCents != nil && *f.TotalPriceCents < 0 {
		return res, apperr.Invalid(op, "total price must not be negative")
	}

	var ids []string
	if sel.All {
		needed, err := s.repo.ParticipationsByOffer(ctx, offerID, model.ParticipationTicketNeeded)
		if err != nil {
			return res, apperr.FromStore(op, err)
		}
		for _, p := range needed {
			if p.HangoutID == hangoutID {
				ids = append(ids, p.ID)
			}
		}
	} else {
		ids = dedupe(sel.ParticipationIDs)
		for _, id := range ids {
			p, err := s.repo.GetParticipation(ctx, hangoutID, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return res, apperr.Invalid(op, "participation %s does not belong to hangout %s", id, hangoutID).
						With("participationId", id)
				}
				return res, apperr.FromStore(op, err)
			}
			if p.OfferID() != offerID {
				return res, apperr.Invalid(op, "participation %s is not linked to offer %s", id, offerID).
					With("participationId", id).With("offerId", offerID)
			}
		}
	}

	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
		if err != nil {
			return nil, missing(err, op, "offer", offerID)
		}
		res.Offer = o
		switch o.Status {
		case model.OfferStatusCompleted:
			return nil, nil
		case model.OfferStatusCancelled:
			return nil, apperr.Illegal(op, "offer %s is cancelled", offerID).With("offerId", offerID)
		}
		observed := o.Version
		now := s.nowMs()
		o.Status = model.OfferStatusCompleted
		o.CompletedDate = &now
		if f.TicketCount != nil {
			o.TicketCount = f.TicketCount
		}
		if f.TotalPriceCents != nil {
			o.TotalPriceCents = f.TotalPriceCents
		}
		o.Version++
		o.UpdatedAt = now
		res.Offer = o
		oi, err := repository.OfferItem(o)
		if err != nil {
			return nil, err
		}
		return []repository.WriteOp{repository.Put(oi, repository.Condition{
			ExpectedVersion: &observed,
			State:           string(model.OfferStatusCollecting),
		})}, nil
	}, nil)
	if err != nil {
		return res, err
	}

	report, err := s.engine.ExecuteBatches(ctx, op, ids, s.conversionBatch(hangoutID))
	res.Batches = report.Sizes()
	res.Converted = report.Written()
	s.afterMutation(ctx, hangoutID)
	if err != nil {
		return res, err
	}
	return res, nil
}

// conversionBatch re-reads each participation of a batch and converts the
// ones still TICKET_NEEDED.  Deleted or already converted participations
// are skipped, so re-running a batch is a no-op.
func (s *Service) conversionBatch(hangoutID string) func(ctx context.Context, ids []string, attempt int) ([]repository.WriteOp, error) {
	return func(ctx context.Context, ids []string, attempt int) ([]repository.WriteOp, error) {
		ops := make([]repository.WriteOp, 0, len(ids))
		now := s.nowMs()
		for _, id := range ids {
			p, err := s.repo.GetParticipation(ctx, hangoutID, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if p.Type != model.ParticipationTicketNeeded {
				continue
			}
			observed := p.Version
			p.Type = model.ParticipationTicketPurchased
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
