package service

import (
	"context"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/repository"
)

type CreateParticipationInput struct {
	Type               model.ParticipationType `json:"type"`
	ReservationOfferID *string                 `json:"reservationOfferId"`
	Section            *string                 `json:"section"`
	Seat               *string                 `json:"seat"`
}

// CreateParticipation records how userID takes part in the hangout.
// CLAIMED_SPOT participations are reserved for ClaimSpot.
func (s *Service) CreateParticipation(ctx context.Context, userID, hangoutID string, in CreateParticipationInput) (model.Participation, error) {
	const op = "create participation"
	if userID == "" {
		return model.Participation{}, apperr.Invalid(op, "user id is required")
	}
	if !in.Type.Valid() {
		return model.Participation{}, apperr.Invalid(op, "unknown participation type %q", in.Type)
	}
	if in.Type == model.ParticipationClaimedSpot {
		return model.Participation{}, apperr.Illegal(op, "claimed spots are created by claiming an offer")
	}
	if in.ReservationOfferID != nil && *in.ReservationOfferID == "" {
		in.ReservationOfferID = nil
	}
	now := s.nowMs()
	p := model.Participation{
		ID:                 s.newID(),
		HangoutID:          hangoutID,
		UserID:             userID,
		Type:               in.Type,
		ReservationOfferID: in.ReservationOfferID,
		Section:            in.Section,
		Seat:               in.Seat,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	it, err := repository.ParticipationItem(p)
	if err != nil {
		return model.Participation{}, apperr.FromStore(op, err)
	}

	_, err = s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		ops := []repository.WriteOp{
			repository.Check(repository.HangoutPK(hangoutID), repository.MetadataSK(), repository.Condition{MustExist: true}),
		}
		if in.ReservationOfferID != nil {
			link, err := s.linkOffer(ctx, op, hangoutID, *in.ReservationOfferID)
			if err != nil {
				return nil, err
			}
			ops = append(ops, link)
		}
		return append(ops, repository.Put(it, repository.Condition{MustNotExist: true})), nil
	}, func(ctx context.Context, cf *repository.ConditionFailedError) error {
		if cf.Index == 0 {
			return apperr.NotFoundf(op, "hangout %s not found", hangoutID)
		}
		return nil
	})
	if err != nil {
		return model.Participation{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return p, nil
}

// linkOffer rejects links to unknown or cancelled offers and returns a
// write that bumps the offer's version.  A DeleteOffer that listed the
// linked participations before this link commits fails its version guard
// and unlinks the new participation on its next attempt.
func (s *Service) linkOffer(ctx context.Context, op, hangoutID, offerID string) (repository.WriteOp, error) {
	o, err := s.repo.GetOffer(ctx, hangoutID, offerID)
	if err != nil {
		return repository.WriteOp{}, missing(err, op, "offer", offerID)
	}
	if o.Status == model.OfferStatusCancelled {
		return repository.WriteOp{}, apperr.Illegal(op, "offer %s is cancelled", offerID).With("offerId", offerID)
	}
	observed := o.Version
	o.Version++
	o.UpdatedAt = s.nowMs()
	it, err := repository.OfferItem(o)
	if err != nil {
		return repository.WriteOp{}, err
	}
	return repository.Put(it, repository.Condition{ExpectedVersion: &observed}), nil
}

// UpdateParticipationInput patches a participation.  An empty
// ReservationOfferID unlinks it from its offer.
type UpdateParticipationInput struct {
	Type               *model.ParticipationType `json:"type"`
	ReservationOfferID *string                  `json:"reservationOfferId"`
	Section            *string                  `json:"section"`
	Seat               *string                  `json:"seat"`
}

// UpdateParticipation applies in under the participation's version.  A
// claimed spot keeps its type and offer; only section and seat change.
func (s *Service) UpdateParticipation(ctx context.Context, hangoutID, participationID string, in UpdateParticipationInput) (model.Participation, error) {
	const op = "update participation"
	if in.Type != nil && !in.Type.Valid() {
		return model.Participation{}, apperr.Invalid(op, "unknown participation type %q", *in.Type)
	}
	if in.Type != nil && *in.Type == model.ParticipationClaimedSpot {
		return model.Participation{}, apperr.Illegal(op, "claimed spots are created by claiming an offer")
	}
	linking := in.ReservationOfferID != nil && *in.ReservationOfferID != ""

	var updated model.Participation
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		p, err := s.repo.GetParticipation(ctx, hangoutID, participationID)
		if err != nil {
			return nil, missing(err, op, "participation", participationID)
		}
		if p.Type == model.ParticipationClaimedSpot && (in.Type != nil || in.ReservationOfferID != nil) {
			return nil, apperr.Illegal(op, "participation %s is a claimed spot; release it with unclaim", participationID).
				With("participationId", participationID)
		}
		if in.Type != nil {
			p.Type = *in.Type
		}
		if in.ReservationOfferID != nil {
			if linking {
				id := *in.ReservationOfferID
				p.ReservationOfferID = &id
			} else {
				p.ReservationOfferID = nil
			}
		}
		if in.Section != nil {
			p.Section = in.Section
		}
		if in.Seat != nil {
			p.Seat = in.Seat
		}
		observed := p.Version
		p.Version++
		p.UpdatedAt = s.nowMs()
		updated = p
		it, err := repository.ParticipationItem(p)
		if err != nil {
			return nil, err
		}
		ops := []repository.WriteOp{repository.Put(it, repository.Condition{ExpectedVersion: &observed})}
		if linking {
			link, err := s.linkOffer(ctx, op, hangoutID, *in.ReservationOfferID)
			if err != nil {
				return nil, err
			}
			ops = append(ops, link)
		}
		return ops, nil
	}, nil)
	if err != nil {
		return model.Participation{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return updated, nil
}

// DeleteParticipation removes a participation.  Claimed spots are released
// with UnclaimSpot instead so the offer counter stays in step.
func (s *Service) DeleteParticipation(ctx context.Context, hangoutID, participationID string) error {
	const op = "delete participation"
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		p, err := s.repo.GetParticipation(ctx, hangoutID, participationID)
		if err != nil {
			return nil, missing(err, op, "participation", participationID)
		}
		if p.Type == model.ParticipationClaimedSpot {
			return nil, apperr.Illegal(op, "participation %s is a claimed spot; release it with unclaim", participationID).
				With("participationId", participationID)
		}
		observed := p.Version
		return []repository.WriteOp{repository.Delete(repository.HangoutPK(hangoutID), repository.ParticipationSK(participationID),
			repository.Condition{ExpectedVersion: &observed})}, nil
	}, nil)
	if err != nil {
		return err
	}
	s.afterMutation(ctx, hangoutID)
	return nil
}
