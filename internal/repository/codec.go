package repository

import (
	"encoding/json"
	"fmt"

	"github.com/iliyamo/hangout-reservations/internal/model"
)

// The functions below translate between domain records and items.  The body
// column always carries the full JSON record; projected columns duplicate the
// fields that conditions and secondary lookups need.  On decode the version
// column wins over the body so that a conditional write that only touched
// projected columns can never be observed with a stale version.

// HangoutItem encodes the canonical hangout record.
func HangoutItem(h model.Hangout) (Item, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return Item{}, fmt.Errorf("encode hangout: %w", err)
	}
	return Item{
		PK:        HangoutPK(h.ID),
		SK:        MetadataSK(),
		Type:      TypeHangout,
		Version:   h.Version,
		UserID:    h.CreatorUserID,
		Body:      body,
		UpdatedAt: h.UpdatedAt,
	}, nil
}

// OfferItem encodes an offer, projecting status and the capacity counters.
func OfferItem(o model.ReservationOffer) (Item, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return Item{}, fmt.Errorf("encode offer: %w", err)
	}
	claimed := int64(o.ClaimedSpots)
	it := Item{
		PK:           HangoutPK(o.HangoutID),
		SK:           OfferSK(o.ID),
		Type:         TypeOffer,
		Version:      o.Version,
		State:        string(o.Status),
		ClaimedSpots: &claimed,
		RefID:        o.ID,
		UserID:       o.CreatorUserID,
		Body:         body,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.Capacity != nil {
		c := int64(*o.Capacity)
		it.Capacity = &c
	}
	return it, nil
}

// ParticipationItem encodes a participation.  RefID carries the linked offer
// so participations can be found by offer.
func ParticipationItem(p model.Participation) (Item, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Item{}, fmt.Errorf("encode participation: %w", err)
	}
	return Item{
		PK:        HangoutPK(p.HangoutID),
		SK:        ParticipationSK(p.ID),
		Type:      TypeParticipation,
		Version:   p.Version,
		State:     string(p.Type),
		RefID:     p.OfferID(),
		UserID:    p.UserID,
		Body:      body,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// PointerItem encodes a hangout pointer under its group partition.
func PointerItem(p model.HangoutPointer) (Item, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Item{}, fmt.Errorf("encode pointer: %w", err)
	}
	return Item{
		PK:        GroupPK(p.GroupID),
		SK:        PointerSK(p.HangoutID),
		Type:      TypePointer,
		Version:   p.Version,
		RefID:     p.HangoutID,
		Body:      body,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// DecodeHangout decodes a METADATA item.
func DecodeHangout(it Item) (model.Hangout, error) {
	var h model.Hangout
	if err := json.Unmarshal(it.Body, &h); err != nil {
		return h, fmt.Errorf("decode hangout %s: %w", it.PK, err)
	}
	h.Version = it.Version
	if h.AssociatedGroups == nil {
		h.AssociatedGroups = []string{}
	}
	return h, nil
}

// DecodeOffer decodes an OFFER# item.
func DecodeOffer(it Item) (model.ReservationOffer, error) {
	var o model.ReservationOffer
	if err := json.Unmarshal(it.Body, &o); err != nil {
		return o, fmt.Errorf("decode offer %s/%s: %w", it.PK, it.SK, err)
	}
	o.Version = it.Version
	if it.ClaimedSpots != nil {
		o.ClaimedSpots = int(*it.ClaimedSpots)
	}
	return o, nil
}

// DecodeParticipation decodes a PART# item.
func DecodeParticipation(it Item) (model.Participation, error) {
	var p model.Participation
	if err := json.Unmarshal(it.Body, &p); err != nil {
		return p, fmt.Errorf("decode participation %s/%s: %w", it.PK, it.SK, err)
	}
	p.Version = it.Version
	return p, nil
}

// DecodePointer decodes a HANGOUT# item of a group partition.
func DecodePointer(it Item) (model.HangoutPointer, error) {
	var p model.HangoutPointer
	if err := json.Unmarshal(it.Body, &p); err != nil {
		return p, fmt.Errorf("decode pointer %s/%s: %w", it.PK, it.SK, err)
	}
	p.Version = it.Version
	return p, nil
}
