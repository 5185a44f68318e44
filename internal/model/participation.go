package model

// ParticipationType describes how a user takes part in a hangout's ticket
// or reservation plans.
type ParticipationType string

const (
	ParticipationTicketNeeded    ParticipationType = "TICKET_NEEDED"
	ParticipationTicketPurchased ParticipationType = "TICKET_PURCHASED"
	ParticipationTicketExtra     ParticipationType = "TICKET_EXTRA"
	ParticipationSection         ParticipationType = "SECTION"
	ParticipationClaimedSpot     ParticipationType = "CLAIMED_SPOT"
)

// Valid reports whether t is a known participation type.
func (t ParticipationType) Valid() bool {
	switch t {
	case ParticipationTicketNeeded, ParticipationTicketPurchased, ParticipationTicketExtra,
		ParticipationSection, ParticipationClaimedSpot:
		return true
	}
	return false
}

// Participation links a user to a hangout, optionally through a
// reservation offer.  CLAIMED_SPOT participations exist only as the result
// of a successful claim and are removed by unclaim.
//
// Fields:
//  ID                 – participation identifier.
//  HangoutID          – owning hangout (aggregate key).
//  UserID             – participating user.
//  Type               – see ParticipationType.
//  ReservationOfferID – optional offer this participation belongs to.
//  Section            – optional venue section.
//  Seat               – optional seat label.
//  Version            – optimistic locking counter.
//  CreatedAt          – creation time (unix ms).
//  UpdatedAt          – last write time (unix ms).
type Participation struct {
	ID                 string            `json:"participationId"`
	HangoutID          string            `json:"hangoutId"`
	UserID             string            `json:"userId"`
	Type               ParticipationType `json:"type"`
	ReservationOfferID *string           `json:"reservationOfferId,omitempty"`
	Section            *string           `json:"section,omitempty"`
	Seat               *string           `json:"seat,omitempty"`
	Version            int64             `json:"version"`
	CreatedAt          int64             `json:"createdAt"`
	UpdatedAt          int64             `json:"updatedAt"`
}

// OfferID returns the linked offer id or "".
func (p Participation) OfferID() string {
	if p.ReservationOfferID == nil {
		return ""
	}
	return *p.ReservationOfferID
}
