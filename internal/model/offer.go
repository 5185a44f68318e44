package model

// OfferType distinguishes a ticket purchase from a venue reservation.
type OfferType string

const (
	OfferTypeTicket      OfferType = "TICKET"
	OfferTypeReservation OfferType = "RESERVATION"
)

// Valid reports whether t is a known offer type.
func (t OfferType) Valid() bool {
	return t == OfferTypeTicket || t == OfferTypeReservation
}

// OfferStatus is the lifecycle state of a reservation offer.  COMPLETED and
// CANCELLED are terminal.
type OfferStatus string

const (
	OfferStatusCollecting OfferStatus = "COLLECTING"
	OfferStatusCompleted  OfferStatus = "COMPLETED"
	OfferStatusCancelled  OfferStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferStatusCollecting, OfferStatusCompleted, OfferStatusCancelled:
		return true
	}
	return false
}

// ReservationOffer represents one group purchase or reservation inside a
// hangout.  When Capacity is set, users take seats through claim/unclaim
// and ClaimedSpots never exceeds Capacity.  A nil Capacity means unlimited;
// such offers are joined by creating participations directly.
//
// Fields:
//  ID              – offer identifier (uuid).
//  HangoutID       – owning hangout (aggregate key).
//  CreatorUserID   – user that opened the offer.
//  Type            – TICKET or RESERVATION.
//  Status          – COLLECTING, COMPLETED or CANCELLED.
//  Capacity        – optional seat limit.
//  ClaimedSpots    – seats currently claimed.
//  Version         – optimistic locking counter, 1 after the first write.
//  BuyDate         – planned purchase date (unix ms).
//  Section         – optional venue section.
//  CompletedDate   – set when the offer is completed (unix ms).
//  TicketCount     – number of tickets bought, recorded on completion.
//  TotalPriceCents – total paid in cents, recorded on completion.
type ReservationOffer struct {
	ID              string      `json:"offerId"`
	HangoutID       string      `json:"hangoutId"`
	CreatorUserID   string      `json:"creatorUserId"`
	Type            OfferType   `json:"type"`
	Status          OfferStatus `json:"status"`
	Capacity        *int        `json:"capacity,omitempty"`
	ClaimedSpots    int         `json:"claimedSpots"`
	Version         int64       `json:"version"`
	BuyDate         *int64      `json:"buyDate,omitempty"`
	Section         *string     `json:"section,omitempty"`
	CompletedDate   *int64      `json:"completedDate,omitempty"`
	TicketCount     *int        `json:"ticketCount,omitempty"`
	TotalPriceCents *int64      `json:"totalPriceCents,omitempty"`
	CreatedAt       int64       `json:"createdAt"`
	UpdatedAt       int64       `json:"updatedAt"`
}

// Unlimited reports whether the offer has no capacity limit.
func (o ReservationOffer) Unlimited() bool { return o.Capacity == nil }

// Full reports whether every spot of a limited offer is claimed.
func (o ReservationOffer) Full() bool {
	return o.Capacity != nil && o.ClaimedSpots >= *o.Capacity
}

// RemainingSpots returns the free spots of a limited offer, or -1 when the
// offer is unlimited.
func (o ReservationOffer) RemainingSpots() int {
	if o.Capacity == nil {
		return -1
	}
	if rem := *o.Capacity - o.ClaimedSpots; rem > 0 {
		return rem
	}
	return 0
}
