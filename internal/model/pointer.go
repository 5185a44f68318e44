package model

import "reflect"

// HangoutPointer is the denormalized copy of a hangout stored in a group's
// feed partition.  One pointer exists per associated group.  Pointers are
// never authoritative: the maintainer rebuilds them from the aggregate.
//
// Fields:
//  GroupID        – owning group (partition key of the pointer).
//  HangoutID      – referenced hangout.
//  Title          – copied from the hangout.
//  LocationName   – copied from the hangout.
//  StartTimestamp – copied from the hangout.
//  EndTimestamp   – copied from the hangout.
//  Summary        – participation summary derived from the aggregate.
//  Version        – optimistic locking counter of this pointer.
//  UpdatedAt      – last write time (unix ms).
type HangoutPointer struct {
	GroupID        string               `json:"groupId"`
	HangoutID      string               `json:"hangoutId"`
	Title          string               `json:"title"`
	LocationName   string               `json:"locationName,omitempty"`
	StartTimestamp *int64               `json:"startTimestamp,omitempty"`
	EndTimestamp   *int64               `json:"endTimestamp,omitempty"`
	Summary        ParticipationSummary `json:"participationSummary"`
	Version        int64                `json:"version"`
	UpdatedAt      int64                `json:"updatedAt"`
}

// SameContent compares everything except the bookkeeping fields Version and
// UpdatedAt.  The maintainer skips writes when this returns true.
func (p HangoutPointer) SameContent(other HangoutPointer) bool {
	p.Version, other.Version = 0, 0
	p.UpdatedAt, other.UpdatedAt = 0, 0
	return reflect.DeepEqual(p, other)
}

// ParticipationSummary is the per-hangout digest shown in group feeds.  Each
// user appears in at most one of the three user lists.
type ParticipationSummary struct {
	UsersNeedingTickets   []UserRef      `json:"usersNeedingTickets"`
	UsersWithTickets      []UserRef      `json:"usersWithTickets"`
	UsersWithClaimedSpots []UserRef      `json:"usersWithClaimedSpots"`
	ExtraTicketCount      int            `json:"extraTicketCount"`
	ParticipantCount      int            `json:"participantCount"`
	ReservationOffers     []OfferSummary `json:"reservationOffers"`
}

// UserRef is a user as shown in a summary.
type UserRef struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	ImagePath   string `json:"imagePath,omitempty"`
}

// OfferSummary is the feed view of a reservation offer.
type OfferSummary struct {
	OfferID        string      `json:"offerId"`
	Type           OfferType   `json:"type"`
	Status         OfferStatus `json:"status"`
	Capacity       *int        `json:"capacity,omitempty"`
	ClaimedSpots   int         `json:"claimedSpots"`
	RemainingSpots *int        `json:"remainingSpots,omitempty"`
	Section        *string     `json:"section,omitempty"`
	BuyDate        *int64      `json:"buyDate,omitempty"`
}
