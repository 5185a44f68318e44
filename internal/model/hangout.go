package model

// Hangout is the canonical record of an aggregate.  Every offer and
// participation of the hangout is stored under the same partition key so
// the whole aggregate can be fetched with one range query.
//
// Timestamps are unix milliseconds so that records survive a JSON round
// trip unchanged.
//
// Fields:
//  ID               – hangout identifier (uuid).
//  Title            – display title, copied into pointers.
//  Description      – free text, not denormalized.
//  LocationName     – copied into pointers.
//  StartTimestamp   – optional start (unix ms), copied into pointers.
//  EndTimestamp     – optional end (unix ms), copied into pointers.
//  CreatorUserID    – user who created the hangout.
//  AssociatedGroups – ids of the groups whose feeds reference this hangout.
//  Version          – optimistic locking counter, 1 after the first write.
//  CreatedAt        – creation time (unix ms).
//  UpdatedAt        – last write time (unix ms).
type Hangout struct {
	ID               string   `json:"hangoutId"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	LocationName     string   `json:"locationName,omitempty"`
	StartTimestamp   *int64   `json:"startTimestamp,omitempty"`
	EndTimestamp     *int64   `json:"endTimestamp,omitempty"`
	CreatorUserID    string   `json:"creatorUserId"`
	AssociatedGroups []string `json:"associatedGroups"`
	Version          int64    `json:"version"`
	CreatedAt        int64    `json:"createdAt"`
	UpdatedAt        int64    `json:"updatedAt"`
}

// HasGroup reports whether groupID is already associated.
func (h Hangout) HasGroup(groupID string) bool {
	for _, g := range h.AssociatedGroups {
		if g == groupID {
			return true
		}
	}
	return false
}

// HangoutAggregate is the decoded result of a single aggregate range query:
// the canonical hangout plus every child record, in sort-key order.
type HangoutAggregate struct {
	Hangout        Hangout            `json:"hangout"`
	Offers         []ReservationOffer `json:"offers"`
	Participations []Participation    `json:"participations"`
}

// Offer returns the offer with the given id.
func (a HangoutAggregate) Offer(offerID string) (ReservationOffer, bool) {
	for _, o := range a.Offers {
		if o.ID == offerID {
			return o, true
		}
	}
	return ReservationOffer{}, false
}

// Participation returns the participation with the given id.
func (a HangoutAggregate) Participation(participationID string) (Participation, bool) {
	for _, p := range a.Participations {
		if p.ID == participationID {
			return p, true
		}
	}
	return Participation{}, false
}

// UserIDs returns the distinct user ids referenced by participations, in
// first-seen order.
func (a HangoutAggregate) UserIDs() []string {
	seen := make(map[string]struct{}, len(a.Participations))
	out := make([]string, 0, len(a.Participations))
	for _, p := range a.Participations {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		out = append(out, p.UserID)
	}
	return out
}
