package repository

import "strings"

// Item types stored in items.item_type.
const (
	TypeHangout       = "hangout"
	TypeOffer         = "offer"
	TypeParticipation = "participation"
	TypePointer       = "hangout_pointer"
	TypeMarker        = "group_marker"
)

// Key layout.  Every record of a hangout shares the EVENT# partition; group
// feeds live under GROUP#.  Sort keys are chosen so that METADATA sorts
// before OFFER# and OFFER# before PART#.
const (
	eventPrefix   = "EVENT#"
	groupPrefix   = "GROUP#"
	metadataSK    = "METADATA"
	offerPrefix   = "OFFER#"
	partPrefix    = "PART#"
	pointerPrefix = "HANGOUT#"
	markerSK      = "#MARKER"
)

// HangoutPK returns the aggregate partition key of a hangout.
func HangoutPK(hangoutID string) string { return eventPrefix + hangoutID }

// GroupPK returns the feed partition key of a group.
func GroupPK(groupID string) string { return groupPrefix + groupID }

// MetadataSK is the sort key of a canonical record.
func MetadataSK() string { return metadataSK }

// OfferSK returns the sort key of an offer.
func OfferSK(offerID string) string { return offerPrefix + offerID }

// ParticipationSK returns the sort key of a participation.
func ParticipationSK(participationID string) string { return partPrefix + participationID }

// PointerSK returns the sort key of a hangout pointer inside a group feed.
func PointerSK(hangoutID string) string { return pointerPrefix + hangoutID }

// MarkerSK is the sort key of a group's staleness marker.
func MarkerSK() string { return markerSK }

// IDFromSK strips the record prefix from a sort key.
func IDFromSK(sk string) string {
	if i := strings.IndexByte(sk, '#'); i >= 0 {
		return sk[i+1:]
	}
	return sk
}
