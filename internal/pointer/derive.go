package pointer

import "github.com/iliyamo/hangout-reservations/internal/model"

// DeriveFunc computes a participation summary from an aggregate and the
// already resolved user summaries.  Implementations must be pure.
type DeriveFunc func(agg model.HangoutAggregate, users map[string]model.UserSummary) model.ParticipationSummary

// rank orders the participation types that place a user in a summary list.
// A user appears once, in the list of the highest ranked type they hold.
func rank(t model.ParticipationType) int {
	switch t {
	case model.ParticipationTicketPurchased:
		return 3
	case model.ParticipationClaimedSpot:
		return 2
	case model.ParticipationTicketNeeded:
		return 1
	}
	return 0
}

// Derive is the default DeriveFunc.  Users keep the order in which their
// first participation appears in the aggregate; offers keep aggregate order.
func Derive(agg model.HangoutAggregate, users map[string]model.UserSummary) model.ParticipationSummary {
	sum := model.ParticipationSummary{
		UsersNeedingTickets:   []model.UserRef{},
		UsersWithTickets:      []model.UserRef{},
		UsersWithClaimedSpots: []model.UserRef{},
		ReservationOffers:     []model.OfferSummary{},
	}

	best := make(map[string]int)
	var order []string
	for _, p := range agg.Participations {
		if _, seen := best[p.UserID]; !seen {
			order = append(order, p.UserID)
			best[p.UserID] = 0
		}
		if r := rank(p.Type); r > best[p.UserID] {
			best[p.UserID] = r
		}
		if p.Type == model.ParticipationTicketExtra {
			sum.ExtraTicketCount++
		}
	}
	sum.ParticipantCount = len(order)

	for _, id := range order {
		u := users[id]
		ref := model.UserRef{UserID: id, DisplayName: u.DisplayName, ImagePath: u.ImagePath}
		switch best[id] {
		case 3:
			sum.UsersWithTickets = append(sum.UsersWithTickets, ref)
		case 2:
			sum.UsersWithClaimedSpots = append(sum.UsersWithClaimedSpots, ref)
		case 1:
			sum.UsersNeedingTickets = append(sum.UsersNeedingTickets, ref)
		}
	}

	for _, o := range agg.Offers {
		os := model.OfferSummary{
			OfferID:      o.ID,
			Type:         o.Type,
			Status:       o.Status,
			Capacity:     o.Capacity,
			ClaimedSpots: o.ClaimedSpots,
			Section:      o.Section,
			BuyDate:      o.BuyDate,
		}
		if !o.Unlimited() {
			rem := o.RemainingSpots()
			os.RemainingSpots = &rem
		}
		sum.ReservationOffers = append(sum.ReservationOffers, os)
	}
	return sum
}

// Build assembles the pointer of h in groupID's feed.
func Build(h model.Hangout, groupID string, summary model.ParticipationSummary, nowMs int64) model.HangoutPointer {
	return model.HangoutPointer{
		GroupID:        groupID,
		HangoutID:      h.ID,
		Title:          h.Title,
		LocationName:   h.LocationName,
		StartTimestamp: h.StartTimestamp,
		EndTimestamp:   h.EndTimestamp,
		Summary:        summary,
		UpdatedAt:      nowMs,
	}
}
