package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
	"github.com/iliyamo/hangout-reservations/internal/repository"
	"github.com/iliyamo/hangout-reservations/internal/staleness"
)

type CreateHangoutInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	LocationName   string   `json:"locationName"`
	StartTimestamp *int64   `json:"startTimestamp"`
	EndTimestamp   *int64   `json:"endTimestamp"`
	GroupIDs       []string `json:"groupIds"`
}

func validTimes(start, end *int64) bool {
	return start == nil || end == nil || *end >= *start
}

// CreateHangout stores the canonical record and creates one pointer per
// associated group.
func (s *Service) CreateHangout(ctx context.Context, userID string, in CreateHangoutInput) (model.Hangout, error) {
	const op = "create hangout"
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return model.Hangout{}, apperr.Invalid(op, "title is required")
	}
	if !validTimes(in.StartTimestamp, in.EndTimestamp) {
		return model.Hangout{}, apperr.Invalid(op, "end must not be before start")
	}
	now := s.nowMs()
	h := model.Hangout{
		ID:               s.newID(),
		Title:            in.Title,
		Description:      in.Description,
		LocationName:     in.LocationName,
		StartTimestamp:   in.StartTimestamp,
		EndTimestamp:     in.EndTimestamp,
		CreatorUserID:    userID,
		AssociatedGroups: dedupe(in.GroupIDs),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	it, err := repository.HangoutItem(h)
	if err != nil {
		return model.Hangout{}, apperr.FromStore(op, err)
	}
	if err := s.store.PutItem(ctx, it, repository.Condition{MustNotExist: true}); err != nil {
		return model.Hangout{}, apperr.FromStore(op, err)
	}
	s.afterMutation(ctx, h.ID)
	return h, nil
}

// UpdateHangoutInput patches the canonical record.  Nil fields stay
// unchanged.
type UpdateHangoutInput struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	LocationName   *string `json:"locationName"`
	StartTimestamp *int64  `json:"startTimestamp"`
	EndTimestamp   *int64  `json:"endTimestamp"`
}

// UpdateHangout applies in under the hangout's version and resyncs the
// pointers, which copy title, location and times.
func (s *Service) UpdateHangout(ctx context.Context, hangoutID string, in UpdateHangoutInput) (model.Hangout, error) {
	const op = "update hangout"
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return model.Hangout{}, apperr.Invalid(op, "title must not be empty")
	}
	var updated model.Hangout
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		h, err := s.repo.GetHangout(ctx, hangoutID)
		if err != nil {
			return nil, missing(err, op, "hangout", hangoutID)
		}
		if in.Title != nil {
			h.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			h.Description = *in.Description
		}
		if in.LocationName != nil {
			h.LocationName = *in.LocationName
		}
		if in.StartTimestamp != nil {
			h.StartTimestamp = in.StartTimestamp
		}
		if in.EndTimestamp != nil {
			h.EndTimestamp = in.EndTimestamp
		}
		if !validTimes(h.StartTimestamp, h.EndTimestamp) {
			return nil, apperr.Invalid(op, "end must not be before start")
		}
		return s.putHangout(h, &updated)
	}, nil)
	if err != nil {
		return model.Hangout{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return updated, nil
}

// putHangout bumps the version of h, records it in out and returns the
// versioned put.
func (s *Service) putHangout(h model.Hangout, out *model.Hangout) ([]repository.WriteOp, error) {
	observed := h.Version
	h.Version++
	h.UpdatedAt = s.nowMs()
	*out = h
	it, err := repository.HangoutItem(h)
	if err != nil {
		return nil, err
	}
	return []repository.WriteOp{repository.Put(it, repository.Condition{ExpectedVersion: &observed})}, nil
}

// DeleteHangout removes every record of the aggregate and the pointers of
// its groups.  It returns the number of aggregate records deleted.
func (s *Service) DeleteHangout(ctx context.Context, hangoutID string) (int, error) {
	const op = "delete hangout"
	h, err := s.repo.GetHangout(ctx, hangoutID)
	if err != nil {
		return 0, apperr.FromStore(op, missing(err, op, "hangout", hangoutID))
	}
	n, err := s.repo.DeleteAggregate(ctx, hangoutID)
	if err != nil {
		return n, apperr.FromStore(op, err)
	}
	for _, g := range h.AssociatedGroups {
		if err := s.pointers.Delete(ctx, g, hangoutID); err != nil {
			s.log.Warn("pointer delete failed", "hangout_id", hangoutID, "group_id", g, "error", err)
		}
	}
	s.touch(ctx, h.AssociatedGroups)
	return n, nil
}

// AssociateGroups adds groups to the hangout; each new group gets a pointer.
func (s *Service) AssociateGroups(ctx context.Context, hangoutID string, groupIDs []string) (model.Hangout, error) {
	const op = "associate groups"
	groupIDs = dedupe(groupIDs)
	if len(groupIDs) == 0 {
		return model.Hangout{}, apperr.Invalid(op, "at least one group id is required")
	}
	var updated model.Hangout
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		h, err := s.repo.GetHangout(ctx, hangoutID)
		if err != nil {
			return nil, missing(err, op, "hangout", hangoutID)
		}
		updated = h
		added := false
		for _, g := range groupIDs {
			if !h.HasGroup(g) {
				h.AssociatedGroups = append(h.AssociatedGroups, g)
				added = true
			}
		}
		if !added {
			return nil, nil
		}
		return s.putHangout(h, &updated)
	}, nil)
	if err != nil {
		return model.Hangout{}, err
	}
	s.afterMutation(ctx, hangoutID)
	return updated, nil
}

// DisassociateGroup removes a group from the hangout and deletes its
// pointer.
func (s *Service) DisassociateGroup(ctx context.Context, hangoutID, groupID string) (model.Hangout, error) {
	const op = "disassociate group"
	var updated model.Hangout
	_, err := s.engine.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
		h, err := s.repo.GetHangout(ctx, hangoutID)
		if err != nil {
			return nil, missing(err, op, "hangout", hangoutID)
		}
		if !h.HasGroup(groupID) {
			return nil, apperr.NotFoundf(op, "group %s is not associated with hangout %s", groupID, hangoutID)
		}
		kept := make([]string, 0, len(h.AssociatedGroups)-1)
		for _, g := range h.AssociatedGroups {
			if g != groupID {
				kept = append(kept, g)
			}
		}
		h.AssociatedGroups = kept
		return s.putHangout(h, &updated)
	}, nil)
	if err != nil {
		return model.Hangout{}, err
	}
	if err := s.maint.Remove(ctx, groupID, hangoutID); err != nil {
		s.log.Warn("pointer delete failed", "hangout_id", hangoutID, "group_id", groupID, "error", err)
	}
	s.afterMutation(ctx, hangoutID, groupID)
	return updated, nil
}

// HangoutDetail is the full aggregate plus the users it references.
type HangoutDetail struct {
	model.HangoutAggregate
	Users map[string]model.UserSummary `json:"users"`
}

// GetHangoutDetail reads the whole aggregate in one query.
func (s *Service) GetHangoutDetail(ctx context.Context, hangoutID string) (HangoutDetail, error) {
	const op = "get hangout"
	agg, err := s.repo.GetAggregate(ctx, hangoutID)
	if err != nil {
		return HangoutDetail{}, apperr.FromStore(op, missing(err, op, "hangout", hangoutID))
	}
	d := HangoutDetail{HangoutAggregate: agg, Users: map[string]model.UserSummary{}}
	if s.users == nil {
		return d, nil
	}
	for _, id := range agg.UserIDs() {
		u, ok, err := s.users.Get(ctx, id)
		if err != nil {
			s.log.Warn("user lookup failed", "user_id", id, "error", err)
			continue
		}
		if ok {
			d.Users[id] = u
		}
	}
	return d, nil
}

// GroupFeed is a group's list of hangout pointers with its freshness token.
type GroupFeed struct {
	GroupID  string                 `json:"groupId"`
	Token    string                 `json:"token"`
	Hangouts []model.HangoutPointer `json:"hangouts"`
}

// FeedToken returns the current freshness token of a group.
func (s *Service) FeedToken(ctx context.Context, groupID string) (string, error) {
	if s.signal == nil {
		return "", nil
	}
	m, err := s.signal.Marker(ctx, groupID)
	if err != nil {
		return "", apperr.Transient("feed token", err)
	}
	return staleness.Token(groupID, m), nil
}

// ListGroupFeed reads every pointer of a group.  The token is taken before
// the pointers so a concurrent change can only make it older, never newer,
// than the data returned.
func (s *Service) ListGroupFeed(ctx context.Context, groupID string) (GroupFeed, error) {
	const op = "list group feed"
	token, err := s.FeedToken(ctx, groupID)
	if err != nil {
		return GroupFeed{}, err
	}
	ptrs, err := s.pointers.ListByGroup(ctx, groupID)
	if err != nil {
		return GroupFeed{}, apperr.FromStore(op, err)
	}
	return GroupFeed{GroupID: groupID, Token: token, Hangouts: ptrs}, nil
}

// RepairPointers re-runs the pointer sync of a hangout and touches the
// groups it updated.
func (s *Service) RepairPointers(ctx context.Context, hangoutID string) (pointer.Report, error) {
	const op = "repair pointers"
	report, err := s.maint.SyncPointers(ctx, hangoutID, pointer.Derive)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return report, apperr.NotFoundf(op, "hangout %s not found", hangoutID)
		}
		return report, apperr.FromStore(op, err)
	}
	s.touch(ctx, report.Updated)
	return report, nil
}
