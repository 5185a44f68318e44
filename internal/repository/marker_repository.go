package repository

import (
	"context"
	"errors"
	"fmt"
)

// MarkerRepo keeps a per-group last-modified marker in the group's own
// partition.  The marker value lives in the version column so that the
// compare-and-swap is the same one every other item uses.
type MarkerRepo struct{ Store *ItemStore }

func NewMarkerRepo(store *ItemStore) *MarkerRepo { return &MarkerRepo{Store: store} }

const markerRetries = 5

// Get returns the current marker of groupID, or 0 when none was ever set.
func (r *MarkerRepo) Get(ctx context.Context, groupID string) (int64, error) {
	it, err := r.Store.Get(ctx, GroupPK(groupID), MarkerSK())
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return it.Version, nil
}

// Bump advances the marker to max(current+1, nowMs) and returns it.
func (r *MarkerRepo) Bump(ctx context.Context, groupID string, nowMs int64) (int64, error) {
	for attempt := 0; attempt < markerRetries; attempt++ {
		cur, err := r.Get(ctx, groupID)
		if err != nil {
			return 0, err
		}
		next := cur + 1
		if nowMs > next {
			next = nowMs
		}
		it := Item{
			PK:        GroupPK(groupID),
			SK:        MarkerSK(),
			Type:      TypeMarker,
			Version:   next,
			Body:      []byte(fmt.Sprintf(`{"groupId":%q,"marker":%d}`, groupID, next)),
			UpdatedAt: nowMs,
		}
		cond := Condition{MustNotExist: true}
		if cur > 0 {
			cond = Condition{ExpectedVersion: &cur}
		}
		err = r.Store.PutItem(ctx, it, cond)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrConditionFailed) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("bump marker %s: %w", groupID, ErrConflict)
}
