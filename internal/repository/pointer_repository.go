package repository

import (
	"context"

	"github.com/iliyamo/hangout-reservations/internal/model"
)

// PointerRepo stores hangout pointers inside group feed partitions.  Every
// write is guarded by the pointer's own version.
type PointerRepo struct{ Store *ItemStore }

func NewPointerRepo(store *ItemStore) *PointerRepo { return &PointerRepo{Store: store} }

// Get reads the pointer of hangoutID in groupID's feed.
func (r *PointerRepo) Get(ctx context.Context, groupID, hangoutID string) (model.HangoutPointer, error) {
	it, err := r.Store.Get(ctx, GroupPK(groupID), PointerSK(hangoutID))
	if err != nil {
		return model.HangoutPointer{}, err
	}
	return DecodePointer(it)
}

// Save writes p if the stored version still equals expected (0 means the
// pointer must not exist yet).  The stored pointer carries version
// expected+1 and is returned.  A lost race yields *ConditionFailedError.
func (r *PointerRepo) Save(ctx context.Context, p model.HangoutPointer, expected int64) (model.HangoutPointer, error) {
	p.Version = expected + 1
	it, err := PointerItem(p)
	if err != nil {
		return model.HangoutPointer{}, err
	}
	cond := Condition{MustNotExist: true}
	if expected > 0 {
		cond = Condition{ExpectedVersion: &expected}
	}
	if err := r.Store.PutItem(ctx, it, cond); err != nil {
		return model.HangoutPointer{}, err
	}
	return p, nil
}

// ListByGroup returns every pointer of a group feed ordered by hangout id.
func (r *PointerRepo) ListByGroup(ctx context.Context, groupID string) ([]model.HangoutPointer, error) {
	items, err := r.Store.Query(ctx, GroupPK(groupID), pointerPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]model.HangoutPointer, 0, len(items))
	for _, it := range items {
		p, err := DecodePointer(it)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes a pointer; a missing pointer is not an error.
func (r *PointerRepo) Delete(ctx context.Context, groupID, hangoutID string) error {
	return r.Store.DeleteItem(ctx, GroupPK(groupID), PointerSK(hangoutID), Condition{})
}
