package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hangout-reservations/internal/database"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
	"github.com/iliyamo/hangout-reservations/internal/repository"
	"github.com/iliyamo/hangout-reservations/internal/staleness"
	"github.com/iliyamo/hangout-reservations/internal/txn"
	"github.com/iliyamo/hangout-reservations/internal/users"
)

type harness struct {
	svc    *Service
	store  *repository.ItemStore
	users  *repository.UserRepo
	signal staleness.Signal
}

// createTestService wires a Service on a fresh SQLite database.
func createTestService(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))

	store := repository.NewItemStore(db, database.SQLite)
	userRepo := repository.NewUserRepo(db)
	provider := users.NewRepoProvider(userRepo)
	maint := pointer.NewMaintainer(repository.NewHangoutRepo(store), repository.NewPointerRepo(store), provider, nil, 0, nil)
	signal := staleness.NewStoreSignal(repository.NewMarkerRepo(store))
	svc := New(Deps{
		Store:      store,
		Engine:     txn.New(store, txn.Config{}, nil),
		Maintainer: maint,
		Signal:     signal,
		Users:      provider,
	})
	return &harness{svc: svc, store: store, users: userRepo, signal: signal}
}

func intp(v int) *int { return &v }

func (h *harness) hangout(t *testing.T, groups ...string) model.Hangout {
	t.Helper()
	hg, err := h.svc.CreateHangout(context.Background(), "creator", CreateHangoutInput{Title: "Game night", GroupIDs: groups})
	require.NoError(t, err)
	return hg
}

func (h *harness) offer(t *testing.T, hangoutID string, capacity *int) model.ReservationOffer {
	t.Helper()
	o, err := h.svc.CreateOffer(context.Background(), "creator", hangoutID, CreateOfferInput{Type: model.OfferTypeTicket, Capacity: capacity})
	require.NoError(t, err)
	return o
}

func (h *harness) getOffer(t *testing.T, hangoutID, offerID string) model.ReservationOffer {
	t.Helper()
	o, err := h.svc.repo.GetOffer(context.Background(), hangoutID, offerID)
	require.NoError(t, err)
	return o
}

// seedNeeded writes n TICKET_NEEDED participations linked to offerID
// directly to the store, bypassing per-record pointer syncs.
func (h *harness) seedNeeded(t *testing.T, hangoutID, offerID string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		oid := offerID
		p := model.Participation{
			ID:                 fmt.Sprintf("need-%03d", i),
			HangoutID:          hangoutID,
			UserID:             fmt.Sprintf("user-%03d", i),
			Type:               model.ParticipationTicketNeeded,
			ReservationOfferID: &oid,
			Version:            1,
		}
		it, err := repository.ParticipationItem(p)
		require.NoError(t, err)
		require.NoError(t, h.store.PutItem(context.Background(), it, repository.Condition{MustNotExist: true}))
		ids[i] = p.ID
	}
	return ids
}

func (h *harness) claimedSpots(t *testing.T, offerID string) int {
	t.Helper()
	parts, err := h.svc.repo.ParticipationsByOffer(context.Background(), offerID, model.ParticipationClaimedSpot)
	require.NoError(t, err)
	return len(parts)
}

// failingAfter lets ok writes through and fails every later one with a
// non-condition error.
type failingAfter struct {
	next  txn.Writer
	ok    int
	calls int
}

func (f *failingAfter) TransactWrite(ctx context.Context, ops []repository.WriteOp) error {
	f.calls++
	if f.calls > f.ok {
		return errors.New("connection reset")
	}
	return f.next.TransactWrite(ctx, ops)
}

// beforeFirstWrite runs hook once, just ahead of the first transaction it
// forwards.
type beforeFirstWrite struct {
	next txn.Writer
	hook func()
	done bool
}

func (b *beforeFirstWrite) TransactWrite(ctx context.Context, ops []repository.WriteOp) error {
	if !b.done {
		b.done = true
		b.hook()
	}
	return b.next.TransactWrite(ctx, ops)
}
