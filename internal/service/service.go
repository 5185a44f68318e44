// Package service implements the hangout reservation operations.  Every
// mutation follows the same shape: a conditional write through the
// transaction engine, then a pointer sync of the hangout, then a staleness
// touch of the groups whose pointers changed.  The last two steps never
// fail the caller.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
	"github.com/iliyamo/hangout-reservations/internal/repository"
	"github.com/iliyamo/hangout-reservations/internal/staleness"
	"github.com/iliyamo/hangout-reservations/internal/txn"
	"github.com/iliyamo/hangout-reservations/internal/users"
)

// Deps wires a Service.
type Deps struct {
	Store      *repository.ItemStore
	Engine     *txn.Engine
	Maintainer *pointer.Maintainer
	Signal     staleness.Signal
	Users      users.Provider
	Log        *logger.Logger
}

// Service is safe for concurrent use.
type Service struct {
	store    *repository.ItemStore
	repo     *repository.HangoutRepo
	pointers *repository.PointerRepo
	engine   *txn.Engine
	maint    *pointer.Maintainer
	signal   staleness.Signal
	users    users.Provider
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

// New builds a Service.  Without a Maintainer one is built over the same
// store, recording drift to the log; without an Engine the default retry
// budget applies.
func New(d Deps) *Service {
	log := logger.OrNop(d.Log)
	repo := repository.NewHangoutRepo(d.Store)
	pointers := repository.NewPointerRepo(d.Store)
	maint := d.Maintainer
	if maint == nil {
		maint = pointer.NewMaintainer(repo, pointers, d.Users, nil, 0, log)
	}
	engine := d.Engine
	if engine == nil {
		engine = txn.New(d.Store, txn.Config{}, log)
	}
	return &Service{
		store:    d.Store,
		repo:     repo,
		pointers: pointers,
		engine:   engine,
		maint:    maint,
		signal:   d.Signal,
		users:    d.Users,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// claimNamespace seeds the deterministic ids of CLAIMED_SPOT participations.
var claimNamespace = uuid.MustParse("6f1c3a52-8d0e-4b7a-9c55-2f4e0b9d7a11")

// claimID is the participation id of userID's claim on offerID.  One id per
// pair makes a second claim collide with the first at insert time.
func claimID(offerID, userID string) string {
	return uuid.NewSHA1(claimNamespace, []byte(offerID+"\x00"+userID)).String()
}

func (s *Service) nowMs() int64 { return s.now().UnixMilli() }

// afterMutation syncs the hangout's pointers and touches every group whose
// pointer changed, plus extra (groups that lost their pointer).
func (s *Service) afterMutation(ctx context.Context, hangoutID string, extra ...string) {
	touch := append([]string(nil), extra...)
	report, err := s.maint.SyncPointers(ctx, hangoutID, pointer.Derive)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		s.log.Warn("pointer sync failed", "hangout_id", hangoutID, "error", err)
	default:
		touch = append(touch, report.Updated...)
		if len(report.Stale) > 0 {
			s.log.Warn("pointers left stale", "hangout_id", hangoutID, "groups", report.Stale)
		}
	}
	s.touch(ctx, touch)
}

func (s *Service) touch(ctx context.Context, groups []string) {
	if s.signal == nil || len(groups) == 0 {
		return
	}
	if err := s.signal.Touch(ctx, groups...); err != nil {
		s.log.Warn("staleness touch failed", "groups", groups, "error", err)
	}
}

// missing converts ErrNotFound into a NotFound error naming the record and
// passes every other error through.
func missing(err error, op, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFoundf(op, "%s %s not found", what, id)
	}
	return err
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
