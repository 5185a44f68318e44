// Package pointer keeps the per-group hangout pointers in step with the
// canonical aggregate.  Pointers are rebuilt from scratch on every sync;
// each one is written under its own version check and a pointer that keeps
// losing races is reported as drift instead of failing the caller.
package pointer

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/model"
	"github.com/iliyamo/hangout-reservations/internal/repository"
	"github.com/iliyamo/hangout-reservations/internal/users"
)

const (
	DefaultMaxRetries = 5
	lookupParallelism = 8
	writeParallelism  = 4
)

// AggregateProvider returns the canonical record and every child record.
type AggregateProvider interface {
	GetFullAggregate(ctx context.Context, hangoutID string) (model.HangoutAggregate, error)
}

// Store persists pointers with a version guard.
type Store interface {
	Get(ctx context.Context, groupID, hangoutID string) (model.HangoutPointer, error)
	Save(ctx context.Context, p model.HangoutPointer, expected int64) (model.HangoutPointer, error)
	Delete(ctx context.Context, groupID, hangoutID string) error
}

// Drift describes a pointer the maintainer could not bring up to date.
type Drift struct {
	HangoutID string
	GroupID   string
	Reason    string
	Attempts  int
}

// DriftRecorder is told about every stale pointer.
type DriftRecorder interface {
	RecordDrift(ctx context.Context, d Drift)
}

// LogRecorder only logs drift.  It is used when no queue is configured.
type LogRecorder struct{ Log *logger.Logger }

func (r LogRecorder) RecordDrift(_ context.Context, d Drift) {
	logger.OrNop(r.Log).Warn("pointer drift", "hangout_id", d.HangoutID, "group_id", d.GroupID,
		"reason", d.Reason, "attempts", d.Attempts)
}

// Report lists the groups whose pointer was written, left unchanged or
// left stale.  Each list is sorted.
type Report struct {
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
	Stale     []string `json:"stale"`
}

// Maintainer rebuilds hangout pointers.
type Maintainer struct {
	aggregates AggregateProvider
	pointers   Store
	users      users.Provider
	drift      DriftRecorder
	log        *logger.Logger
	maxRetries int
	now        func() time.Time
}

func NewMaintainer(aggs AggregateProvider, ptrs Store, up users.Provider, drift DriftRecorder, maxRetries int, log *logger.Logger) *Maintainer {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	log = logger.OrNop(log)
	if drift == nil {
		drift = LogRecorder{Log: log}
	}
	return &Maintainer{
		aggregates: aggs,
		pointers:   ptrs,
		users:      up,
		drift:      drift,
		log:        log,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// SyncPointers re-reads the aggregate of hangoutID, derives its summary and
// writes it to the pointer of every associated group.  Only the aggregate
// read can fail the call; per-pointer failures end up in Report.Stale.
// Running it twice without an intervening mutation writes nothing the
// second time.
//
// A round that writes any pointer reads the aggregate again afterwards.
// If a mutation committed behind the first read, the pointers are rebuilt
// from the newer aggregate, so a slow sync never leaves an older summary
// on top of a newer one.  When the aggregate keeps moving for maxRetries
// rounds the written groups are reported stale and recorded as drift.
func (m *Maintainer) SyncPointers(ctx context.Context, hangoutID string, derive DeriveFunc) (Report, error) {
	if derive == nil {
		derive = Derive
	}
	src, err := m.load(ctx, hangoutID, derive)
	if err != nil {
		return Report{}, err
	}

	outcomes := make(map[string]outcome)
	for round := 1; ; round++ {
		wrote := m.writeRound(ctx, src, outcomes)
		if !wrote {
			break
		}
		fresh, err := m.load(ctx, hangoutID, derive)
		if errors.Is(err, repository.ErrNotFound) {
			// deleted behind us: drop whatever this sync recreated
			for groupID, o := range outcomes {
				if o == outcomeUpdated {
					_ = m.pointers.Delete(ctx, groupID, hangoutID)
				}
			}
			return Report{}, err
		}
		if err != nil {
			m.markDrift(ctx, hangoutID, outcomes, "verify read failed: "+err.Error(), round)
			break
		}
		if fresh.same(src) {
			break
		}
		m.log.Debug("aggregate moved during sync", "hangout_id", hangoutID, "round", round)
		if round >= m.maxRetries {
			m.markDrift(ctx, hangoutID, outcomes, "aggregate changed during sync", round)
			break
		}
		src = fresh
		for groupID, o := range outcomes {
			if src.hangout.HasGroup(groupID) {
				continue
			}
			if o == outcomeUpdated {
				_ = m.pointers.Delete(ctx, groupID, hangoutID)
			}
			delete(outcomes, groupID)
		}
	}

	var report Report
	for groupID, o := range outcomes {
		switch o {
		case outcomeUpdated:
			report.Updated = append(report.Updated, groupID)
		case outcomeUnchanged:
			report.Unchanged = append(report.Unchanged, groupID)
		default:
			report.Stale = append(report.Stale, groupID)
		}
	}
	sort.Strings(report.Updated)
	sort.Strings(report.Unchanged)
	sort.Strings(report.Stale)
	return report, nil
}

// source is one read of the aggregate and the summary derived from it.
type source struct {
	hangout model.Hangout
	summary model.ParticipationSummary
}

func (m *Maintainer) load(ctx context.Context, hangoutID string, derive DeriveFunc) (source, error) {
	agg, err := m.aggregates.GetFullAggregate(ctx, hangoutID)
	if err != nil {
		return source{}, err
	}
	return source{hangout: agg.Hangout, summary: derive(agg, m.resolveUsers(ctx, agg.UserIDs()))}, nil
}

// same reports whether both reads produce identical pointers for the same
// set of groups.
func (s source) same(other source) bool {
	if !slices.Equal(s.hangout.AssociatedGroups, other.hangout.AssociatedGroups) {
		return false
	}
	return Build(s.hangout, "", s.summary, 0).SameContent(Build(other.hangout, "", other.summary, 0))
}

// writeRound syncs every group of src and merges the results into
// outcomes.  A group written in an earlier round stays Updated.  It
// reports whether any pointer was written in this round.
func (m *Maintainer) writeRound(ctx context.Context, src source, outcomes map[string]outcome) bool {
	var (
		mu    sync.Mutex
		wrote bool
		g     errgroup.Group
	)
	g.SetLimit(writeParallelism)
	for _, groupID := range src.hangout.AssociatedGroups {
		g.Go(func() error {
			o := m.syncOne(ctx, src.hangout, groupID, src.summary)
			mu.Lock()
			defer mu.Unlock()
			if o == outcomeUpdated {
				wrote = true
			}
			if prev, ok := outcomes[groupID]; ok && prev == outcomeUpdated && o == outcomeUnchanged {
				return nil
			}
			outcomes[groupID] = o
			return nil
		})
	}
	_ = g.Wait()
	return wrote
}

// markDrift turns every group written by this sync into a stale one.
func (m *Maintainer) markDrift(ctx context.Context, hangoutID string, outcomes map[string]outcome, reason string, attempts int) {
	for groupID, o := range outcomes {
		if o != outcomeUpdated {
			continue
		}
		outcomes[groupID] = outcomeStale
		m.drift.RecordDrift(ctx, Drift{HangoutID: hangoutID, GroupID: groupID, Reason: reason, Attempts: attempts})
	}
}

type outcome int

const (
	outcomeUpdated outcome = iota
	outcomeUnchanged
	outcomeStale
)

func (m *Maintainer) syncOne(ctx context.Context, h model.Hangout, groupID string, summary model.ParticipationSummary) outcome {
	reason := "version conflict"
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		cur, err := m.pointers.Get(ctx, groupID, h.ID)
		exists := err == nil
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			reason = "read failed: " + err.Error()
			m.log.Debug("pointer read failed", "hangout_id", h.ID, "group_id", groupID, "attempt", attempt, "error", err)
			continue
		}
		want := Build(h, groupID, summary, m.now().UnixMilli())
		if exists && cur.SameContent(want) {
			return outcomeUnchanged
		}
		_, err = m.pointers.Save(ctx, want, cur.Version)
		if err == nil {
			return outcomeUpdated
		}
		if errors.Is(err, repository.ErrConditionFailed) {
			reason = "version conflict"
		} else {
			reason = "write failed: " + err.Error()
		}
		m.log.Debug("pointer write lost", "hangout_id", h.ID, "group_id", groupID, "attempt", attempt, "error", err)
	}
	m.drift.RecordDrift(ctx, Drift{HangoutID: h.ID, GroupID: groupID, Reason: reason, Attempts: m.maxRetries})
	return outcomeStale
}

// resolveUsers looks users up in parallel.  A failed lookup leaves the
// user without display fields; the next sync fills them in.
func (m *Maintainer) resolveUsers(ctx context.Context, ids []string) map[string]model.UserSummary {
	out := make(map[string]model.UserSummary, len(ids))
	if m.users == nil {
		return out
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(lookupParallelism)
	for _, id := range ids {
		g.Go(func() error {
			s, ok, err := m.users.Get(ctx, id)
			if err != nil {
				m.log.Warn("user lookup failed", "user_id", id, "error", err)
				return nil
			}
			if ok {
				mu.Lock()
				out[id] = s
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Remove deletes the pointer of hangoutID from groupID's feed.
func (m *Maintainer) Remove(ctx context.Context, groupID, hangoutID string) error {
	return m.pointers.Delete(ctx, groupID, hangoutID)
}
