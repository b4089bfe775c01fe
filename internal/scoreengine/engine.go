// Package scoreengine maintains the Score table as a function of the Trust
// table (C3). It recomputes scores whenever a Trust edge changes and runs a
// periodic full verification pass, mirroring in shape the teacher's
// ComputeRelationalTrust BFS in registry.go — generalized here from a single
// best-path trust query into the full rank/capacity/value propagation the
// spec requires, and from a float decay factor to the integer
// rank-indexed capacity table.
package scoreengine

import (
	"github.com/freenet/plugin-wot/internal/logging"
	"github.com/freenet/plugin-wot/internal/model"
	"github.com/freenet/plugin-wot/internal/store"
)

// relaxationPasses bounds the number of value-relaxation sweeps run per
// recomputation. Ranks are fixed after the BFS in computeRanks; values can
// still depend on other not-yet-finalized values through the distrust gate
// (Score(O,T).value >= 0 for rank(T) > 1), so a handful of sweeps are run
// until nothing changes or this bound is hit. Bounded by the tabulated rank
// range plus headroom rather than graph size, since value propagation only
// crosses a rank boundary once per sweep.
var relaxationPasses = model.MaxTabulatedRank + 4

// Engine recomputes and verifies Score records for one Store.
type Engine struct {
	store      *store.Store
	minCapacity int
}

// New constructs an Engine. minCapacity should be config.Config.MinCapacity().
func New(s *store.Store, minCapacity int) *Engine {
	return &Engine{store: s, minCapacity: minCapacity}
}

// MinCapacity returns the MIN_CAPACITY threshold this engine enforces for
// edition hint acceptance (spec §4.6), exposed so internal/download can
// apply the same threshold consistently.
func (e *Engine) MinCapacity() int {
	return e.minCapacity
}

// rankResult is the per-owner output of a BFS over the positive-trust
// subgraph: rank and capacity for every identity reachable from owner,
// including the owner itself at rank 0.
type rankResult struct {
	rank     map[string]int
	capacity map[string]int
}

// computeRanks runs the BFS described in spec §4.3: depth in the positive
// trust subgraph rooted at ownerID, one hop per positively-valued trust
// edge. Grounded on the teacher's ComputeRelationalTrust queue-based BFS,
// generalized from "best single path" to "rank of every reachable node" and
// from trust-level decay to a hop-count rank.
//
// A subject trusted directly by the owner with value <= 0 is a special case
// (spec §8 scenario 2): it still gets rank 1 — the owner named it, directly
// — but capacity 0, since non-positive trust from the owner marks it as
// not-a-propagator. It is never enqueued, so it cannot confer rank/capacity
// on anything downstream of it. See DESIGN.md's Open Question decisions for
// why this is scoped to direct owner edges only, not every non-positive
// edge in the graph.
func computeRanks(s *store.Store, ownerID string) *rankResult {
	rank := map[string]int{ownerID: 0}
	capacity := map[string]int{ownerID: model.CapacityForRank(0)}

	queue := []string{ownerID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curRank := rank[cur]

		for _, t := range s.TrustsFrom(cur) {
			if !t.IsPositive() {
				continue
			}
			if _, seen := rank[t.TrusteeID]; seen {
				continue
			}
			rank[t.TrusteeID] = curRank + 1
			capacity[t.TrusteeID] = model.CapacityForRank(curRank + 1)
			queue = append(queue, t.TrusteeID)
		}
	}

	for _, t := range s.TrustsFrom(ownerID) {
		if t.IsPositive() {
			continue
		}
		if _, seen := rank[t.TrusteeID]; seen {
			continue
		}
		rank[t.TrusteeID] = 1
		capacity[t.TrusteeID] = 0
	}

	return &rankResult{rank: rank, capacity: capacity}
}

// computeValues runs the bounded relaxation described at relaxationPasses,
// filling in Score.value for every node computeRanks found reachable.
// The owner's own value is always 0: the owner is skipped in the sweep, so
// the self-trust edge created by RestoreOwnIdentity does not contribute to
// it.
func computeValues(s *store.Store, ownerID string, rr *rankResult) map[string]int32 {
	value := make(map[string]int32, len(rr.rank))
	for id := range rr.rank {
		value[id] = 0
	}

	for pass := 0; pass < relaxationPasses; pass++ {
		changed := false
		for subjectID := range rr.rank {
			if subjectID == ownerID {
				continue
			}
			sum := int64(0)
			for _, t := range s.TrustsTo(subjectID) {
				capT, reachable := rr.capacity[t.TrusterID]
				if !reachable || capT <= 0 {
					continue
				}
				if rr.rank[t.TrusterID] > 1 && value[t.TrusterID] < 0 {
					continue
				}
				sum += int64(t.Value) * int64(capT)
			}
			newValue := model.ClampScoreValue(sum / 100)
			if newValue != value[subjectID] {
				value[subjectID] = newValue
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return value
}

// recomputeOwner rewrites, inside tx, the full Score set for one owner to
// match the ground truth defined by computeRanks/computeValues, deleting
// stale Score records for subjects no longer reachable.
func (e *Engine) recomputeOwner(tx *store.Tx, ownerID string) {
	rr := computeRanks(e.store, ownerID)
	values := computeValues(e.store, ownerID, rr)

	seen := make(map[string]struct{}, len(rr.rank))
	for subjectID, rank := range rr.rank {
		seen[subjectID] = struct{}{}
		tx.PutScore(&model.Score{
			OwnerID:   ownerID,
			SubjectID: subjectID,
			Value:     values[subjectID],
			Rank:      rank,
			Capacity:  rr.capacity[subjectID],
		})
	}

	for _, sc := range e.store.ScoresForOwner(ownerID) {
		if _, ok := seen[sc.SubjectID]; !ok {
			tx.DeleteScore(ownerID, sc.SubjectID)
		}
	}
}

// RecomputeAllScores rebuilds every owner's Score set from scratch. This is
// the ground truth against which both the incremental update path and
// verifyAndCorrectStoredScores are checked (spec §4.3).
func (e *Engine) RecomputeAllScores(tx *store.Tx) {
	for _, own := range e.store.ListOwnIdentities() {
		e.recomputeOwner(tx, own.ID)
	}
}

// ApplyTrustChange updates scores after a single Trust edge change
// (trusterID, trusteeID, oldValue -> newValue). Grounded on spec §4.3's
// three cases. An owner is recomputed when trusterID is the owner or
// already has a Score from it, or when the edge's sign changed (positive
// versus non-positive); other owners are skipped. Each affected owner's
// ranks and values are recomputed from scratch by recomputeOwner rather
// than by cascading a delta through a frontier, which avoids the original's
// mutable LRU-cached Dijkstra search.
func (e *Engine) ApplyTrustChange(tx *store.Tx, trusterID, trusteeID string, oldValue, newValue int) {
	for _, own := range e.store.ListOwnIdentities() {
		if _, reachable := e.store.GetScore(own.ID, trusterID); !reachable && own.ID != trusterID {
			// trusterID has no score from this owner yet: unless the edge
			// activation makes it reachable for the first time, this owner
			// is unaffected. Recomputing is cheap enough to always run it
			// when the sign changed; pure value changes never add reachability.
			if (newValue > 0) == (oldValue > 0) {
				continue
			}
		}
		e.recomputeOwner(tx, own.ID)
	}

	logging.Logger.Debug("applied trust change",
		"truster", trusterID, "trustee", trusteeID,
		"oldValue", oldValue, "newValue", newValue)
}

// VerifyAndCorrectStoredScores recomputes every owner's scores into a
// scratch transaction-like comparison, logs and corrects any discrepancy
// against the stored values, and returns the number of corrections made.
// Scheduled periodically by internal/scheduler (spec §4.3, §4.7).
func (e *Engine) VerifyAndCorrectStoredScores(tx *store.Tx) (int, error) {
	corrections := 0
	for _, own := range e.store.ListOwnIdentities() {
		rr := computeRanks(e.store, own.ID)
		values := computeValues(e.store, own.ID, rr)

		want := make(map[string]*model.Score, len(rr.rank))
		for subjectID, rank := range rr.rank {
			want[subjectID] = &model.Score{
				OwnerID:   own.ID,
				SubjectID: subjectID,
				Value:     values[subjectID],
				Rank:      rank,
				Capacity:  rr.capacity[subjectID],
			}
		}

		got := e.store.ScoresForOwner(own.ID)
		gotByID := make(map[string]*model.Score, len(got))
		for _, sc := range got {
			gotByID[sc.SubjectID] = sc
		}

		for subjectID, w := range want {
			g, ok := gotByID[subjectID]
			if !ok || g.Value != w.Value || g.Rank != w.Rank || g.Capacity != w.Capacity {
				corrections++
				logging.Logger.Warn("score verification correction",
					"owner", own.ID, "subject", subjectID)
				tx.PutScore(w)
			}
		}
		for subjectID := range gotByID {
			if _, ok := want[subjectID]; !ok {
				corrections++
				logging.Logger.Warn("score verification removed stale score",
					"owner", own.ID, "subject", subjectID)
				tx.DeleteScore(own.ID, subjectID)
			}
		}
	}

	if corrections > 0 {
		logging.Logger.Error("score verification found discrepancies", "count", corrections)
	}
	return corrections, nil
}

// ShouldFetchIdentity implements the Download Policy predicate of spec §4.4:
// true iff some OwnIdentity has capacity>0 for x, or a finite rank and
// non-negative value.
func (e *Engine) ShouldFetchIdentity(subjectID string) bool {
	if ident, ok := e.store.GetIdentity(subjectID); ok && ident.IsOwn() {
		return true
	}
	for _, sc := range e.store.ScoresForSubject(subjectID) {
		if sc.Capacity > 0 {
			return true
		}
		if sc.IsRankFinite() && sc.Value >= 0 {
			return true
		}
	}
	return false
}

// IsFastPartition reports whether subjectID belongs in the Fast Downloader's
// partition: it has received a direct trust from some OwnIdentity, i.e. rank
// <= 1 from some owner (spec §4.4).
func (e *Engine) IsFastPartition(subjectID string) bool {
	for _, sc := range e.store.ScoresForSubject(subjectID) {
		if sc.IsRankFinite() && sc.Rank <= 1 {
			return true
		}
	}
	return false
}

// BestCapacity returns the maximum Score.capacity held by subjectID across
// all owners, used to populate EditionHint.sourceCapacity when subjectID
// acts as a hint source (spec §4.6).
func (e *Engine) BestCapacity(subjectID string) int {
	best := 0
	for _, sc := range e.store.ScoresForSubject(subjectID) {
		if sc.Capacity > best {
			best = sc.Capacity
		}
	}
	return best
}

// BestScoreSign returns the sign of the maximum-capacity score held by
// subjectID, defaulting to +1 if no score exists (used only when the
// identity is otherwise known fetchable).
func (e *Engine) BestScoreSign(subjectID string) int {
	best := 0
	sign := 1
	for _, sc := range e.store.ScoresForSubject(subjectID) {
		if sc.Capacity >= best {
			best = sc.Capacity
			if sc.Value < 0 {
				sign = -1
			} else {
				sign = 1
			}
		}
	}
	return sign
}
