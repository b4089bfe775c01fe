package store

import (
	"github.com/freenet/plugin-wot/internal/model"
)

// Tx is a single-writer transaction over the Store. All mutations of Trust,
// Score and EditionHint records for one logical event (spec §4.1, §5.2) must
// go through one Tx; Rollback restores the pre-transaction state exactly.
//
// Only one Tx may be open at a time per Store: Begin blocks until any prior
// Tx commits or rolls back, implementing the single-writer discipline of
// spec §5.2.
type Tx struct {
	store *Store
	undo  []func()
	done  bool
}

// Begin acquires the store's write lock and returns a new transaction.
func (s *Store) Begin() *Tx {
	s.writeMu.Lock()
	return &Tx{store: s}
}

// Commit finalizes the transaction, discarding its undo log.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.done = true
	tx.undo = nil
	tx.store.writeMu.Unlock()
}

// Rollback reverts every mutation performed within this transaction, in
// reverse order, then releases the write lock. Idempotent.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.store.writeMu.Unlock()
}

func (tx *Tx) record(undo func()) {
	tx.undo = append(tx.undo, undo)
}

// PutIdentity inserts or replaces an identity record.
func (tx *Tx) PutIdentity(ident *model.Identity) {
	s := tx.store
	s.identitiesMu.Lock()
	defer s.identitiesMu.Unlock()

	prev, existed := s.identities[ident.ID]
	var prevCopy *model.Identity
	if existed {
		prevCopy = prev.Clone()
	}
	s.identities[ident.ID] = ident.Clone()

	tx.record(func() {
		s.identitiesMu.Lock()
		defer s.identitiesMu.Unlock()
		if existed {
			s.identities[ident.ID] = prevCopy
		} else {
			delete(s.identities, ident.ID)
		}
	})
}

// DeleteIdentity removes an identity record if present.
func (tx *Tx) DeleteIdentity(id string) {
	s := tx.store
	s.identitiesMu.Lock()
	defer s.identitiesMu.Unlock()

	prev, existed := s.identities[id]
	if !existed {
		return
	}
	prevCopy := prev.Clone()
	delete(s.identities, id)

	tx.record(func() {
		s.identitiesMu.Lock()
		defer s.identitiesMu.Unlock()
		s.identities[id] = prevCopy
	})
}

// PutTrust inserts or replaces a trust edge, maintaining the truster/trustee
// secondary indexes.
func (tx *Tx) PutTrust(t *model.Trust) {
	s := tx.store
	s.trustsMu.Lock()
	defer s.trustsMu.Unlock()

	key := t.TrusterID + "@" + t.TrusteeID
	prev, existed := s.trusts[key]
	var prevCopy *model.Trust
	if existed {
		cp := *prev
		prevCopy = &cp
	}

	cp := *t
	s.trusts[key] = &cp
	if s.trustsByTruster[t.TrusterID] == nil {
		s.trustsByTruster[t.TrusterID] = make(map[string]*model.Trust)
	}
	s.trustsByTruster[t.TrusterID][t.TrusteeID] = &cp
	if s.trustsByTrustee[t.TrusteeID] == nil {
		s.trustsByTrustee[t.TrusteeID] = make(map[string]*model.Trust)
	}
	s.trustsByTrustee[t.TrusteeID][t.TrusterID] = &cp

	tx.record(func() {
		s.trustsMu.Lock()
		defer s.trustsMu.Unlock()
		if existed {
			s.trusts[key] = prevCopy
			s.trustsByTruster[prevCopy.TrusterID][prevCopy.TrusteeID] = prevCopy
			s.trustsByTrustee[prevCopy.TrusteeID][prevCopy.TrusterID] = prevCopy
		} else {
			delete(s.trusts, key)
			delete(s.trustsByTruster[t.TrusterID], t.TrusteeID)
			delete(s.trustsByTrustee[t.TrusteeID], t.TrusterID)
		}
	})
}

// DeleteTrust removes a trust edge if present.
func (tx *Tx) DeleteTrust(trusterID, trusteeID string) {
	s := tx.store
	s.trustsMu.Lock()
	defer s.trustsMu.Unlock()

	key := trusterID + "@" + trusteeID
	prev, existed := s.trusts[key]
	if !existed {
		return
	}
	prevCopy := *prev
	delete(s.trusts, key)
	delete(s.trustsByTruster[trusterID], trusteeID)
	delete(s.trustsByTrustee[trusteeID], trusterID)

	tx.record(func() {
		s.trustsMu.Lock()
		defer s.trustsMu.Unlock()
		s.trusts[key] = &prevCopy
		if s.trustsByTruster[trusterID] == nil {
			s.trustsByTruster[trusterID] = make(map[string]*model.Trust)
		}
		s.trustsByTruster[trusterID][trusteeID] = &prevCopy
		if s.trustsByTrustee[trusteeID] == nil {
			s.trustsByTrustee[trusteeID] = make(map[string]*model.Trust)
		}
		s.trustsByTrustee[trusteeID][trusterID] = &prevCopy
	})
}

// PutScore inserts or replaces a score record, maintaining secondary indexes.
func (tx *Tx) PutScore(sc *model.Score) {
	s := tx.store
	s.scoresMu.Lock()
	defer s.scoresMu.Unlock()

	key := sc.OwnerID + "@" + sc.SubjectID
	prev, existed := s.scores[key]
	var prevCopy *model.Score
	if existed {
		cp := *prev
		prevCopy = &cp
	}

	cp := *sc
	s.scores[key] = &cp
	if s.scoresByOwner[sc.OwnerID] == nil {
		s.scoresByOwner[sc.OwnerID] = make(map[string]*model.Score)
	}
	s.scoresByOwner[sc.OwnerID][sc.SubjectID] = &cp
	if s.scoresBySubject[sc.SubjectID] == nil {
		s.scoresBySubject[sc.SubjectID] = make(map[string]*model.Score)
	}
	s.scoresBySubject[sc.SubjectID][sc.OwnerID] = &cp

	tx.record(func() {
		s.scoresMu.Lock()
		defer s.scoresMu.Unlock()
		if existed {
			s.scores[key] = prevCopy
			s.scoresByOwner[prevCopy.OwnerID][prevCopy.SubjectID] = prevCopy
			s.scoresBySubject[prevCopy.SubjectID][prevCopy.OwnerID] = prevCopy
		} else {
			delete(s.scores, key)
			delete(s.scoresByOwner[sc.OwnerID], sc.SubjectID)
			delete(s.scoresBySubject[sc.SubjectID], sc.OwnerID)
		}
	})
}

// DeleteScore removes a score record if present.
func (tx *Tx) DeleteScore(ownerID, subjectID string) {
	s := tx.store
	s.scoresMu.Lock()
	defer s.scoresMu.Unlock()

	key := ownerID + "@" + subjectID
	prev, existed := s.scores[key]
	if !existed {
		return
	}
	prevCopy := *prev
	delete(s.scores, key)
	delete(s.scoresByOwner[ownerID], subjectID)
	delete(s.scoresBySubject[subjectID], ownerID)

	tx.record(func() {
		s.scoresMu.Lock()
		defer s.scoresMu.Unlock()
		s.scores[key] = &prevCopy
		if s.scoresByOwner[ownerID] == nil {
			s.scoresByOwner[ownerID] = make(map[string]*model.Score)
		}
		s.scoresByOwner[ownerID][subjectID] = &prevCopy
		if s.scoresBySubject[subjectID] == nil {
			s.scoresBySubject[subjectID] = make(map[string]*model.Score)
		}
		s.scoresBySubject[subjectID][ownerID] = &prevCopy
	})
}

// PutEditionHint inserts or replaces an edition hint, maintaining the
// subject index and the priority-ordered index.
func (tx *Tx) PutEditionHint(h *model.EditionHint) {
	s := tx.store
	s.hintsMu.Lock()
	defer s.hintsMu.Unlock()

	key := h.ID()
	prev, existed := s.hints[key]
	var prevCopy *model.EditionHint
	if existed {
		cp := *prev
		prevCopy = &cp
		s.hintsByPriority.remove(key, prev.Priority)
	}

	cp := *h
	s.hints[key] = &cp
	if s.hintsBySubject[h.SubjectID] == nil {
		s.hintsBySubject[h.SubjectID] = make(map[string]*model.EditionHint)
	}
	s.hintsBySubject[h.SubjectID][h.SourceID] = &cp
	s.hintsByPriority.insert(key, h.Priority)

	tx.record(func() {
		s.hintsMu.Lock()
		defer s.hintsMu.Unlock()
		s.hintsByPriority.remove(key, h.Priority)
		if existed {
			s.hints[key] = prevCopy
			s.hintsBySubject[prevCopy.SubjectID][prevCopy.SourceID] = prevCopy
			s.hintsByPriority.insert(key, prevCopy.Priority)
		} else {
			delete(s.hints, key)
			delete(s.hintsBySubject[h.SubjectID], h.SourceID)
		}
	})
}

// DeleteEditionHint removes an edition hint if present.
func (tx *Tx) DeleteEditionHint(sourceID, subjectID string) {
	s := tx.store
	s.hintsMu.Lock()
	defer s.hintsMu.Unlock()

	key := sourceID + "@" + subjectID
	prev, existed := s.hints[key]
	if !existed {
		return
	}
	prevCopy := *prev
	delete(s.hints, key)
	delete(s.hintsBySubject[subjectID], sourceID)
	s.hintsByPriority.remove(key, prev.Priority)

	tx.record(func() {
		s.hintsMu.Lock()
		defer s.hintsMu.Unlock()
		s.hints[key] = &prevCopy
		if s.hintsBySubject[subjectID] == nil {
			s.hintsBySubject[subjectID] = make(map[string]*model.EditionHint)
		}
		s.hintsBySubject[subjectID][sourceID] = &prevCopy
		s.hintsByPriority.insert(key, prevCopy.Priority)
	})
}

// PopHighestPriorityHint selects the hint with the greatest priority string
// and deletes it within this Tx, returning a copy. Unlike the Store-level
// PopHighestPriorityHint (a peek used for read-only inspection), this pop is
// atomic with its own removal: since only one Tx may be open at a time, no
// other caller can observe or drain the same hint before this one commits.
func (tx *Tx) PopHighestPriorityHint() (*model.EditionHint, bool) {
	s := tx.store
	s.hintsMu.RLock()
	id, ok := s.hintsByPriority.max()
	if !ok {
		s.hintsMu.RUnlock()
		return nil, false
	}
	h := *s.hints[id]
	s.hintsMu.RUnlock()

	tx.DeleteEditionHint(h.SourceID, h.SubjectID)
	return &h, true
}

// DeleteEditionHintsForSubject removes every hint naming subjectID. Used by
// Download Policy's abortFetch (spec §4.6: "delete every hint whose
// subject == x").
func (tx *Tx) DeleteEditionHintsForSubject(subjectID string) {
	s := tx.store
	s.hintsMu.RLock()
	sources := make([]string, 0, len(s.hintsBySubject[subjectID]))
	for sourceID := range s.hintsBySubject[subjectID] {
		sources = append(sources, sourceID)
	}
	s.hintsMu.RUnlock()

	for _, sourceID := range sources {
		tx.DeleteEditionHint(sourceID, subjectID)
	}
}
