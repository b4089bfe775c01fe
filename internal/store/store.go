// Package store implements the Graph Store (C1): an indexed, transactional
// in-memory object store for Identity, Trust, Score and EditionHint records,
// with single-writer/multi-reader semantics (spec §4.1, §5).
//
// Grounded on the teacher's QuidnugNode registries (node.go): one guarded map
// per table, generalized here into a single Store with one outer write lock
// (the "per-transaction write lock" of spec §5) plus one RWMutex per table so
// readers needing only a single object's consistent snapshot can avoid the
// outer lock, matching §5.1's "readers that only need a consistent snapshot
// of a single object may take only the outermost monitor" by exposing
// lock-free read helpers that take just the relevant table's RWMutex.
package store

import (
	"crypto/rand"
	"sync"

	"github.com/freenet/plugin-wot/internal/model"
)

// Store holds all tables of the trust graph.
type Store struct {
	// writeMu is the single-writer transaction lock of spec §5.1/§5.2: only
	// one transaction may be open at a time.
	writeMu sync.Mutex

	identitiesMu sync.RWMutex
	identities   map[string]*model.Identity

	trustsMu         sync.RWMutex
	trusts           map[string]*model.Trust            // trusterID@trusteeID -> Trust
	trustsByTruster  map[string]map[string]*model.Trust  // trusterID -> trusteeID -> Trust
	trustsByTrustee  map[string]map[string]*model.Trust  // trusteeID -> trusterID -> Trust

	scoresMu        sync.RWMutex
	scores          map[string]*model.Score           // ownerID@subjectID -> Score
	scoresByOwner   map[string]map[string]*model.Score // ownerID -> subjectID -> Score
	scoresBySubject map[string]map[string]*model.Score // subjectID -> ownerID -> Score

	hintsMu          sync.RWMutex
	hints            map[string]*model.EditionHint            // sourceID@subjectID -> EditionHint
	hintsBySubject   map[string]map[string]*model.EditionHint // subjectID -> sourceID -> EditionHint
	hintsByPriority  *priorityIndex

	// obfuscationPad is the locally-generated random pad XORed into subject
	// IDs before they enter an EditionHint priority string (spec §4.6).
	obfuscationPad []byte
}

// New constructs an empty Store with a freshly generated obfuscation pad.
func New() (*Store, error) {
	pad := make([]byte, 64)
	if _, err := rand.Read(pad); err != nil {
		return nil, err
	}
	return NewWithPad(pad), nil
}

// NewWithPad constructs an empty Store using a caller-supplied obfuscation
// pad, so the pad can be restored from the persisted snapshot file across
// restarts (spec §6: "persisted...must survive restarts").
func NewWithPad(pad []byte) *Store {
	return &Store{
		identities:      make(map[string]*model.Identity),
		trusts:          make(map[string]*model.Trust),
		trustsByTruster: make(map[string]map[string]*model.Trust),
		trustsByTrustee: make(map[string]map[string]*model.Trust),
		scores:          make(map[string]*model.Score),
		scoresByOwner:   make(map[string]map[string]*model.Score),
		scoresBySubject: make(map[string]map[string]*model.Score),
		hints:           make(map[string]*model.EditionHint),
		hintsBySubject:  make(map[string]map[string]*model.EditionHint),
		hintsByPriority: newPriorityIndex(),
		obfuscationPad:  pad,
	}
}

// ObfuscationPad returns a copy of the store's obfuscation pad.
func (s *Store) ObfuscationPad() []byte {
	out := make([]byte, len(s.obfuscationPad))
	copy(out, s.obfuscationPad)
	return out
}

// ObfuscateID XORs id against the store's local pad, producing the
// "obfuscated(subjectId)" key component of spec §4.6.
func (s *Store) ObfuscateID(id string) string {
	in := []byte(id)
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ s.obfuscationPad[i%len(s.obfuscationPad)]
	}
	return string(out)
}

// GetIdentity returns a copy of the identity with the given id, if present.
func (s *Store) GetIdentity(id string) (*model.Identity, bool) {
	s.identitiesMu.RLock()
	defer s.identitiesMu.RUnlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, false
	}
	return ident.Clone(), true
}

// ListOwnIdentities returns copies of all identities currently tagged Own.
func (s *Store) ListOwnIdentities() []*model.Identity {
	s.identitiesMu.RLock()
	defer s.identitiesMu.RUnlock()
	var out []*model.Identity
	for _, ident := range s.identities {
		if ident.IsOwn() {
			out = append(out, ident.Clone())
		}
	}
	return out
}

// ListIdentities returns copies of all identities.
func (s *Store) ListIdentities() []*model.Identity {
	s.identitiesMu.RLock()
	defer s.identitiesMu.RUnlock()
	out := make([]*model.Identity, 0, len(s.identities))
	for _, ident := range s.identities {
		out = append(out, ident.Clone())
	}
	return out
}

// GetTrust returns a copy of the trust from truster to trustee, if present.
func (s *Store) GetTrust(trusterID, trusteeID string) (*model.Trust, bool) {
	s.trustsMu.RLock()
	defer s.trustsMu.RUnlock()
	t, ok := s.trusts[trusterID+"@"+trusteeID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// TrustsFrom returns copies of all trusts given by truster.
func (s *Store) TrustsFrom(trusterID string) []*model.Trust {
	s.trustsMu.RLock()
	defer s.trustsMu.RUnlock()
	var out []*model.Trust
	for _, t := range s.trustsByTruster[trusterID] {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// TrustsTo returns copies of all trusts received by trustee.
func (s *Store) TrustsTo(trusteeID string) []*model.Trust {
	s.trustsMu.RLock()
	defer s.trustsMu.RUnlock()
	var out []*model.Trust
	for _, t := range s.trustsByTrustee[trusteeID] {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// GetScore returns a copy of the score for (owner, subject), if present.
func (s *Store) GetScore(ownerID, subjectID string) (*model.Score, bool) {
	s.scoresMu.RLock()
	defer s.scoresMu.RUnlock()
	sc, ok := s.scores[ownerID+"@"+subjectID]
	if !ok {
		return nil, false
	}
	cp := *sc
	return &cp, true
}

// ScoresForSubject returns copies of all scores naming subjectID.
func (s *Store) ScoresForSubject(subjectID string) []*model.Score {
	s.scoresMu.RLock()
	defer s.scoresMu.RUnlock()
	var out []*model.Score
	for _, sc := range s.scoresBySubject[subjectID] {
		cp := *sc
		out = append(out, &cp)
	}
	return out
}

// ScoresForOwner returns copies of all scores owned by ownerID.
func (s *Store) ScoresForOwner(ownerID string) []*model.Score {
	s.scoresMu.RLock()
	defer s.scoresMu.RUnlock()
	var out []*model.Score
	for _, sc := range s.scoresByOwner[ownerID] {
		cp := *sc
		out = append(out, &cp)
	}
	return out
}

// GetEditionHint returns a copy of the hint for (source, subject), if present.
func (s *Store) GetEditionHint(sourceID, subjectID string) (*model.EditionHint, bool) {
	s.hintsMu.RLock()
	defer s.hintsMu.RUnlock()
	h, ok := s.hints[sourceID+"@"+subjectID]
	if !ok {
		return nil, false
	}
	cp := *h
	return &cp, true
}

// HintsForSubject returns copies of all hints naming subjectID.
func (s *Store) HintsForSubject(subjectID string) []*model.EditionHint {
	s.hintsMu.RLock()
	defer s.hintsMu.RUnlock()
	var out []*model.EditionHint
	for _, h := range s.hintsBySubject[subjectID] {
		cp := *h
		out = append(out, &cp)
	}
	return out
}

// PopHighestPriorityHint returns a copy of the hint with the greatest
// priority string currently queued, without removing it. Returns false if
// the queue is empty. This is a read-only peek; the Slow Downloader uses
// Tx.PopHighestPriorityHint instead, which removes the hint before its
// fetch starts.
func (s *Store) PopHighestPriorityHint() (*model.EditionHint, bool) {
	s.hintsMu.RLock()
	defer s.hintsMu.RUnlock()
	id, ok := s.hintsByPriority.max()
	if !ok {
		return nil, false
	}
	h := s.hints[id]
	cp := *h
	return &cp, true
}

// HintQueueLen returns the number of queued edition hints.
func (s *Store) HintQueueLen() int {
	s.hintsMu.RLock()
	defer s.hintsMu.RUnlock()
	return len(s.hints)
}
