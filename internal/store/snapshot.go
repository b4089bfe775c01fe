package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/freenet/plugin-wot/internal/model"
)

// snapshot is the JSON-serializable form of a Store, grounded on the
// teacher's persistence.go save/load pattern (one JSON document per
// registry, here combined into a single file for the whole graph).
type snapshot struct {
	Identities     []*model.Identity   `json:"identities"`
	Trusts         []*model.Trust      `json:"trusts"`
	Scores         []*model.Score      `json:"scores"`
	Hints          []*model.EditionHint `json:"hints"`
	ObfuscationPad []byte              `json:"obfuscationPad"`
}

const snapshotFileName = "graph.json"

// SnapshotPath returns the canonical snapshot file path under dataDir.
func SnapshotPath(dataDir string) string {
	return filepath.Join(dataDir, snapshotFileName)
}

// Save writes the full store contents to path as JSON, atomically via a
// temp-file-then-rename, matching the teacher's persistence.go save pattern.
func (s *Store) Save(path string) error {
	snap := s.toSnapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename temp snapshot file: %w", err)
	}
	return nil
}

// Load reads a store previously written by Save. If path does not exist, it
// returns a freshly-initialized empty Store, matching the teacher's
// first-run behavior in persistence.go.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New()
		}
		return nil, fmt.Errorf("store: read snapshot file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}

	s := NewWithPad(snap.ObfuscationPad)
	tx := s.Begin()
	for _, ident := range snap.Identities {
		tx.PutIdentity(ident)
	}
	for _, t := range snap.Trusts {
		tx.PutTrust(t)
	}
	for _, sc := range snap.Scores {
		tx.PutScore(sc)
	}
	for _, h := range snap.Hints {
		tx.PutEditionHint(h)
	}
	tx.Commit()
	return s, nil
}

func (s *Store) toSnapshot() *snapshot {
	s.identitiesMu.RLock()
	identities := make([]*model.Identity, 0, len(s.identities))
	for _, ident := range s.identities {
		identities = append(identities, ident.Clone())
	}
	s.identitiesMu.RUnlock()

	s.trustsMu.RLock()
	trusts := make([]*model.Trust, 0, len(s.trusts))
	for _, t := range s.trusts {
		cp := *t
		trusts = append(trusts, &cp)
	}
	s.trustsMu.RUnlock()

	s.scoresMu.RLock()
	scores := make([]*model.Score, 0, len(s.scores))
	for _, sc := range s.scores {
		cp := *sc
		scores = append(scores, &cp)
	}
	s.scoresMu.RUnlock()

	s.hintsMu.RLock()
	hints := make([]*model.EditionHint, 0, len(s.hints))
	for _, h := range s.hints {
		cp := *h
		hints = append(hints, &cp)
	}
	s.hintsMu.RUnlock()

	return &snapshot{
		Identities:     identities,
		Trusts:         trusts,
		Scores:         scores,
		Hints:          hints,
		ObfuscationPad: s.ObfuscationPad(),
	}
}
