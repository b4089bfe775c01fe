package store

import (
	"testing"
	"time"

	"github.com/freenet/plugin-wot/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func TestPutIdentityThenGetIdentityReturnsClone(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutIdentity(&model.Identity{ID: "a", Nickname: "alice"})
	tx.Commit()

	got, ok := s.GetIdentity("a")
	if !ok {
		t.Fatalf("expected identity to be stored")
	}
	got.Nickname = "mutated"

	again, _ := s.GetIdentity("a")
	if again.Nickname != "alice" {
		t.Errorf("expected GetIdentity to return an independent copy, got mutated nickname %q", again.Nickname)
	}
}

func TestTxRollbackUndoesPutIdentity(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutIdentity(&model.Identity{ID: "a", Nickname: "alice"})
	tx.Rollback()

	if _, ok := s.GetIdentity("a"); ok {
		t.Errorf("expected rollback to undo the insert")
	}
}

func TestTxRollbackRestoresPreviousIdentity(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutIdentity(&model.Identity{ID: "a", Nickname: "alice"})
	tx.Commit()

	tx = s.Begin()
	tx.PutIdentity(&model.Identity{ID: "a", Nickname: "alice-renamed"})
	tx.Rollback()

	got, ok := s.GetIdentity("a")
	if !ok || got.Nickname != "alice" {
		t.Errorf("expected rollback to restore the prior record, got %+v (ok=%v)", got, ok)
	}
}

func TestPutTrustMaintainsBothSecondaryIndexes(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutTrust(&model.Trust{TrusterID: "a", TrusteeID: "b", Value: 50})
	tx.Commit()

	if _, ok := s.GetTrust("a", "b"); !ok {
		t.Fatalf("expected trust to be stored")
	}
	from := s.TrustsFrom("a")
	if len(from) != 1 || from[0].TrusteeID != "b" {
		t.Errorf("expected TrustsFrom(a) to contain b, got %+v", from)
	}
	to := s.TrustsTo("b")
	if len(to) != 1 || to[0].TrusterID != "a" {
		t.Errorf("expected TrustsTo(b) to contain a, got %+v", to)
	}
}

func TestDeleteTrustRemovesFromBothIndexes(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutTrust(&model.Trust{TrusterID: "a", TrusteeID: "b", Value: 50})
	tx.Commit()

	tx = s.Begin()
	tx.DeleteTrust("a", "b")
	tx.Commit()

	if _, ok := s.GetTrust("a", "b"); ok {
		t.Errorf("expected trust to be gone")
	}
	if len(s.TrustsFrom("a")) != 0 {
		t.Errorf("expected TrustsFrom(a) to be empty after delete")
	}
	if len(s.TrustsTo("b")) != 0 {
		t.Errorf("expected TrustsTo(b) to be empty after delete")
	}
}

func TestTxRollbackRestoresDeletedTrust(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutTrust(&model.Trust{TrusterID: "a", TrusteeID: "b", Value: 50})
	tx.Commit()

	tx = s.Begin()
	tx.DeleteTrust("a", "b")
	tx.Rollback()

	trust, ok := s.GetTrust("a", "b")
	if !ok || trust.Value != 50 {
		t.Errorf("expected rollback to restore the deleted trust, got %+v (ok=%v)", trust, ok)
	}
}

func TestPutScoreMaintainsBothSecondaryIndexes(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutScore(&model.Score{OwnerID: "a", SubjectID: "b", Value: 50, Rank: 1, Capacity: 40})
	tx.Commit()

	if len(s.ScoresForOwner("a")) != 1 {
		t.Errorf("expected ScoresForOwner(a) to have one entry")
	}
	if len(s.ScoresForSubject("b")) != 1 {
		t.Errorf("expected ScoresForSubject(b) to have one entry")
	}
}

func TestDeleteScoreRemovesFromBothIndexes(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutScore(&model.Score{OwnerID: "a", SubjectID: "b", Value: 50, Rank: 1, Capacity: 40})
	tx.Commit()

	tx = s.Begin()
	tx.DeleteScore("a", "b")
	tx.Commit()

	if _, ok := s.GetScore("a", "b"); ok {
		t.Errorf("expected score to be gone")
	}
	if len(s.ScoresForOwner("a")) != 0 || len(s.ScoresForSubject("b")) != 0 {
		t.Errorf("expected both secondary indexes cleared")
	}
}

func TestEditionHintQueuePopsHighestPriority(t *testing.T) {
	s := newTestStore(t)
	low := &model.EditionHint{SourceID: "src1", SubjectID: "subj", Edition: 1,
		Date: model.RoundToDay(time.Now()), SourceCapacity: 1, SourceScoreSign: 1,
		Priority: "0000000100100000000000000000000000000000000000000000000000000001"}
	high := &model.EditionHint{SourceID: "src2", SubjectID: "subj", Edition: 2,
		Date: model.RoundToDay(time.Now()), SourceCapacity: 100, SourceScoreSign: 1,
		Priority: "0000000200100000000000000000000000000000000000000000000000000002"}

	tx := s.Begin()
	tx.PutEditionHint(low)
	tx.PutEditionHint(high)
	tx.Commit()

	if s.HintQueueLen() != 2 {
		t.Fatalf("expected 2 queued hints, got %d", s.HintQueueLen())
	}

	got, ok := s.PopHighestPriorityHint()
	if !ok {
		t.Fatalf("expected a hint to be popped")
	}
	if got.SourceID != "src2" {
		t.Errorf("expected the higher-priority hint (src2) to be returned, got %q", got.SourceID)
	}
}

func TestDeleteEditionHintsForSubjectRemovesAll(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	tx.PutEditionHint(&model.EditionHint{SourceID: "src1", SubjectID: "subj", Edition: 1, Priority: "p1"})
	tx.PutEditionHint(&model.EditionHint{SourceID: "src2", SubjectID: "subj", Edition: 2, Priority: "p2"})
	tx.Commit()

	tx = s.Begin()
	tx.DeleteEditionHintsForSubject("subj")
	tx.Commit()

	if s.HintQueueLen() != 0 {
		t.Errorf("expected all hints for subj to be gone, got %d remaining", s.HintQueueLen())
	}
	if len(s.HintsForSubject("subj")) != 0 {
		t.Errorf("expected HintsForSubject(subj) to be empty")
	}
}

func TestObfuscateIDIsReversibleAndStable(t *testing.T) {
	s := newTestStore(t)
	obfuscated := s.ObfuscateID("some-identity-id")
	pad := s.ObfuscationPad()

	raw := make([]byte, len(obfuscated))
	for i := range raw {
		raw[i] = obfuscated[i] ^ pad[i%len(pad)]
	}
	if string(raw) != "some-identity-id" {
		t.Errorf("expected XOR-with-pad to recover the original id, got %q", raw)
	}

	again := s.ObfuscateID("some-identity-id")
	if again != obfuscated {
		t.Errorf("expected ObfuscateID to be stable for a fixed pad and input")
	}
}

func TestNewWithPadUsesSuppliedPad(t *testing.T) {
	pad := make([]byte, 64)
	for i := range pad {
		pad[i] = byte(i)
	}
	s := NewWithPad(pad)
	if got := s.ObfuscationPad(); string(got) != string(pad) {
		t.Errorf("expected NewWithPad to use the supplied pad verbatim")
	}
}
