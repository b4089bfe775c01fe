package model

import (
	"errors"
	"testing"
	"time"
)

const validID = "000000000000000000000000000000000000000000A"

func TestValidateIDRejectsWrongLength(t *testing.T) {
	if err := ValidateID("too-short"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestValidateIDAcceptsWellFormedID(t *testing.T) {
	if err := ValidateID(validID); err != nil {
		t.Errorf("expected a well-formed id to validate, got %v", err)
	}
}

func TestValidateNicknameRejectsAtSign(t *testing.T) {
	if err := ValidateNickname("bad@name"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for '@' in nickname, got %v", err)
	}
}

func TestValidateNicknameAllowsEmpty(t *testing.T) {
	if err := ValidateNickname(""); err != nil {
		t.Errorf("expected an empty nickname to be allowed, got %v", err)
	}
}

func TestNewIdentityStartsAtEditionZero(t *testing.T) {
	ident, err := NewIdentity(validID, "USK@a/b/0", "alice", time.Now())
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	if ident.CurrentEdition != 0 {
		t.Errorf("expected a freshly-seen identity to start at edition 0, got %d", ident.CurrentEdition)
	}
	if ident.IsOwn() {
		t.Errorf("expected a freshly-seen identity not to be own")
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	ident, err := NewIdentity(validID, "USK@a/b/0", "alice", time.Now())
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	ident.Contexts["software"] = struct{}{}

	clone := ident.Clone()
	clone.Contexts["extra"] = struct{}{}

	if _, ok := ident.Contexts["extra"]; ok {
		t.Errorf("expected mutating the clone's contexts not to affect the original")
	}
}

func TestValidateValueRejectsOutOfRange(t *testing.T) {
	if err := ValidateValue(101); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter above range, got %v", err)
	}
	if err := ValidateValue(-101); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter below range, got %v", err)
	}
	if err := ValidateValue(0); err != nil {
		t.Errorf("expected 0 to be a valid trust value, got %v", err)
	}
}

func TestTrustIsPositive(t *testing.T) {
	pos := &Trust{Value: 1}
	if !pos.IsPositive() {
		t.Errorf("expected value 1 to be positive")
	}
	zero := &Trust{Value: 0}
	if zero.IsPositive() {
		t.Errorf("expected value 0 not to be positive")
	}
}

func TestCapacityForRankTableAndOverflow(t *testing.T) {
	if CapacityForRank(0) != 100 {
		t.Errorf("expected rank 0 capacity 100, got %d", CapacityForRank(0))
	}
	if CapacityForRank(1) != 40 {
		t.Errorf("expected rank 1 capacity 40, got %d", CapacityForRank(1))
	}
	if CapacityForRank(MaxTabulatedRank+1) != 0 {
		t.Errorf("expected a rank beyond the table to yield capacity 0")
	}
	if CapacityForRank(-1) != 0 {
		t.Errorf("expected a negative rank to yield capacity 0")
	}
}

func TestScoreIsRankFinite(t *testing.T) {
	finite := &Score{Rank: 3}
	if !finite.IsRankFinite() {
		t.Errorf("expected rank 3 to be finite")
	}
	infinite := &Score{Rank: RankInfinity}
	if infinite.IsRankFinite() {
		t.Errorf("expected RankInfinity not to be finite")
	}
}

func TestClampScoreValueSaturatesToInt32Range(t *testing.T) {
	if got := ClampScoreValue(1 << 40); got != 1<<31-1 {
		t.Errorf("expected a large positive accumulator to clamp to MaxInt32, got %d", got)
	}
	if got := ClampScoreValue(-(1 << 40)); got != -(1 << 31) {
		t.Errorf("expected a large negative accumulator to clamp to MinInt32, got %d", got)
	}
	if got := ClampScoreValue(42); got != 42 {
		t.Errorf("expected an in-range value to pass through unchanged, got %d", got)
	}
}

func TestValidateEditionRejectsNegative(t *testing.T) {
	if err := ValidateEdition(-1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for a negative edition, got %v", err)
	}
	if err := ValidateEdition(0); err != nil {
		t.Errorf("expected edition 0 to be valid, got %v", err)
	}
}

func TestRoundToDayTruncatesToMidnightUTC(t *testing.T) {
	in := time.Date(2026, 3, 5, 13, 45, 0, 0, time.UTC)
	got := RoundToDay(in)
	want := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestComputePriorityIsFixedWidthAndOrdersByCapacity(t *testing.T) {
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	obfuscated := "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx" // 43 chars
	low := ComputePriority(date, 1, 1, obfuscated, 1)
	high := ComputePriority(date, 100, 1, obfuscated, 1)

	if len(low) != PriorityKeyLength {
		t.Errorf("expected a priority key of length %d, got %d", PriorityKeyLength, len(low))
	}
	if high <= low {
		t.Errorf("expected a higher capacity to produce a lexicographically greater priority key")
	}
}

func TestScoreSignMapsNegativeAndNonNegative(t *testing.T) {
	if ScoreSign(-1) != -1 {
		t.Errorf("expected a negative value to map to sign -1")
	}
	if ScoreSign(0) != 1 {
		t.Errorf("expected zero to map to sign +1")
	}
	if ScoreSign(5) != 1 {
		t.Errorf("expected a positive value to map to sign +1")
	}
}
