package store

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/freenet/plugin-wot/internal/config"
	"github.com/freenet/plugin-wot/internal/model"
)

// TryBegin attempts to acquire the store's write lock without blocking. It
// is the non-blocking counterpart to Begin, the primitive BeginWithRetry
// uses to detect contention instead of queueing behind it.
func (s *Store) TryBegin() (*Tx, bool) {
	if !s.writeMu.TryLock() {
		return nil, false
	}
	return &Tx{store: s}, true
}

// BeginWithRetry acquires the store's write lock, retrying with bounded
// exponential backoff when another transaction currently holds it instead
// of blocking indefinitely like Begin (spec §7: TransactionConflict "is
// retried internally with bounded backoff; surfaces as Unavailable only if
// retries exhausted"). maxTries bounds the number of acquisition attempts;
// callers normally pass config.DefaultTransactionConflictTries.
//
// Used by the Slow Downloader's worker pool (slow.go), where up to K
// workers can call Begin concurrently and genuinely contend for the single
// write lock, unlike the HTTP handlers which serialize through one request
// at a time.
func (s *Store) BeginWithRetry(maxTries int) (*Tx, error) {
	if maxTries < 1 {
		maxTries = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.25

	var tx *Tx
	attempt := 0
	op := func() error {
		attempt++
		t, ok := s.TryBegin()
		if ok {
			tx = t
			return nil
		}
		if attempt >= maxTries {
			return backoff.Permanent(model.ErrTransactionConflict)
		}
		return model.ErrTransactionConflict
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("%w: write lock still contended after %d attempts: %v", model.ErrUnavailable, attempt, err)
	}
	return tx, nil
}

// BeginWithDefaultRetry is BeginWithRetry bounded by
// config.DefaultTransactionConflictTries.
func (s *Store) BeginWithDefaultRetry() (*Tx, error) {
	return s.BeginWithRetry(config.DefaultTransactionConflictTries)
}
