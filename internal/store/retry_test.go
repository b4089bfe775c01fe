package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freenet/plugin-wot/internal/model"
)

func TestTryBeginFailsWhileLocked(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	held := s.Begin()
	defer held.Rollback()

	if _, ok := s.TryBegin(); ok {
		t.Fatalf("TryBegin succeeded while write lock was held")
	}
}

func TestTryBeginSucceedsWhenFree(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tx, ok := s.TryBegin()
	if !ok {
		t.Fatalf("TryBegin failed on an unlocked store")
	}
	tx.Commit()
}

func TestBeginWithRetrySucceedsOnceLockReleases(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	held := s.Begin()
	go func() {
		time.Sleep(10 * time.Millisecond)
		held.Commit()
	}()

	tx, err := s.BeginWithRetry(50)
	if err != nil {
		t.Fatalf("BeginWithRetry: %v", err)
	}
	tx.Commit()
}

func TestBeginWithRetryExhaustsAsUnavailable(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	held := s.Begin()
	defer held.Rollback()

	_, err = s.BeginWithRetry(3)
	if err == nil {
		t.Fatalf("expected an error once the write lock never frees up")
	}
	if !errors.Is(err, model.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestBeginWithRetryConcurrentWorkersAllSucceed(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var failures int32
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.BeginWithDefaultRetry()
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				return
			}
			time.Sleep(time.Millisecond)
			tx.Commit()
		}()
	}
	wg.Wait()

	if failures == workers {
		t.Errorf("all %d concurrent workers failed to acquire the write lock", workers)
	}
}
