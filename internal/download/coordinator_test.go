package download

import (
	"testing"
	"time"

	"github.com/freenet/plugin-wot/internal/transport"
)

func TestCoordinatorStartFetchDeliversViaFastDownloader(t *testing.T) {
	s, _, g := newFetchableFixture(t)
	client := transport.NewMockClient()
	fast := NewFastDownloader(client, g)
	slow := NewSlowDownloader(s, client, g, 1)
	c := NewCoordinator(s, fast, slow)

	c.StartFetch(subjectID, true)
	defer c.AbortFetch(subjectID)

	deadline := time.Now().Add(2 * time.Second)
	for !client.Publish(subjectID, transport.FetchResult{Edition: 2}) {
		if time.Now().After(deadline) {
			t.Fatalf("subscription for %q never became ready", subjectID)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline = time.Now().Add(2 * time.Second)
	for {
		ident, ok := s.GetIdentity(subjectID)
		if ok && ident.CurrentEdition == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected currentEdition to advance to 2, got %+v", ident)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCoordinatorStartFetchOnNonFastPartitionAbortsFastSide(t *testing.T) {
	s, _, g := newFetchableFixture(t)
	client := transport.NewMockClient()
	fast := NewFastDownloader(client, g)
	slow := NewSlowDownloader(s, client, g, 1)
	c := NewCoordinator(s, fast, slow)

	c.StartFetch(subjectID, true)
	c.StartFetch(subjectID, false)

	if _, exists := fast.cancels[subjectID]; exists {
		t.Errorf("expected the fast-side subscription to be torn down on transition to slow partition")
	}
}

func TestCoordinatorAbortFetchDeletesQueuedHints(t *testing.T) {
	s, scores, g := newFetchableFixture(t)
	client := transport.NewMockClient()
	fast := NewFastDownloader(client, g)
	slow := NewSlowDownloader(s, client, g, 1)
	c := NewCoordinator(s, fast, slow)

	if _, err := StoreNewEditionHint(s, scores, sourceID, subjectID, 3); err != nil {
		t.Fatalf("store hint: %v", err)
	}

	c.AbortFetch(subjectID)

	if _, ok := s.GetEditionHint(sourceID, subjectID); ok {
		t.Errorf("expected AbortFetch to delete all queued hints for the subject")
	}
}
