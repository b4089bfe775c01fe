package download

import (
	"github.com/freenet/plugin-wot/internal/store"
)

// Coordinator implements graph.DownloadNotifier, routing startFetch/
// abortFetch calls to the Fast or Slow downloader depending on partition
// (spec §4.4: "Transitions across this boundary are signalled as abortFetch
// on one side followed by startFetch on the other").
type Coordinator struct {
	store *store.Store
	fast  *FastDownloader
	slow  *SlowDownloader
}

// NewCoordinator constructs a Coordinator wiring both downloaders.
func NewCoordinator(s *store.Store, fast *FastDownloader, slow *SlowDownloader) *Coordinator {
	return &Coordinator{store: s, fast: fast, slow: slow}
}

// StartFetch begins fetching id via the Fast Downloader if fastPartition,
// otherwise leaves it to the Slow Downloader's hint-driven queue (there is
// no explicit "start" action for the slow side beyond becoming eligible to
// receive hints, which storeNewEditionHint already gates on
// shouldFetchIdentity).
func (c *Coordinator) StartFetch(id string, fastPartition bool) {
	if fastPartition {
		AbortFetchCleanup(c.store, id)
		c.fast.StartFetch(id)
		return
	}
	c.fast.AbortFetch(id)
}

// AbortFetch stops fetching id on whichever side currently owns it and
// deletes any queued hints (spec §4.6 abortFetch contract).
func (c *Coordinator) AbortFetch(id string) {
	c.fast.AbortFetch(id)
	AbortFetchCleanup(c.store, id)
}
