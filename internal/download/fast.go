package download

import (
	"context"
	"sync"

	"github.com/freenet/plugin-wot/internal/logging"
	"github.com/freenet/plugin-wot/internal/transport"
)

// FastDownloader maintains a continuous NetworkClient subscription for
// every identity in its partition (spec §4.5): directly-trusted identities,
// typically on the order of the owner's outgoing trust degree. On transport
// failure it retries indefinitely, grounded on the teacher's block
// generation loop in node.go ("for { time.Sleep(...); ... }") generalized
// from block generation to subscribeLoop, which waits the fixed retryBackoff
// between subscription attempts.
type FastDownloader struct {
	client transport.NetworkClient
	graph  graphOps

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewFastDownloader constructs a FastDownloader. g may be nil at
// construction time and supplied later via SetGraph, since the Trust Graph
// API's Engine itself depends on a DownloadNotifier backed by this
// downloader: callers break the cycle by constructing the downloaders
// first, then the graph Engine, then calling SetGraph.
func NewFastDownloader(client transport.NetworkClient, g graphOps) *FastDownloader {
	return &FastDownloader{
		client:  client,
		graph:   g,
		cancels: make(map[string]context.CancelFunc),
	}
}

// SetGraph supplies the graphOps callback target after construction,
// resolving the Engine/downloader construction cycle.
func (d *FastDownloader) SetGraph(g graphOps) {
	d.graph = g
}

// StartFetch opens a continuous subscription for id, if not already open.
func (d *FastDownloader) StartFetch(id string) {
	d.mu.Lock()
	if _, exists := d.cancels[id]; exists {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancels[id] = cancel
	d.mu.Unlock()

	go d.subscribeLoop(ctx, id)
}

// AbortFetch cancels id's subscription, if open. The transport contract
// guarantees no further callbacks after a successful cancel (spec §5).
func (d *FastDownloader) AbortFetch(id string) {
	d.mu.Lock()
	cancel, exists := d.cancels[id]
	if exists {
		delete(d.cancels, id)
	}
	d.mu.Unlock()
	if exists {
		cancel()
	}
}

// subscribeLoop owns one identity's subscription for the lifetime of ctx,
// re-subscribing on transport failure (spec §4.5: "on transport failure it
// retries indefinitely").
func (d *FastDownloader) subscribeLoop(ctx context.Context, id string) {
	for {
		if ctx.Err() != nil {
			return
		}
		handle, err := d.client.Subscribe(ctx, id)
		if err != nil {
			logging.Logger.Warn("fast downloader subscribe failed, retrying", "id", id, "error", err)
			if !sleepOrDone(ctx, retryBackoff) {
				return
			}
			continue
		}
		d.consume(ctx, id, handle)
		if ctx.Err() != nil {
			return
		}
	}
}

// consume hands every delivered edition to onFetchedAndParsedSuccessfully
// in a fresh transaction, per identity event (spec §4.5).
func (d *FastDownloader) consume(ctx context.Context, id string, handle transport.Handle) {
	for {
		select {
		case <-ctx.Done():
			d.client.Unsubscribe(handle)
			return
		case result, ok := <-handle.Updates():
			if !ok {
				return
			}
			if err := d.graph.OnFetchedAndParsedSuccessfully(id, result.Edition); err != nil {
				logging.Logger.Warn("fast downloader ignoring fetch result", "id", id, "edition", result.Edition, "error", err)
			}
		}
	}
}
