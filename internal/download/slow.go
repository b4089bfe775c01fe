package download

import (
	"context"
	"sync"
	"time"

	"github.com/freenet/plugin-wot/internal/logging"
	"github.com/freenet/plugin-wot/internal/store"
	"github.com/freenet/plugin-wot/internal/transport"
)

// retryBackoff bounds how long a downloader waits before re-attempting a
// failed subscribe/poll, grounded on the teacher's use of a fixed
// time.Sleep interval in its background loops (node.go), here kept short
// since transport failures are expected to be transient.
const retryBackoff = 2 * time.Second

// pollInterval is how often the Slow Downloader's worker pool checks the
// hint queue for new work when it is empty.
const pollInterval = 200 * time.Millisecond

// SlowDownloader runs K concurrent workers draining the highest-priority
// EditionHint in the queue at a time (spec §4.6): on success it calls
// onFetchedAndParsedSuccessfully; on 404 or parse failure it calls
// onFetchedAndParsingFailed and moves on — the same hint is never retried,
// since another peer will supply a better one.
type SlowDownloader struct {
	store   *store.Store
	client  transport.NetworkClient
	graph   graphOps
	workers int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSlowDownloader constructs a SlowDownloader with the given worker
// concurrency K (spec §4.6 default: a small number, e.g. 4). g may be nil at
// construction time and supplied later via SetGraph; see FastDownloader's
// SetGraph doc comment for why.
func NewSlowDownloader(s *store.Store, client transport.NetworkClient, g graphOps, workers int) *SlowDownloader {
	if workers < 1 {
		workers = 1
	}
	return &SlowDownloader{store: s, client: client, graph: g, workers: workers}
}

// SetGraph supplies the graphOps callback target after construction.
func (d *SlowDownloader) SetGraph(g graphOps) {
	d.graph = g
}

// Start launches the worker pool. Stop must be called to release resources.
func (d *SlowDownloader) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx)
	}
}

// Stop signals all workers to exit and waits for them.
func (d *SlowDownloader) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *SlowDownloader) workerLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOne(ctx)
		}
	}
}

// drainOne pops the single highest-priority hint and services it, deleting
// the hint for that (source, subject) pair on any terminal outcome (spec
// §4.6: "After a terminal outcome the hint...is deleted"). The pop and the
// delete happen in the same Tx so two workers can never drain the same hint.
func (d *SlowDownloader) drainOne(ctx context.Context) {
	tx, err := d.store.BeginWithDefaultRetry()
	if err != nil {
		logging.Logger.Debug("slow downloader could not acquire store for hint pop", "error", err)
		return
	}
	hint, ok := tx.PopHighestPriorityHint()
	tx.Commit()
	if !ok {
		return
	}

	subject, ok := d.store.GetIdentity(hint.SubjectID)
	if !ok {
		return
	}

	data, err := d.client.Fetch(ctx, subject.RequestKey, hint.Edition)
	if err != nil {
		if gerr := d.graph.OnFetchedAndParsingFailed(hint.SubjectID, hint.Edition); gerr != nil {
			logging.Logger.Debug("slow downloader parse-failure callback rejected", "subject", hint.SubjectID, "error", gerr)
		}
		return
	}
	if len(data) == 0 {
		if gerr := d.graph.OnFetchedAndParsingFailed(hint.SubjectID, hint.Edition); gerr != nil {
			logging.Logger.Debug("slow downloader parse-failure callback rejected", "subject", hint.SubjectID, "error", gerr)
		}
		return
	}

	if err := d.graph.OnFetchedAndParsedSuccessfully(hint.SubjectID, hint.Edition); err != nil {
		logging.Logger.Debug("slow downloader success callback rejected", "subject", hint.SubjectID, "error", err)
	}
}

// sleepOrDone sleeps for d or returns false early if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
