// Package transport defines the NetworkClient boundary (spec §6): the
// anonymizing-network fetch/insert/subscribe operations the Fast and Slow
// downloaders drive, plus an HTTP-polling implementation and a mock used in
// tests. Grounded on the teacher's IPFSClient interface (ipfs.go) —
// generalized from a single Pin/Get content-addressed pair into the four
// operations spec §6 names, and from one no-op stand-in into a richer
// in-memory mock so download-policy tests can script arbitrary sequences.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/freenet/plugin-wot/internal/model"
)

// ErrNotConfigured marks a NetworkClient with no reachable transport.
var ErrNotConfigured = errors.New("transport: not configured")

// FetchResult is delivered on a successful fetch or subscription event.
type FetchResult struct {
	Edition int64
	Data    []byte
}

// Handle is an opaque subscription handle returned by Subscribe.
type Handle interface {
	// Updates yields one FetchResult per successfully fetched edition, and
	// is closed when the subscription is cancelled or the transport gives up.
	Updates() <-chan FetchResult
}

// NetworkClient is the transport boundary of spec §6.
type NetworkClient interface {
	// Subscribe opens a continuous update stream for identityID, used by
	// the Fast Downloader.
	Subscribe(ctx context.Context, identityID string) (Handle, error)
	// Unsubscribe cancels a subscription opened by Subscribe. The transport
	// contract guarantees no further callbacks after a successful cancel.
	Unsubscribe(h Handle)
	// Fetch performs a one-shot fetch of requestKey at edition, used by the
	// Slow Downloader.
	Fetch(ctx context.Context, requestKey string, edition int64) ([]byte, error)
	// Insert publishes data at insertKey/edition.
	Insert(ctx context.Context, insertKey string, edition int64, data []byte) error
}

// HTTPPollingClient implements NetworkClient by polling an HTTP gateway,
// grounded on the teacher's HTTPIPFSClient (ipfs.go): same gatewayURL +
// *http.Client shape, generalized from content-addressed Pin/Get to
// key+edition fetch/insert, and from a single request to a poll loop for
// Subscribe.
type HTTPPollingClient struct {
	gatewayURL   string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewHTTPPollingClient constructs a NetworkClient backed by an HTTP gateway.
func NewHTTPPollingClient(gatewayURL string, httpClient *http.Client, pollInterval time.Duration) *HTTPPollingClient {
	return &HTTPPollingClient{
		gatewayURL:   strings.TrimSuffix(gatewayURL, "/"),
		httpClient:   httpClient,
		pollInterval: pollInterval,
	}
}

type httpHandle struct {
	updates chan FetchResult
	cancel  context.CancelFunc
}

func (h *httpHandle) Updates() <-chan FetchResult { return h.updates }

// Subscribe starts a background poll loop against the gateway's
// latest-edition endpoint for identityID, which would emit a FetchResult
// whenever pollLatest reports a newer edition. pollLatest never reports
// one, so on this client the Updates channel receives nothing and is only
// closed when the subscription is cancelled.
func (c *HTTPPollingClient) Subscribe(ctx context.Context, identityID string) (Handle, error) {
	if c.httpClient == nil {
		return nil, ErrNotConfigured
	}
	subCtx, cancel := context.WithCancel(ctx)
	h := &httpHandle{updates: make(chan FetchResult, 1), cancel: cancel}

	go func() {
		defer close(h.updates)
		var lastEdition int64 = -1
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				data, edition, err := c.pollLatest(subCtx, identityID)
				if err != nil || edition <= lastEdition {
					continue
				}
				lastEdition = edition
				select {
				case h.updates <- FetchResult{Edition: edition, Data: data}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return h, nil
}

// pollLatest is a seam for the actual gateway protocol. It issues a GET to
// the gateway's /latest/ endpoint but does not decode the response: every
// outcome, including a 200, is returned as an ErrTransportFailure.
func (c *HTTPPollingClient) pollLatest(ctx context.Context, identityID string) ([]byte, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+"/latest/"+identityID, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrTransportFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status %d", model.ErrTransportFailure, resp.StatusCode)
	}
	return nil, 0, fmt.Errorf("%w: no edition data", model.ErrTransportFailure)
}

// Unsubscribe cancels the poll loop behind h.
func (c *HTTPPollingClient) Unsubscribe(h Handle) {
	if hh, ok := h.(*httpHandle); ok {
		hh.cancel()
	}
}

// Fetch performs a one-shot GET of requestKey at edition.
func (c *HTTPPollingClient) Fetch(ctx context.Context, requestKey string, edition int64) ([]byte, error) {
	if c.httpClient == nil {
		return nil, ErrNotConfigured
	}
	url := fmt.Sprintf("%s/fetch/%s/%d", c.gatewayURL, requestKey, edition)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransportFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: edition %d not found", model.ErrTransportFailure, edition)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", model.ErrTransportFailure, resp.StatusCode)
	}
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}

// Insert performs a one-shot PUT of data to insertKey at edition.
func (c *HTTPPollingClient) Insert(ctx context.Context, insertKey string, edition int64, data []byte) error {
	if c.httpClient == nil {
		return ErrNotConfigured
	}
	url := fmt.Sprintf("%s/insert/%s/%d", c.gatewayURL, insertKey, edition)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransportFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status %d", model.ErrTransportFailure, resp.StatusCode)
	}
	return nil
}

// MockClient is an in-memory NetworkClient for tests: callers script fetch
// responses and subscription events directly.
type MockClient struct {
	mu          sync.Mutex
	fetchResults map[string][]byte
	fetchErrs    map[string]error
	subscriptions map[string]*mockHandle
}

type mockHandle struct {
	updates chan FetchResult
}

func (h *mockHandle) Updates() <-chan FetchResult { return h.updates }

// NewMockClient constructs an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		fetchResults:  make(map[string][]byte),
		fetchErrs:     make(map[string]error),
		subscriptions: make(map[string]*mockHandle),
	}
}

func mockKey(requestKey string, edition int64) string {
	return fmt.Sprintf("%s@%d", requestKey, edition)
}

// SetFetchResult scripts the data Fetch returns for (requestKey, edition).
func (c *MockClient) SetFetchResult(requestKey string, edition int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchResults[mockKey(requestKey, edition)] = data
}

// SetFetchError scripts the error Fetch returns for (requestKey, edition).
func (c *MockClient) SetFetchError(requestKey string, edition int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchErrs[mockKey(requestKey, edition)] = err
}

// Fetch returns the scripted result for (requestKey, edition), or
// ErrTransportFailure if none was set.
func (c *MockClient) Fetch(ctx context.Context, requestKey string, edition int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := mockKey(requestKey, edition)
	if err, ok := c.fetchErrs[key]; ok {
		return nil, err
	}
	if data, ok := c.fetchResults[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%w: no scripted result for %s", model.ErrTransportFailure, key)
}

// Insert always succeeds, recording nothing beyond the call.
func (c *MockClient) Insert(ctx context.Context, insertKey string, edition int64, data []byte) error {
	return nil
}

// Subscribe returns a handle whose Updates channel the test can push to via
// Publish.
func (c *MockClient) Subscribe(ctx context.Context, identityID string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := &mockHandle{updates: make(chan FetchResult, 16)}
	c.subscriptions[identityID] = h
	return h, nil
}

// Unsubscribe closes the identity's subscription channel, if open.
func (c *MockClient) Unsubscribe(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sub := range c.subscriptions {
		if sub == h {
			close(sub.updates)
			delete(c.subscriptions, id)
			return
		}
	}
}

// Publish pushes a FetchResult to identityID's open subscription, if any.
func (c *MockClient) Publish(identityID string, result FetchResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscriptions[identityID]
	if !ok {
		return false
	}
	sub.updates <- result
	return true
}
