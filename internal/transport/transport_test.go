package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/freenet/plugin-wot/internal/model"
)

func TestMockClientFetchReturnsScriptedResult(t *testing.T) {
	c := NewMockClient()
	c.SetFetchResult("USK@a/b/0", 3, []byte("payload"))

	data, err := c.Fetch(context.Background(), "USK@a/b/0", 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("expected scripted payload, got %q", data)
	}
}

func TestMockClientFetchWithoutScriptFails(t *testing.T) {
	c := NewMockClient()
	_, err := c.Fetch(context.Background(), "USK@a/b/0", 3)
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Errorf("expected ErrTransportFailure for an unscripted fetch, got %v", err)
	}
}

func TestMockClientFetchScriptedError(t *testing.T) {
	c := NewMockClient()
	wantErr := errors.New("gateway unreachable")
	c.SetFetchError("USK@a/b/0", 3, wantErr)

	_, err := c.Fetch(context.Background(), "USK@a/b/0", 3)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected the scripted error, got %v", err)
	}
}

func TestMockClientSubscribePublishUnsubscribe(t *testing.T) {
	c := NewMockClient()
	handle, err := c.Subscribe(context.Background(), "identity-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if !c.Publish("identity-1", FetchResult{Edition: 7}) {
		t.Fatalf("expected publish to a known subscription to succeed")
	}
	result := <-handle.Updates()
	if result.Edition != 7 {
		t.Errorf("expected edition 7, got %d", result.Edition)
	}

	c.Unsubscribe(handle)
	if c.Publish("identity-1", FetchResult{Edition: 8}) {
		t.Errorf("expected publish after unsubscribe to report no subscription")
	}
}

func TestMockClientPublishToUnknownIdentityIsFalse(t *testing.T) {
	c := NewMockClient()
	if c.Publish("never-subscribed", FetchResult{Edition: 1}) {
		t.Errorf("expected publish with no open subscription to return false")
	}
}

func TestMockClientInsertAlwaysSucceeds(t *testing.T) {
	c := NewMockClient()
	if err := c.Insert(context.Background(), "SSK@a/b/0", 1, []byte("data")); err != nil {
		t.Errorf("expected Insert to succeed, got %v", err)
	}
}
