package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/freenet/plugin-wot/internal/graph"
	"github.com/freenet/plugin-wot/internal/scoreengine"
	"github.com/freenet/plugin-wot/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) StartFetch(id string, fastPartition bool) {}
func (noopNotifier) AbortFetch(id string)                     {}

const testOwnerID = "000000000000000000000000000000000000000000A"
const testSubjectID = "000000000000000000000000000000000000000000B"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	s, err := store.New()
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	scores := scoreengine.New(s, 1)
	g := graph.New(s, scores, noopNotifier{})
	return NewRouter(g, scores, s, 1000, 1<<20, "")
}

func TestHealthCheckHandler(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCreateOwnIdentityAndGet(t *testing.T) {
	router := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"id":                 testOwnerID,
		"requestKey":         "USK@abc/WebOfTrust/0",
		"insertKey":          "SSK@def/WebOfTrust/0",
		"nickname":           "alice",
		"publishesTrustList": true,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/identities/own", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/identities/"+testOwnerID, nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getW.Code, getW.Body.String())
	}
}

func TestCreateOwnIdentityRejectsBadNickname(t *testing.T) {
	router := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"id":         testOwnerID,
		"requestKey": "USK@abc/WebOfTrust/0",
		"insertKey":  "SSK@def/WebOfTrust/0",
		"nickname":   "bad@nickname",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/identities/own", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSetTrustAndGetScore(t *testing.T) {
	router := newTestServer(t)

	createOwner := func(id, nickname string) {
		body, _ := json.Marshal(map[string]interface{}{
			"id":         id,
			"requestKey": "USK@abc/WebOfTrust/0",
			"insertKey":  "SSK@def/WebOfTrust/0",
			"nickname":   nickname,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/identities/own", bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("failed to create %s: %d %s", id, w.Code, w.Body.String())
		}
	}
	createOwner(testOwnerID, "alice")
	createOwner(testSubjectID, "bob")

	trustBody, _ := json.Marshal(map[string]interface{}{
		"trusterId": testOwnerID,
		"trusteeId": testSubjectID,
		"value":     100,
		"comment":   "trusted",
	})
	trustReq := httptest.NewRequest(http.MethodPost, "/api/trust", bytes.NewReader(trustBody))
	trustW := httptest.NewRecorder()
	router.ServeHTTP(trustW, trustReq)
	if trustW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", trustW.Code, trustW.Body.String())
	}

	scoreReq := httptest.NewRequest(http.MethodGet, "/api/scores/"+testOwnerID+"/"+testSubjectID, nil)
	scoreW := httptest.NewRecorder()
	router.ServeHTTP(scoreW, scoreReq)
	if scoreW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", scoreW.Code, scoreW.Body.String())
	}

	var score map[string]interface{}
	if err := json.Unmarshal(scoreW.Body.Bytes(), &score); err != nil {
		t.Fatalf("unmarshal score: %v", err)
	}
	if score["Rank"] != float64(1) {
		t.Errorf("expected rank 1 for direct trust, got %v", score["Rank"])
	}
}

func TestSetTrustRejectsOutOfRangeValue(t *testing.T) {
	router := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"trusterId": testOwnerID,
		"trusteeId": testSubjectID,
		"value":     1000,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/trust", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestNodeAuthMiddlewareRejectsMissingSignature(t *testing.T) {
	s, _ := store.New()
	scores := scoreengine.New(s, 1)
	g := graph.New(s, scores, noopNotifier{})
	router := NewRouter(g, scores, s, 1000, 1<<20, "shared-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without signature headers, got %d", w.Code)
	}
}

func TestNodeAuthMiddlewareAcceptsValidSignature(t *testing.T) {
	s, _ := store.New()
	scores := scoreengine.New(s, 1)
	g := graph.New(s, scores, noopNotifier{})
	router := NewRouter(g, scores, s, 1000, 1<<20, "shared-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	ts := time.Now().Unix()
	sig := SignRequest(http.MethodGet, "/api/health", nil, "shared-secret", ts)
	req.Header.Set(NodeTimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(NodeSignatureHeader, sig)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with valid signature, got %d: %s", w.Code, w.Body.String())
	}
}
