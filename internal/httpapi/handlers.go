package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/freenet/plugin-wot/internal/download"
	"github.com/freenet/plugin-wot/internal/metrics"
	"github.com/freenet/plugin-wot/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownIdentity),
		errors.Is(err, model.ErrUnknownTrust),
		errors.Is(err, model.ErrUnknownEditionHint):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateObject):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HealthCheckHandler reports liveness, generalizing the teacher's
// HealthCheckHandler.
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// ListIdentitiesHandler returns every known identity.
func (s *Server) ListIdentitiesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identities": s.store.ListIdentities(),
	})
}

// GetIdentityHandler returns a single identity by id.
func (s *Server) GetIdentityHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	identity, ok := s.store.GetIdentity(id)
	if !ok {
		writeError(w, model.ErrUnknownIdentity)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

type createOwnIdentityRequest struct {
	ID                 string `json:"id"`
	RequestKey         string `json:"requestKey"`
	InsertKey          string `json:"insertKey"`
	Nickname           string `json:"nickname"`
	PublishesTrustList bool   `json:"publishesTrustList"`
}

// CreateOwnIdentityHandler creates a new OwnIdentity, generalizing the
// teacher's CreateIdentityTransactionHandler decode-then-mutate pattern.
func (s *Server) CreateOwnIdentityHandler(w http.ResponseWriter, r *http.Request) {
	var req createOwnIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidParameter)
		return
	}

	identity, err := s.graph.CreateOwnIdentity(req.ID, req.RequestKey, req.InsertKey, req.Nickname, req.PublishesTrustList)
	if err != nil {
		metrics.RecordIdentityEvent("create_own_rejected")
		writeError(w, err)
		return
	}
	metrics.RecordIdentityEvent("create_own")
	writeJSON(w, http.StatusCreated, identity)
}

type addIdentityFromURIRequest struct {
	ID            string `json:"id"`
	RequestKey    string `json:"requestKey"`
	Nickname      string `json:"nickname"`
	AdviseEdition int64  `json:"adviseEdition"`
}

// AddIdentityFromURIHandler registers a bare remote identity by its URI.
func (s *Server) AddIdentityFromURIHandler(w http.ResponseWriter, r *http.Request) {
	var req addIdentityFromURIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidParameter)
		return
	}

	identity, err := s.graph.AddIdentityFromURI(req.ID, req.RequestKey, req.Nickname, req.AdviseEdition)
	if err != nil {
		metrics.RecordIdentityEvent("add_from_uri_rejected")
		writeError(w, err)
		return
	}
	metrics.RecordIdentityEvent("add_from_uri")
	writeJSON(w, http.StatusCreated, identity)
}

// DeleteIdentityHandler hard-deletes an identity through graph.DeleteIdentity;
// own identities are not refused.
func (s *Server) DeleteIdentityHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.graph.DeleteIdentity(id); err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordIdentityEvent("delete")
	w.WriteHeader(http.StatusNoContent)
}

// DeleteOwnIdentityHandler replaces an OwnIdentity with a plain Identity.
func (s *Server) DeleteOwnIdentityHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.graph.DeleteOwnIdentity(id); err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordIdentityEvent("delete_own")
	w.WriteHeader(http.StatusNoContent)
}

type restoreOwnIdentityRequest struct {
	InsertKey string `json:"insertKey"`
}

// RestoreOwnIdentityHandler re-establishes local custody of a previously
// deleted OwnIdentity.
func (s *Server) RestoreOwnIdentityHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req restoreOwnIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidParameter)
		return
	}
	if err := s.graph.RestoreOwnIdentity(id, req.InsertKey); err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordIdentityEvent("restore_own")
	w.WriteHeader(http.StatusNoContent)
}

type setTrustRequest struct {
	TrusterID string `json:"trusterId"`
	TrusteeID string `json:"trusteeId"`
	Value     int    `json:"value"`
	Comment   string `json:"comment"`
}

// SetTrustHandler creates or updates one trust edge, generalizing the
// teacher's CreateTrustTransactionHandler.
func (s *Server) SetTrustHandler(w http.ResponseWriter, r *http.Request) {
	var req setTrustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidParameter)
		return
	}

	if err := s.graph.SetTrust(req.TrusterID, req.TrusteeID, req.Value, req.Comment); err != nil {
		metrics.RecordTrustMutation("set", false)
		writeError(w, err)
		return
	}
	metrics.RecordTrustMutation("set", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RemoveTrustHandler deletes one trust edge.
func (s *Server) RemoveTrustHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.graph.RemoveTrust(vars["truster"], vars["trustee"]); err != nil {
		metrics.RecordTrustMutation("remove", false)
		writeError(w, err)
		return
	}
	metrics.RecordTrustMutation("remove", true)
	w.WriteHeader(http.StatusNoContent)
}

// ListScoresForOwnerHandler returns every Score an owner has computed.
func (s *Server) ListScoresForOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores": s.store.ScoresForOwner(ownerID),
	})
}

// GetScoreHandler returns a single (owner, subject) Score.
func (s *Server) GetScoreHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	score, ok := s.store.GetScore(vars["ownerId"], vars["subjectId"])
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"reachable": false})
		return
	}
	writeJSON(w, http.StatusOK, score)
}

type submitEditionHintRequest struct {
	SourceID  string `json:"sourceId"`
	SubjectID string `json:"subjectId"`
	Edition   int64  `json:"edition"`
}

// SubmitEditionHintHandler lets a peer advertise a new edition for a
// subject it has just fetched, feeding the Slow Downloader's hint queue
// (spec §4.6). woke is reported so callers (and tests) can tell whether
// the submission actually advanced the queue.
func (s *Server) SubmitEditionHintHandler(w http.ResponseWriter, r *http.Request) {
	var req submitEditionHintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidParameter)
		return
	}

	woke, err := download.StoreNewEditionHint(s.store, s.scores, req.SourceID, req.SubjectID, req.Edition)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": woke})
}
