package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/freenet/plugin-wot/internal/graph"
	"github.com/freenet/plugin-wot/internal/scoreengine"
	"github.com/freenet/plugin-wot/internal/store"
)

// Server bundles the Trust Graph API, Score Engine and Graph Store handlers
// need, the HTTP-layer counterpart of the teacher's QuidnugNode receiver
// methods in handlers.go.
type Server struct {
	graph  *graph.Engine
	scores *scoreengine.Engine
	store  *store.Store
}

// NewRouter builds the full mux.Router for the daemon's HTTP control
// surface: health, identity and trust mutation endpoints over the Trust
// Graph API, read endpoints over the Graph Store, generalizing the
// teacher's StartServer route table (handlers.go) onto this daemon's
// operations, with the middleware stack applied outermost first as request
// ID, node auth, metrics, rate limit, body size.
func NewRouter(g *graph.Engine, scores *scoreengine.Engine, s *store.Store, rateLimitPerMinute int, maxBodyBytes int64, nodeAuthSecret string) http.Handler {
	srv := &Server{graph: g, scores: scores, store: s}
	router := mux.NewRouter()

	router.HandleFunc("/api/health", srv.HealthCheckHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/identities", srv.ListIdentitiesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/identities/{id}", srv.GetIdentityHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/identities/own", srv.CreateOwnIdentityHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/identities/uri", srv.AddIdentityFromURIHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/identities/{id}", srv.DeleteIdentityHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/identities/own/{id}", srv.DeleteOwnIdentityHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/identities/own/{id}/restore", srv.RestoreOwnIdentityHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/trust", srv.SetTrustHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/trust/{truster}/{trustee}", srv.RemoveTrustHandler).Methods(http.MethodDelete)

	router.HandleFunc("/api/scores/{ownerId}", srv.ListScoresForOwnerHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/scores/{ownerId}/{subjectId}", srv.GetScoreHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/hints", srv.SubmitEditionHintHandler).Methods(http.MethodPost)

	var handler http.Handler = router
	handler = BodySizeLimitMiddleware(maxBodyBytes)(handler)
	handler = RateLimitMiddleware(NewIPRateLimiter(rateLimitPerMinute))(handler)
	handler = MetricsMiddleware(handler)
	handler = NodeAuthMiddleware(nodeAuthSecret)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}
