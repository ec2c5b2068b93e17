// Package gateway is the out-of-scope HTTP gateway: a thin read/control
// surface over the graph store and the scan-trigger queue, spec'd only at
// its interface (spec.md lists it among external interfaces but places
// its implementation out of scope). Grounded on
// MuiGoku123432-goParser/internal/api/monitor_api.go's gorilla/mux +
// gorilla/websocket server shape, with the query proxy and scan-trigger
// endpoints ported from original_source/services/api_gateway's
// query_proxy_api.py and scan_api.py.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codegraph/internal/graph"
	"codegraph/internal/identity"
	"codegraph/internal/messages"
	"codegraph/internal/queue"
)

// forbiddenCypherSubstrings blocks write/admin statements from reaching
// the proxy endpoint, matching query_proxy_api.py's execute_cypher_query
// deny-list exactly.
var forbiddenCypherSubstrings = []string{
	"delete", "detach", "remove", "drop", "call dbms", "apoc.", "load csv",
}

// Server serves the gateway's HTTP surface.
type Server struct {
	g      *graph.Client
	q      queue.Queue
	log    *zap.Logger
	apiKey string
	router *mux.Router
	upgrader websocket.Upgrader
	events   chan map[string]any
}

// New constructs a gateway Server. apiKey gates the Cypher proxy and the
// scan-trigger endpoint; read-only endpoints are unauthenticated.
func New(g *graph.Client, q queue.Queue, log *zap.Logger, apiKey string) *Server {
	s := &Server{
		g:      g,
		q:      q,
		log:    log,
		apiKey: apiKey,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events: make(chan map[string]any, 100),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/node/{id}", s.handleNode).Methods("GET")
	s.router.HandleFunc("/api/v1/identity/parse", s.handleIdentityParse).Methods("GET")
	s.router.HandleFunc("/api/v1/scan", s.requireAPIKey(s.handleScanTrigger)).Methods("POST")
	s.router.HandleFunc("/api/v1/query/cypher", s.requireAPIKey(s.handleCypherProxy)).Methods("POST")
	s.router.HandleFunc("/ws/events", s.handleWebSocket)
}

// ServeHTTP lets Server be used directly as an http.Handler, e.g. with
// http.ListenAndServe(addr, server).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.apiKey {
			http.Error(w, "invalid or missing API key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleNode returns the raw node properties and labels for a canonical_id
// or gid, a read-only debug view onto C1's identity scheme (spec.md's
// component table lists the gateway as exposing identity "read-only for
// debugging").
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rows, err := s.g.Query(r.Context(), "MATCH (n) WHERE n.canonical_id = $id OR n.gid = $id RETURN n, labels(n) AS labels", map[string]any{"id": id})
	if err != nil {
		s.log.Error("node query failed", zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rows[0])
}

// handleIdentityParse recovers the language/file/entity components of a
// canonical_id or gid without touching the graph store, exposing
// internal/identity.ParseId for debugging.
func (s *Server) handleIdentityParse(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	parsed, err := identity.ParseId(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

// handleScanTrigger publishes a full-scan ScanTrigger to the scan-trigger
// queue, mirroring scan_api.py's trigger_full_scan.
func (s *Server) handleScanTrigger(w http.ResponseWriter, r *http.Request) {
	var trigger messages.ScanTrigger
	if err := json.NewDecoder(r.Body).Decode(&trigger); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if trigger.Action == "" || trigger.RootPath == "" {
		http.Error(w, "'action' and 'root_path' are required fields", http.StatusBadRequest)
		return
	}

	body, err := json.Marshal(trigger)
	if err != nil {
		http.Error(w, "failed to encode trigger", http.StatusInternalServerError)
		return
	}
	if err := s.q.Publish(r.Context(), queue.ScanTriggerQueue, body); err != nil {
		s.log.Error("failed to publish scan trigger", zap.Error(err))
		http.Error(w, "failed to trigger scan", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "scan_triggered"})
}

type cypherRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

// handleCypherProxy runs an ad-hoc read query against the graph store
// after rejecting anything matching forbiddenCypherSubstrings, per
// spec.md §7's "Destructive Cypher" requirement.
func (s *Server) handleCypherProxy(w http.ResponseWriter, r *http.Request) {
	var req cypherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	lowered := strings.ToLower(req.Query)
	for _, forbidden := range forbiddenCypherSubstrings {
		if strings.Contains(lowered, forbidden) {
			http.Error(w, "destructive queries are not allowed via proxy", http.StatusBadRequest)
			return
		}
	}

	rows, err := s.g.Query(r.Context(), req.Query, req.Params)
	if err != nil {
		s.log.Error("cypher proxy query failed", zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": rows})
}

// handleWebSocket sends a welcome message, then streams events passed to
// PublishEvent. None of the gateway's own handlers call PublishEvent.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	welcome := map[string]any{"type": "connected", "timestamp": time.Now().UTC()}
	if err := conn.WriteJSON(welcome); err != nil {
		return
	}

	for event := range s.events {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// PublishEvent forwards an event to connected WebSocket clients, dropping
// it if the channel is full rather than blocking the caller.
func (s *Server) PublishEvent(ctx context.Context, event map[string]any) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	default:
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
