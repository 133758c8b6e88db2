// Package server exposes the workflow over HTTP for the demo UI: emails
// go in over POST, run progress streams out over a websocket.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/optimizer"
	"github.com/mailmind/mailmind/workflow"
)

// Server handles the demo endpoints and fans run snapshots out to
// websocket subscribers.
type Server struct {
	controller  *workflow.Controller
	checkpoints *workflow.CheckpointStore
	trainer     *optimizer.Optimizer

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New creates a server. Attach the controller before serving; the
// controller in turn needs Broadcast as its observer, so construction is
// two-phase.
func New(checkpoints *workflow.CheckpointStore, trainer *optimizer.Optimizer) *Server {
	return &Server{
		checkpoints: checkpoints,
		trainer:     trainer,
		upgrader: websocket.Upgrader{
			// Demo server, local use: any origin may subscribe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Attach sets the workflow controller.
func (s *Server) Attach(c *workflow.Controller) { s.controller = c }

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /emails", s.handleEmail)
	mux.HandleFunc("POST /runs/{id}/resume", s.handleResume)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("POST /feedback", s.handleFeedback)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// broadcastWriteTimeout bounds how long one subscriber may stall a
// snapshot write. Broadcast runs on the workflow's observer path, so a
// slow reader gets dropped rather than holding up the run.
const broadcastWriteTimeout = time.Second

// Broadcast sends a run snapshot to every subscriber. Wire it as the
// controller's observer.
func (s *Server) Broadcast(state workflow.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		log.Printf("[SERVER] encode snapshot: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[SERVER] dropping subscriber: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

type emailRequest struct {
	Namespace string     `json:"namespace"`
	Email     core.Email `json:"email"`
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Namespace == "" || req.Email.Sender == "" {
		http.Error(w, "namespace and email.sender are required", http.StatusBadRequest)
		return
	}

	state, err := s.controller.HandleEmail(r.Context(), req.Namespace, req.Email)
	s.writeRunResult(w, state, err)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.Resume(r.Context(), r.PathValue("id"))
	if err != nil && state == nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeRunResult(w, state, err)
}

// writeRunResult reports failed runs with their final state attached so
// the caller can see how far the run got.
func (s *Server) writeRunResult(w http.ResponseWriter, state *workflow.State, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
			"state": state,
		})
		return
	}
	json.NewEncoder(w).Encode(state)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		http.Error(w, "namespace query parameter is required", http.StatusBadRequest)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.checkpoints.Recent(r.Context(), namespace, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.trainer == nil {
		http.Error(w, "feedback is not enabled", http.StatusNotImplemented)
		return
	}

	var fb optimizer.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if fb.Namespace == "" || fb.Comment == "" {
		http.Error(w, "namespace and comment are required", http.StatusBadRequest)
		return
	}

	if !s.trainer.Submit(fb) {
		// Dropped feedback is not an error worth failing the request
		// over, but the caller should know.
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"status": "dropped"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	log.Printf("[SERVER] websocket subscriber connected (%d total)", count)

	// Reader loop only notices disconnects; subscribers never send.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
