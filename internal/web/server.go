// Package web provides an HTTP status server for the occupancy-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sweeney/occupancy-sensor/internal/log"
	"github.com/sweeney/occupancy-sensor/internal/status"
	"github.com/sweeney/occupancy-sensor/internal/store"
)

// History is the read side of the session store.
type History interface {
	History(limit int) ([]store.Session, error)
	Periods(limit int) ([]store.Period, error)
}

// Options holds the optional parts of the server.
type Options struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// History serves /history.json when set.
	History History
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	tracker    *status.Tracker
	hub        *Hub
	history    History
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{
		tracker: tracker,
		hub:     NewHub(),
		history: opts.History,
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	s.router.HandleFunc("/history.json", s.handleHistory).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics).Methods("GET")
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s
}

// Hub returns the live update hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// HistoryJSON is the /history.json document.
type HistoryJSON struct {
	Sessions []store.Session `json:"sessions"`
	Periods  []store.Period  `json:"periods"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not available", http.StatusNotFound)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := s.history.History(limit)
	if err != nil {
		log.Errorf("web: history: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	periods, err := s.history.Periods(limit)
	if err != nil {
		log.Errorf("web: periods: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	doc := HistoryJSON{Sessions: sessions, Periods: periods}
	if doc.Sessions == nil {
		doc.Sessions = []store.Session{}
	}
	if doc.Periods == nil {
		doc.Periods = []store.Period{}
	}
	data, _ := json.MarshalIndent(doc, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
