// Package api exposes the session over HTTP: a status snapshot, the
// archived session list, a live SSE event tail, and the skip/reset
// controls of the console UI.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/store"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	ctl      *session.Controller
	db       *store.Store
	feed     *Feed
	commands chan<- func()
}

// NewServer builds the HTTP front end. db may be nil when no archive
// is configured; the session endpoints then report 503. commands, when
// non-nil, routes controller access onto the session run loop; nil
// executes it inline.
func NewServer(ctl *session.Controller, db *store.Store, feed *Feed, commands chan<- func()) *Server {
	return &Server{
		ctl:      ctl,
		db:       db,
		feed:     feed,
		commands: commands,
	}
}

// commandTimeout bounds how long a handler waits for the session loop.
const commandTimeout = time.Second

// runOnLoop executes fn on the session run loop and waits for it.
// Reports false when the loop is gone or too busy.
func (s *Server) runOnLoop(fn func()) bool {
	if s.commands == nil {
		fn()
		return true
	}
	done := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(done) }:
	case <-time.After(commandTimeout):
		return false
	}
	select {
	case <-done:
		return true
	case <-time.After(commandTimeout):
		return false
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/events", s.tailEvents)
	mux.HandleFunc("/api/skip", s.skipTest)
	mux.HandleFunc("/api/reset", s.resetStep)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var status map[string]interface{}
	ok := s.runOnLoop(func() {
		status = map[string]interface{}{
			"version":  version.Version,
			"state":    s.ctl.State().String(),
			"location": s.ctl.CurLoc,
			"operator": s.ctl.OperatorID,
			"tracker":  s.ctl.TrackerID,
			"tests":    s.ctl.Battery.Names(),
		}
		if !s.ctl.StartTime.IsZero() {
			status["start"] = s.ctl.StartTime
			status["duration_secs"] = s.ctl.Duration().Seconds()
		}
	})
	if !ok {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Session loop unavailable")
		return
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No session archive configured")
		return
	}

	sums, err := s.db.ListSessions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sums == nil {
		sums = []store.SessionSummary{}
	}

	if err := json.NewEncoder(w).Encode(sums); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
		return
	}
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No session archive configured")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}

	result, err := s.db.GetSession(id)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write session")
		return
	}
}

func (s *Server) skipTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.runOnLoop(s.ctl.SkipTest) {
		http.Error(w, "Session loop unavailable", http.StatusServiceUnavailable)
		return
	}
	io.WriteString(w, "Skipped current test")
}

func (s *Server) resetStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.runOnLoop(s.ctl.ResetStep) {
		http.Error(w, "Session loop unavailable", http.StatusServiceUnavailable)
		return
	}
	io.WriteString(w, "Restarted current step")
}

// tailEvents streams the session feed as Server-Sent Events.
func (s *Server) tailEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.feed.Subscribe()
	defer s.feed.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	w.(http.Flusher).Flush()

	for {
		select {
		case ev, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}
