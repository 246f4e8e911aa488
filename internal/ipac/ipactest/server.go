// Package ipactest provides an in-memory policy database for tests.
package ipactest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/VEEP09/xc-test-apim/internal/ipac"
)

const basePath = "/db/ipac/"

// Server is an httptest server speaking the policy database protocol.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	rows     map[string]ipac.Record
	calls    map[string]int
	failures map[string]failure
}

type failure struct {
	status    int
	remaining int
	commit    bool
}

// NewServer starts a server; callers must Close it.
func NewServer() *Server {
	s := &Server{
		rows:     map[string]ipac.Record{},
		calls:    map[string]int{},
		failures: map[string]failure{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// BaseURL is the collection URL to hand to ipac.NewClient.
func (s *Server) BaseURL() string { return s.URL + basePath }

// Calls returns how many requests with method were received.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Fail makes every request with method answer status until Recover is called.
func (s *Server) Fail(method string, status int) {
	s.FailTimes(method, status, -1)
}

// FailTimes makes the next n requests with method answer status.
func (s *Server) FailTimes(method string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = failure{status: status, remaining: n}
}

// CommitThenFail applies the next request with method and then answers
// status anyway, like a database that commits before its response is lost.
func (s *Server) CommitThenFail(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = failure{status: status, remaining: 1, commit: true}
}

// Recover clears injected failures.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]failure{}
}

// Put seeds a row.
func (s *Server) Put(rec ipac.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rec.ID] = rec
}

// Row returns the row stored under id.
func (s *Server) Row(id string) (ipac.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	return rec, ok
}

// Len returns the number of stored rows.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[r.Method]++
	if f, ok := s.failures[r.Method]; ok && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
			s.failures[r.Method] = f
		}
		if f.commit {
			s.serve(httptest.NewRecorder(), r)
		}
		writeJSON(w, f.status, map[string]string{"detail": "injected failure"})
		return
	}
	s.serve(w, r)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path+"/", basePath) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unknown collection"})
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(basePath, "/")), "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		rows := make([]ipac.Record, 0, len(s.rows))
		for _, rec := range s.rows {
			rows = append(rows, rec)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].PolicyName < rows[j].PolicyName })
		writeJSON(w, http.StatusOK, rows)
	case r.Method == http.MethodGet:
		rec, ok := s.rows[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case r.Method == http.MethodPost && id == "":
		var rec ipac.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec.ID == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid record"})
			return
		}
		if _, exists := s.rows[rec.ID]; exists {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "duplicate id"})
			return
		}
		s.rows[rec.ID] = rec
		writeJSON(w, http.StatusCreated, rec)
	case r.Method == http.MethodPut && id != "":
		if _, exists := s.rows[id]; !exists {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
			return
		}
		var rec ipac.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid record"})
			return
		}
		rec.ID = id
		s.rows[id] = rec
		writeJSON(w, http.StatusOK, rec)
	case r.Method == http.MethodDelete && id != "":
		if _, exists := s.rows[id]; !exists {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
			return
		}
		delete(s.rows, id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
