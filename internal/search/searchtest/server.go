// Package searchtest provides an in-process stand-in for the search backend.
package searchtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Request is one captured backend call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// JSON decodes the captured body into a generic map
func (r Request) JSON(t testing.TB) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		t.Fatalf("request body is not JSON: %v: %s", err, r.Body)
	}
	return out
}

// Handler returns the status and body for a captured request
type Handler func(Request) (int, string)

// Server records every request and answers with the handler's response
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	handler  Handler
}

// NewServer starts a fake backend closed automatically at test cleanup
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()
	s := &Server{handler: handler}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Requests returns a copy of every captured request
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent captured request
func (s *Server) Last(t testing.TB) Request {
	t.Helper()
	reqs := s.Requests()
	if len(reqs) == 0 {
		t.Fatal("no requests captured")
	}
	return reqs[len(reqs)-1]
}

// SetHandler swaps the response handler
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	h := s.handler
	s.mu.Unlock()

	status, payload := http.StatusOK, `{}`
	if h != nil {
		status, payload = h(req)
	}

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

// Reply is a Handler that always answers status with body
func Reply(status int, body string) Handler {
	return func(Request) (int, string) { return status, body }
}

// SearchResponse renders a minimal search response with the given hits
// (each an already-encoded _source) and optional aggregations JSON.
func SearchResponse(total int, hits map[string]string, aggregations string) string {
	type hit struct {
		ID     string          `json:"_id"`
		Index  string          `json:"_index"`
		Score  float64         `json:"_score"`
		Source json.RawMessage `json:"_source"`
	}
	list := make([]hit, 0, len(hits))
	for id, src := range hits {
		list = append(list, hit{ID: id, Index: "pets", Score: 1, Source: json.RawMessage(src)})
	}
	resp := map[string]interface{}{
		"took":      3,
		"timed_out": false,
		"hits": map[string]interface{}{
			"total":     map[string]interface{}{"value": total, "relation": "eq"},
			"max_score": 1,
			"hits":      list,
		},
	}
	if aggregations != "" {
		resp["aggregations"] = json.RawMessage(aggregations)
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
