// Package server exposes the spatial query protocol over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/norngeo/norngeo/pkg/layer"
	"github.com/norngeo/norngeo/pkg/storage"
)

// Server serves spatial queries for a set of named layers.
type Server struct {
	addr   string
	layers map[string]*layer.LayerIndex
	http   *http.Server
}

// New creates a server over the given layers.
func New(addr string, layers map[string]*layer.LayerIndex) *Server {
	s := &Server{
		addr:   addr,
		layers: layers,
	}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe starts serving. Blocks until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	log.Printf("norngeo: serving %d layer(s) on %s", len(s.layers), s.addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/layers/", s.handleLayer)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "layers": len(s.layers)})
}

// queryRequest is the body of POST /layers/{name}/query. Either the typed
// form (type + params) or the single-string form (query) may be used.
type queryRequest struct {
	Type   string          `json:"type,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Query  string          `json:"query,omitempty"`
}

// queryResponse wraps a result collection.
type queryResponse struct {
	Count     int             `json:"count"`
	Nodes     []*storage.Node `json:"nodes"`
	Distances []float64       `json:"distances,omitempty"`
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	// Path shape: /layers/{name}/query
	rest := strings.TrimPrefix(r.URL.Path, "/layers/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] != "query" {
		http.NotFound(w, r)
		return
	}
	ix, ok := s.layers[parts[0]]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown layer %q", parts[0]))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("use POST"))
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	results, err := s.runQuery(ix, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Count:     results.Len(),
		Nodes:     results.Nodes,
		Distances: results.Distances,
	})
}

func (s *Server) runQuery(ix *layer.LayerIndex, req queryRequest) (*layer.Results, error) {
	if req.Query != "" {
		return ix.QueryString(req.Query)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: request needs \"query\" or \"type\"", layer.ErrDecode)
	}

	// Structured payloads arrive as JSON objects; everything else is the
	// textual payload form.
	params := decodeParams(req.Params)
	return ix.Query(req.Type, params)
}

// decodeParams maps the wire payload onto the dispatcher's payload forms:
// JSON objects become maps, JSON strings become their text, anything else
// is passed through as raw text.
func decodeParams(raw json.RawMessage) any {
	if len(raw) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	switch t := decoded.(type) {
	case map[string]any:
		return t
	case string:
		return t
	default:
		return string(raw)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, layer.ErrUnsupportedQuery), errors.Is(err, layer.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, layer.ErrResolution), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("norngeo: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
