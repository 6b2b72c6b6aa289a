// Package ui serves the sweep report: JSON endpoints for tooling and a
// rendered summary page for humans.
package ui

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pepdensity/domain/core"
	"pepdensity/internal"
	"pepdensity/internal/errors"
	"pepdensity/ports"
)

// Server exposes read-only sweep views over the ledger reader port. It never
// writes; report traffic cannot alter results.
type Server struct {
	reader ports.LedgerReaderPort
	logger *internal.Logger
	router chi.Router
}

// NewServer wires routes.
func NewServer(reader ports.LedgerReaderPort, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{reader: reader, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Route("/sweeps", func(r chi.Router) {
		r.Get("/", s.handleListSweeps)
		r.Route("/{sweepID}", func(r chi.Router) {
			r.Get("/", s.handleManifest)
			r.Get("/results", s.handleResults)
			r.Get("/skipped", s.handleSkipped)
			r.Get("/failures", s.handleFailures)
			r.Get("/comparisons", s.handleComparisons)
			r.Get("/report", s.handleReport)
		})
	})

	s.router = r
	return s
}

// Handler returns the http handler for mounting.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the server on the given port.
func (s *Server) ListenAndServe(port string) error {
	s.logger.Info("report server listening on :%s", port)
	return http.ListenAndServe(":"+port, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	manifests, err := s.reader.ListSweeps(r.Context(), 20)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTML(w, renderIndex(manifests))
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	manifests, err := s.reader.ListSweeps(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, manifests)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.reader.GetSweepManifest(r.Context(), sweepParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.handleSweepArtifacts(w, r, core.ArtifactFeatureResult)
}

func (s *Server) handleSkipped(w http.ResponseWriter, r *http.Request) {
	s.handleSweepArtifacts(w, r, core.ArtifactSkippedFeature)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	s.handleSweepArtifacts(w, r, core.ArtifactFailedFit)
}

func (s *Server) handleComparisons(w http.ResponseWriter, r *http.Request) {
	s.handleSweepArtifacts(w, r, core.ArtifactComparison)
}

func (s *Server) handleSweepArtifacts(w http.ResponseWriter, r *http.Request, kind core.ArtifactKind) {
	sweepID := sweepParam(r)
	artifacts, err := s.reader.ListArtifacts(r.Context(), ports.ArtifactFilters{
		Sweep:  &sweepID,
		Kind:   &kind,
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]interface{}, len(artifacts))
	for i, a := range artifacts {
		payloads[i] = a.Payload
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sweepID := sweepParam(r)
	manifest, err := s.reader.GetSweepManifest(r.Context(), sweepID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	kind := core.ArtifactComparison
	comparisons, err := s.reader.ListArtifacts(r.Context(), ports.ArtifactFilters{Sweep: &sweepID, Kind: &kind})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeHTML(w, renderReport(*manifest, comparisons))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	// Encode before touching the response so an encoding failure becomes a
	// 500, not a 200 with a truncated body.
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response: %v", err)
		http.Error(w, `{"error":"response encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("write response: %v", err)
	}
}

func (s *Server) writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.GetCode(err) == errors.CodeNotFound {
		status = http.StatusNotFound
	}
	s.logger.Warn("request failed: %v", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func sweepParam(r *http.Request) core.SweepID {
	return core.SweepID(chi.URLParam(r, "sweepID"))
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
