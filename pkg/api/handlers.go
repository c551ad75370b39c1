package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/catalog"
	"github.com/perflab/querybench/pkg/orchestrator"
	"github.com/perflab/querybench/pkg/store"
	"github.com/perflab/querybench/pkg/sysinfo"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v to the response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth reports liveness.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystem reports a host resource snapshot.
func (s *server) handleSystem(w http.ResponseWriter, r *http.Request) {
	snap, err := sysinfo.Collect(r.Context())
	if err != nil {
		s.log.WithError(err).Error("System snapshot failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"collecting system info"})

		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleListTests returns the registered test definitions.
func (s *server) handleListTests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

// handleGetTest returns one test definition by name.
func (s *server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	def, err := s.catalog.Lookup(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, def)
}

// runRequest is the POST /runs payload. Omitted load parameters fall back
// to the configured benchmark defaults.
type runRequest struct {
	Test        string   `json:"test"`
	Paths       []string `json:"paths,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Iterations  int      `json:"iterations,omitempty"`
	Rate        float64  `json:"rate,omitempty"`
}

// handleStartRun executes a benchmark run synchronously and returns its
// sealed result.
func (s *server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	def, err := s.catalog.Lookup(req.Test)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

		return
	}

	opts, err := s.buildRunOptions(&req, def)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	result, err := s.orch.Run(r.Context(), *opts)
	if err != nil {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, orchestrator.ErrInvalidConcurrency),
			errors.Is(err, orchestrator.ErrNoPathsRequested),
			errors.Is(err, orchestrator.ErrNoStopCondition):
			status = http.StatusBadRequest
		case errors.Is(err, catalog.ErrUnknownTest):
			status = http.StatusNotFound
		}

		writeJSON(w, status, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// buildRunOptions merges a run request with the configured defaults.
func (s *server) buildRunOptions(
	req *runRequest, def bench.TestDefinition,
) (*orchestrator.RunOptions, error) {
	opts := &orchestrator.RunOptions{
		Test:        def,
		Concurrency: req.Concurrency,
		Iterations:  req.Iterations,
		Rate:        req.Rate,
	}

	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return nil, err
		}

		opts.Duration = d
	}

	for _, p := range req.Paths {
		parsed, err := bench.ParsePath(p)
		if err != nil {
			return nil, err
		}

		opts.Paths = append(opts.Paths, parsed)
	}

	if s.defaults == nil {
		return opts, nil
	}

	if opts.Concurrency == 0 {
		opts.Concurrency = s.defaults.Concurrency
	}

	if opts.Duration == 0 && opts.Iterations == 0 {
		opts.Duration = s.defaults.Duration
		opts.Iterations = s.defaults.Iterations
	}

	if opts.Rate == 0 {
		opts.Rate = s.defaults.Rate
	}

	if len(opts.Paths) == 0 {
		for _, p := range s.defaults.Paths {
			parsed, err := bench.ParsePath(p)
			if err != nil {
				return nil, err
			}

			opts.Paths = append(opts.Paths, parsed)
		}
	}

	return opts, nil
}

// handleListRuns returns all persisted runs for a test, oldest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	test := chi.URLParam(r, "test")

	runs, err := s.store.List(r.Context(), test)
	if err != nil {
		s.log.WithError(err).Error("Listing runs failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing runs"})

		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// handleLatestResult returns the most recent run for a test.
func (s *server) handleLatestResult(w http.ResponseWriter, r *http.Request) {
	test := chi.URLParam(r, "test")

	result, err := s.store.Latest(r.Context(), test)
	if err != nil {
		s.log.WithError(err).Error("Loading latest run failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"loading latest run"})

		return
	}

	if result == nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"no runs for test"})

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCompare relates two paths' mean latencies for a test. Paths default
// to direct vs mediated.
func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	test := chi.URLParam(r, "test")

	base := bench.PathDirect
	if q := r.URL.Query().Get("base"); q != "" {
		parsed, err := bench.ParsePath(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

			return
		}

		base = parsed
	}

	target := bench.PathMediated
	if q := r.URL.Query().Get("target"); q != "" {
		parsed, err := bench.ParsePath(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

			return
		}

		target = parsed
	}

	c, err := s.store.Compare(r.Context(), test, base, target)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientData) {
			writeJSON(w, http.StatusUnprocessableEntity,
				errorResponse{err.Error()})

			return
		}

		s.log.WithError(err).Error("Comparison failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"comparing paths"})

		return
	}

	writeJSON(w, http.StatusOK, c)
}
