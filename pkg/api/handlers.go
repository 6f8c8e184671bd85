package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/platinummonkey/flowindex/pkg/httputil"
	"github.com/platinummonkey/flowindex/pkg/indexer"
	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/search"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

// WorkflowDetail is the body of GET /api/workflows/{filename}
type WorkflowDetail struct {
	Metadata *workflow.Record `json:"metadata"`
	RawJSON  json.RawMessage  `json:"raw_json"`
}

// ReindexStatus is the body of GET /api/reindex
type ReindexStatus struct {
	Running bool             `json:"running"`
	Last    *indexer.Summary `json:"last,omitempty"`
}

// getStats handles GET /api/stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.search.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// searchWorkflows handles GET /api/workflows
// Query parameters:
//   - q: free text, empty lists everything
//   - trigger: all, Webhook, Scheduled, Manual or Triggered
//   - complexity: all, low, medium or high
//   - active_only: boolean
//   - page, per_page: pagination (defaults 1 and 20, per_page capped at 100)
func (s *Server) searchWorkflows(w http.ResponseWriter, r *http.Request) {
	req := search.Request{
		Query:      httputil.ParseQueryString(r, "q", ""),
		Trigger:    httputil.ParseQueryString(r, "trigger", ""),
		Complexity: httputil.ParseQueryString(r, "complexity", ""),
	}

	var err error
	if req.ActiveOnly, err = httputil.ParseQueryBool(r, "active_only", false); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Page, err = httputil.ParseQueryInt(r, "page", 1); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.PerPage, err = httputil.ParseQueryInt(r, "per_page", search.DefaultPerPage); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// getWorkflow handles GET /api/workflows/{filename}
func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	filename, ok := s.filenameOrError(w, r)
	if !ok {
		return
	}

	rec, err := s.search.GetByFilename(r.Context(), filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, ok := s.readWorkflowFile(w, r, filename)
	if !ok {
		return
	}
	if !json.Valid(data) {
		s.fail(w, r, fmt.Errorf("workflow file %s is no longer valid JSON", filename))
		return
	}

	httputil.WriteSuccess(w, WorkflowDetail{Metadata: rec, RawJSON: data})
}

// downloadWorkflow handles GET /api/workflows/{filename}/download
func (s *Server) downloadWorkflow(w http.ResponseWriter, r *http.Request) {
	filename, ok := s.filenameOrError(w, r)
	if !ok {
		return
	}
	if _, err := s.search.GetByFilename(r.Context(), filename); err != nil {
		s.fail(w, r, err)
		return
	}

	data, ok := s.readWorkflowFile(w, r, filename)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// listIntegrations handles GET /api/integrations
func (s *Server) listIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := s.search.Integrations(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"integrations": integrations,
		"count":        len(integrations),
	})
}

// reindex handles POST /api/reindex?force=
// The run continues in the background after the response is written.
func (s *Server) reindex(w http.ResponseWriter, r *http.Request) {
	force, err := httputil.ParseQueryBool(r, "force", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := s.indexer.IndexAsync(s.baseCtx, force); err != nil {
		if errors.Is(err, indexer.ErrIndexing) {
			httputil.WriteConflict(w, err.Error())
			return
		}
		if s.baseCtx.Err() != nil {
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		s.fail(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithField("force", force).Info("Reindex requested")
	httputil.WriteAccepted(w, map[string]interface{}{
		"status": "started",
		"force":  force,
	})
}

// reindexStatus handles GET /api/reindex
func (s *Server) reindexStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, ReindexStatus{
		Running: s.indexer.Running(),
		Last:    s.indexer.LastSummary(),
	})
}

func (s *Server) filenameOrError(w http.ResponseWriter, r *http.Request) (string, bool) {
	filename, ok := httputil.ParsePathStringOrError(w, r, "filename")
	if !ok {
		return "", false
	}
	if filename != filepath.Base(filename) || filename == "." || filename == ".." {
		httputil.WriteBadRequest(w, "invalid workflow filename")
		return "", false
	}
	return filename, true
}

func (s *Server) readWorkflowFile(w http.ResponseWriter, r *http.Request, filename string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(s.workflowsDir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			httputil.WriteNotFound(w, "workflow file not found")
			return nil, false
		}
		s.fail(w, r, err)
		return nil, false
	}
	return data, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httputil.StatusForKind(indexerr.KindOf(err)) == http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	httputil.WriteError(w, err)
}
