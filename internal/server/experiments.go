// ABOUTME: HTTP handlers for experiment results and generated reports
// ABOUTME: Completed results are cached so reports can be rebuilt while the backend is down

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2389/mlra/internal/auth"
	"github.com/2389/mlra/internal/backend"
	"github.com/2389/mlra/internal/report"
	"github.com/2389/mlra/internal/results"
	"github.com/2389/mlra/internal/store"
)

// Result sources reported in the X-Result-Source header.
const (
	sourceBackend = "backend"
	sourceCache   = "cache"
)

// ResultResponse is returned by GET /api/experiments/{task_id}/result.
type ResultResponse struct {
	TaskID      string           `json:"task_id"`
	Status      string           `json:"status"`
	Test        string           `json:"test,omitempty"`
	Error       string           `json:"error,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
	Outcome     *results.Common  `json:"outcome,omitempty"`
	Section     *results.Section `json:"section,omitempty"`
	Result      json.RawMessage  `json:"result,omitempty"`
}

var errMalformedResult = errors.New("malformed experiment result")

// notReadyError means the task has no completed result to report on.
type notReadyError struct{ msg string }

func (e *notReadyError) Error() string { return e.msg }

// generationError wraps a report rendering or artifact write failure.
type generationError struct {
	msg string
	err error
}

func (e *generationError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *generationError) Unwrap() error { return e.err }

// builtReport is a rendered report and where its result came from.
type builtReport struct {
	*report.Report
	Source   string
	Fallback bool // rendered as Markdown because the format is not supported
	Path     string
}

// loadResult fetches and, when completed, decodes and caches taskID.
func (s *Server) loadResult(ctx context.Context, taskID string) (ResultResponse, error) {
	res, err := s.fetchResult(ctx, taskID)
	if err != nil {
		return ResultResponse{}, err
	}

	out := ResultResponse{TaskID: taskID, Status: res.Status, Error: res.Error, Explanation: res.Explanation}
	if !res.Completed() {
		return out, nil
	}

	view, err := results.Decode(res.Payload)
	if err != nil {
		s.logger.Warn("undecodable experiment result", "task_id", taskID, "error", err)
		return out, errMalformedResult
	}
	s.cacheResult(ctx, res, view)

	outcome, section := view.Outcome(), view.Section()
	out.Test = view.Kind()
	out.Outcome = &outcome
	out.Section = &section
	out.Result = res.Payload
	return out, nil
}

func (s *Server) handleExperimentResult(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(r.PathValue("task_id"))
	if taskID == "" {
		s.sendJSONError(w, http.StatusBadRequest, backend.ErrEmptyTaskID.Error())
		return
	}

	out, err := s.loadResult(r.Context(), taskID)
	switch {
	case errors.Is(err, errMalformedResult):
		s.sendJSONError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.sendBackendError(w, "experiment result", err)
		return
	}

	status := http.StatusOK
	if out.Status == backend.StatusRunning {
		status = http.StatusAccepted
	}
	if out.Status == backend.StatusCompleted {
		w.Header().Set("X-Result-Source", sourceBackend)
	}
	s.writeJSON(w, status, out)
}

// buildReport renders a report for a completed task using the current
// reporting settings, falling back to the result cache when the backend
// fails or has nothing completed. Formats that cannot be rendered in-process
// come back as Markdown. With save the artifact is written to artifactDir.
func (s *Server) buildReport(ctx context.Context, taskID string, save bool) (*builtReport, error) {
	source := sourceBackend
	res, fetchErr := s.fetchResult(ctx, taskID)
	if fetchErr != nil || !res.Completed() {
		cached, err := s.cachedResult(ctx, taskID)
		switch {
		case err == nil:
			res, source = cached, sourceCache
			if fetchErr != nil {
				s.logger.Warn("serving report from result cache", "task_id", taskID, "error", fetchErr)
			}
		case fetchErr != nil:
			return nil, fetchErr
		case res.Failed():
			return nil, &notReadyError{msg: "experiment failed: " + res.Error}
		default:
			return nil, &notReadyError{msg: "experiment still running"}
		}
	}

	view, err := results.Decode(res.Payload)
	if err != nil {
		return nil, errMalformedResult
	}
	if source == sourceBackend {
		s.cacheResult(ctx, res, view)
	}

	opts := s.settings.Get().Reporting
	rep, err := report.Generate(view, opts, report.Meta{
		TaskID:      taskID,
		Explanation: res.Explanation,
		Payload:     res.Payload,
		GeneratedAt: s.now(),
	})
	if err != nil && !errors.Is(err, report.ErrUnsupportedFormat) {
		return nil, &generationError{msg: "report generation failed", err: err}
	}
	out := &builtReport{Report: rep, Source: source, Fallback: err != nil}

	if save {
		path, err := report.Write(rep, opts.ArtifactDir)
		if err != nil {
			return nil, &generationError{msg: "failed to write report", err: err}
		}
		out.Path = path
	}
	return out, nil
}

// handleReport renders a report without touching the artifact directory.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("save") {
		s.sendJSONError(w, http.StatusBadRequest, "saving moved to POST /api/reports/{task_id}/artifact")
		return
	}
	s.serveReport(w, r, false, http.StatusOK)
}

// handleSaveReport renders a report and writes it under reporting.artifactDir.
func (s *Server) handleSaveReport(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, true, http.StatusCreated)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, save bool, status int) {
	taskID := strings.TrimSpace(r.PathValue("task_id"))
	if taskID == "" {
		s.sendJSONError(w, http.StatusBadRequest, backend.ErrEmptyTaskID.Error())
		return
	}

	built, err := s.buildReport(r.Context(), taskID, save)
	if err != nil {
		s.sendReportError(w, taskID, err)
		return
	}
	if save {
		s.logger.Info("report saved", "task_id", taskID, "path", built.Path, "subject", auth.SubjectFromContext(r.Context()))
	}

	if built.Fallback {
		w.Header().Set("X-Report-Fallback", "markdown")
	}
	if built.Path != "" {
		w.Header().Set("X-Report-Path", built.Path)
	}
	w.Header().Set("X-Result-Source", built.Source)
	w.Header().Set("Content-Type", built.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(built.Body())
}

func (s *Server) sendReportError(w http.ResponseWriter, taskID string, err error) {
	var notReady *notReadyError
	var genErr *generationError
	switch {
	case errors.As(err, &notReady):
		s.sendJSONError(w, http.StatusConflict, notReady.msg)
	case errors.As(err, &genErr):
		s.logger.Error(genErr.msg, "task_id", taskID, "error", genErr.err)
		s.sendJSONError(w, http.StatusInternalServerError, genErr.msg)
	case errors.Is(err, errMalformedResult):
		s.sendJSONError(w, http.StatusBadGateway, err.Error())
	default:
		s.sendBackendError(w, "report", err)
	}
}

func (s *Server) fetchResult(ctx context.Context, taskID string) (*backend.Result, error) {
	started := time.Now()
	res, err := s.backend.ExperimentResult(ctx, taskID)
	if s.metrics != nil {
		s.metrics.ObserveBackend("result", started, err)
	}
	return res, err
}

// cacheResult stores the normalized envelope; ParseResult reads it back.
func (s *Server) cacheResult(ctx context.Context, res *backend.Result, view results.View) {
	payload, err := json.Marshal(res)
	if err != nil {
		s.logger.Error("failed to encode result for cache", "task_id", res.TaskID, "error", err)
		return
	}
	err = s.store.SaveResult(ctx, &store.ExperimentResult{
		TaskID:    res.TaskID,
		Test:      view.Kind(),
		Status:    res.Status,
		Payload:   payload,
		FetchedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to cache result", "task_id", res.TaskID, "error", err)
	}
}

func (s *Server) cachedResult(ctx context.Context, taskID string) (*backend.Result, error) {
	cached, err := s.store.GetResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return backend.ParseResult(taskID, cached.Payload)
}
