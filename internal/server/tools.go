// ABOUTME: MCP tool set: the settings, registry, result and report operations for AI clients
// ABOUTME: Tools share the HTTP handlers' logic; mutating ones need an authenticated session

package server

import (
	"context"
	"encoding/json"

	"github.com/2389/mlra/internal/mcp"
	"github.com/2389/mlra/internal/settings"
)

type getSettingsArgs struct {
	Path string `json:"path"`
}

type patchSettingsArgs struct {
	Patch json.RawMessage `json:"patch" validate:"required"`
}

type listDocumentsArgs struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

type ingestURLArgs struct {
	URL   string `json:"url" validate:"required"`
	Title string `json:"title"`
}

type taskArgs struct {
	TaskID string `json:"task_id" validate:"required"`
}

// reportToolResult is what generate_report and save_report return; always
// Markdown so an assistant can read it.
type reportToolResult struct {
	TaskID   string `json:"task_id"`
	Source   string `json:"source"`
	Format   string `json:"format"`
	Path     string `json:"path,omitempty"`
	Markdown string `json:"markdown"`
}

const taskIDSchema = `{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`

func (s *Server) mcpTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "get_settings",
			Description: "Read the current workflow settings, or one dotted path such as experiment.randomSeed",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
			Handler:     s.toolGetSettings,
		},
		{
			Name:        "patch_settings",
			Description: "Merge a partial settings object field by field; rejected if the result does not validate",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"patch":{"type":"object"}},"required":["patch"]}`),
			Mutates:     true,
			Handler:     s.toolPatchSettings,
		},
		{
			Name:        "reset_settings",
			Description: "Restore the default settings",
			Mutates:     true,
			Handler: func(context.Context, json.RawMessage) (any, error) {
				s.settings.Reset()
				return s.settings.Get(), nil
			},
		},
		{
			Name:        "list_documents",
			Description: "List recently submitted papers, newest first",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":100}}}`),
			Handler:     s.toolListDocuments,
		},
		{
			Name:        "ingest_url",
			Description: "Ask the retriever to fetch and index a paper by URL",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"},"title":{"type":"string"}},"required":["url"]}`),
			Mutates:     true,
			Handler:     s.toolIngestURL,
		},
		{
			Name:        "experiment_result",
			Description: "Fetch an experiment's status and, when completed, its decoded statistics",
			InputSchema: json.RawMessage(taskIDSchema),
			Handler:     s.toolExperimentResult,
		},
		{
			Name:        "generate_report",
			Description: "Build the Markdown report for a completed experiment",
			InputSchema: json.RawMessage(taskIDSchema),
			Handler:     s.reportTool(false),
		},
		{
			Name:        "save_report",
			Description: "Build a completed experiment's report and write the configured artifact under reporting.artifactDir",
			InputSchema: json.RawMessage(taskIDSchema),
			Mutates:     true,
			Handler:     s.reportTool(true),
		},
	}
}

func (s *Server) toolGetSettings(_ context.Context, raw json.RawMessage) (any, error) {
	var args getSettingsArgs
	if err := mcp.DecodeArguments(raw, &args); err != nil {
		return nil, err
	}
	return settings.Lookup(s.settings.Get(), args.Path)
}

func (s *Server) toolPatchSettings(_ context.Context, raw json.RawMessage) (any, error) {
	var args patchSettingsArgs
	if err := mcp.DecodeArguments(raw, &args); err != nil {
		return nil, err
	}
	if err := s.settings.ApplyValidated(args.Patch); err != nil {
		return nil, err
	}
	return s.settings.Get(), nil
}

func (s *Server) toolListDocuments(ctx context.Context, raw json.RawMessage) (any, error) {
	var args listDocumentsArgs
	if err := mcp.DecodeArguments(raw, &args); err != nil {
		return nil, err
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultDocumentLimit
	}
	docs, err := s.store.ListDocuments(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]documentJSON, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentJSON(d))
	}
	return out, nil
}

func (s *Server) toolIngestURL(ctx context.Context, raw json.RawMessage) (any, error) {
	var args ingestURLArgs
	if err := mcp.DecodeArguments(raw, &args); err != nil {
		return nil, err
	}
	doc, resp, err := s.ingestURL(ctx, args.URL, args.Title)
	if err != nil {
		return nil, err
	}
	return IngestResponse{Status: resp.Status, Document: toDocumentJSON(doc), Backend: resp.Raw}, nil
}

func (s *Server) toolExperimentResult(ctx context.Context, raw json.RawMessage) (any, error) {
	var args taskArgs
	if err := mcp.DecodeArguments(raw, &args); err != nil {
		return nil, err
	}
	return s.loadResult(ctx, args.TaskID)
}

func (s *Server) reportTool(save bool) mcp.ToolHandler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args taskArgs
		if err := mcp.DecodeArguments(raw, &args); err != nil {
			return nil, err
		}
		built, err := s.buildReport(ctx, args.TaskID, save)
		if err != nil {
			return nil, err
		}
		return reportToolResult{
			TaskID:   args.TaskID,
			Source:   built.Source,
			Format:   built.Format,
			Path:     built.Path,
			Markdown: string(built.Markdown),
		}, nil
	}
}
