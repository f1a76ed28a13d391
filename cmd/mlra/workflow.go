// ABOUTME: Workflow commands: submit papers, fetch experiment results, build reports
// ABOUTME: Each talks to the research backend and records what it learned locally

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mlra/internal/backend"
	"github.com/2389/mlra/internal/dedupe"
	"github.com/2389/mlra/internal/report"
	"github.com/2389/mlra/internal/results"
	"github.com/2389/mlra/internal/store"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit a paper to the research backend",
	}

	var fileTitle string
	fileCmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a PDF (10 MB max)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if err := backend.CheckUpload(args[0], "", len(data)); err != nil {
				return err
			}
			client, err := a.backendClient()
			if err != nil {
				return err
			}

			resp, err := client.IngestFile(ctx, backend.Upload{Filename: args[0], Title: fileTitle, Data: data})
			doc := &store.Document{
				ID:          filepath.Base(args[0]),
				Title:       fileTitle,
				Kind:        store.DocumentKindPDF,
				Filename:    filepath.Base(args[0]),
				ContentHash: dedupe.ContentKey(data),
			}
			if doc.Title == "" {
				doc.Title = doc.ID
			}
			return a.finishIngest(ctx, cmd, doc, resp, err)
		}),
	}
	fileCmd.Flags().StringVar(&fileTitle, "title", "", "document title (default: file name)")

	var urlTitle string
	urlCmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Ask the backend to fetch a paper by URL",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			normalized, err := backend.NormalizeURL(args[0])
			if err != nil {
				return err
			}
			client, err := a.backendClient()
			if err != nil {
				return err
			}

			resp, docID, err := client.IngestURL(ctx, normalized, urlTitle)
			doc := &store.Document{
				ID:    docID,
				Title: urlTitle,
				Kind:  store.DocumentKindURL,
				URL:   normalized,
			}
			if doc.Title == "" {
				doc.Title = backend.DefaultURLTitle
			}
			return a.finishIngest(ctx, cmd, doc, resp, err)
		}),
	}
	urlCmd.Flags().StringVar(&urlTitle, "title", "", "document title (default: "+backend.DefaultURLTitle+")")

	cmd.AddCommand(fileCmd, urlCmd)
	return cmd
}

// finishIngest records the outcome in the registry and reports it.
func (a *app) finishIngest(ctx context.Context, cmd *cobra.Command, doc *store.Document, resp *backend.IngestResponse, ingestErr error) error {
	doc.CreatedAt = time.Now().UTC()
	if ingestErr != nil {
		doc.Status = store.DocumentStatusFailed
		doc.Detail = ingestErr.Error()
		if apiErr, ok := backend.IsAPIError(ingestErr); ok {
			doc.Detail = apiErr.Detail
		}
	} else {
		doc.Status = store.DocumentStatusSubmitted
		doc.Detail = resp.Status
	}

	if doc.ID != "" {
		if err := a.store.SaveDocument(ctx, doc); err != nil {
			a.logger.Warn("failed to record document", "doc_id", doc.ID, "error", err)
		}
	}
	if ingestErr != nil {
		return ingestErr
	}

	color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "✓ ")
	fmt.Fprintf(cmd.OutOrStdout(), "%s submitted (%s)\n", doc.ID, resp.Status)
	return nil
}

func newResultCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "result <task_id>",
		Short: "Fetch and display an experiment result",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			client, err := a.backendClient()
			if err != nil {
				return err
			}
			res, err := client.ExperimentResult(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Pending():
				fmt.Fprintf(out, "%s is still running\n", res.TaskID)
				return nil
			case res.Failed():
				return fmt.Errorf("experiment %s failed: %s", res.TaskID, res.Error)
			}

			view, err := results.Decode(res.Payload)
			if err != nil {
				return err
			}
			a.cacheResult(ctx, res, view)

			if asJSON {
				return printJSON(out, json.RawMessage(res.Payload))
			}
			if err := results.WriteText(out, view.Section()); err != nil {
				return err
			}
			outcome := view.Outcome()
			if outcome.Summary != "" {
				fmt.Fprintf(out, "\nSummary: %s\n", outcome.Summary)
			}
			if outcome.Conclusion != "" {
				fmt.Fprintf(out, "Conclusion: %s\n", outcome.Conclusion)
			}
			if res.Explanation != "" {
				fmt.Fprintf(out, "\n%s\n", res.Explanation)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result object")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "report <task_id>",
		Short: "Generate a report using the reporting settings",
		Long:  "Generate a report for a completed experiment. When the backend is unreachable the last cached result is used.",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			res, err := a.completedResult(ctx, args[0])
			if err != nil {
				return err
			}
			view, err := results.Decode(res.Payload)
			if err != nil {
				return err
			}

			reporting := a.settings.Get().Reporting
			if outDir != "" {
				reporting.ArtifactDir = outDir
			}
			rep, err := report.Generate(view, reporting, report.Meta{
				TaskID:      res.TaskID,
				Explanation: res.Explanation,
				Payload:     res.Payload,
			})
			if errors.Is(err, report.ErrUnsupportedFormat) {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "%s reports are not rendered locally; writing Markdown\n", reporting.Format)
			} else if err != nil {
				return err
			}

			path, err := report.Write(rep, reporting.ArtifactDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: reporting.artifactDir)")
	return cmd
}

// completedResult fetches taskID, falling back to the local cache when the
// backend fails or has nothing completed.
func (a *app) completedResult(ctx context.Context, taskID string) (*backend.Result, error) {
	client, err := a.backendClient()
	if err != nil {
		return nil, err
	}
	res, fetchErr := client.ExperimentResult(ctx, taskID)
	if fetchErr == nil && res.Completed() {
		if view, err := results.Decode(res.Payload); err == nil {
			a.cacheResult(ctx, res, view)
		}
		return res, nil
	}

	cached, err := a.store.GetResult(ctx, taskID)
	if err == nil {
		a.logger.Warn("using cached result", "task_id", taskID)
		return backend.ParseResult(taskID, cached.Payload)
	}
	switch {
	case fetchErr != nil:
		return nil, fetchErr
	case res.Failed():
		return nil, fmt.Errorf("experiment %s failed: %s", taskID, res.Error)
	default:
		return nil, fmt.Errorf("experiment %s is still running", taskID)
	}
}

func (a *app) cacheResult(ctx context.Context, res *backend.Result, view results.View) {
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	err = a.store.SaveResult(ctx, &store.ExperimentResult{
		TaskID:    res.TaskID,
		Test:      view.Kind(),
		Status:    res.Status,
		Payload:   payload,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		a.logger.Warn("failed to cache result", "task_id", res.TaskID, "error", err)
	}
}
