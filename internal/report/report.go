// ABOUTME: Builds experiment reports from decoded results and the reporting settings
// ABOUTME: Emits Markdown always and HTML via goldmark when the configured format is html

package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/mlra/internal/results"
	"github.com/2389/mlra/internal/settings"
)

// Report formats.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// ErrUnsupportedFormat is returned for formats that cannot be rendered
// in-process. The Markdown source of the report is still returned.
var ErrUnsupportedFormat = errors.New("report format not supported")

//go:embed templates/report.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html"))

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Meta describes the run a report is about.
type Meta struct {
	TaskID      string
	Title       string // defaults to "Experiment Report"
	Explanation string // narrative from the backend, if any
	Payload     []byte // raw result JSON, included when code is requested
	GeneratedAt time.Time
}

// Report is a rendered report.
type Report struct {
	TaskID   string
	Format   string
	Markdown []byte
	HTML     []byte // empty unless Format is html
}

// ContentType returns the MIME type of the richest rendering available.
func (r *Report) ContentType() string {
	if len(r.HTML) > 0 {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Body returns the richest rendering available.
func (r *Report) Body() []byte {
	if len(r.HTML) > 0 {
		return r.HTML
	}
	return r.Markdown
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename is the artifact name for this report.
func (r *Report) Filename() string {
	id := strings.Trim(unsafeName.ReplaceAllString(r.TaskID, "_"), "._")
	if id == "" {
		id = "untitled"
	}
	ext := ".md"
	if len(r.HTML) > 0 {
		ext = ".html"
	}
	return "report-" + id + ext
}

// Generate builds a report for view according to opts. For formats other
// than html it returns the Markdown report together with ErrUnsupportedFormat.
func Generate(view results.View, opts settings.ReportingSettings, meta Meta) (*Report, error) {
	if view == nil {
		return nil, fmt.Errorf("generating report: no result")
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	if meta.Title == "" {
		meta.Title = "Experiment Report"
	}

	r := &Report{
		TaskID:   meta.TaskID,
		Format:   opts.Format,
		Markdown: buildMarkdown(view, opts, meta),
	}

	switch opts.Format {
	case FormatHTML:
		html, err := renderHTML(meta.Title, r.Markdown)
		if err != nil {
			return nil, err
		}
		r.HTML = html
		return r, nil
	default:
		return r, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

func renderHTML(title string, md []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return page.Bytes(), nil
}

// Write stores the report under dir and returns the file path.
func Write(r *Report, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}

	path := filepath.Join(dir, r.Filename())
	if err := os.WriteFile(path, r.Body(), 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
