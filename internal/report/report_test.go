// ABOUTME: Tests for report generation
// ABOUTME: Golden Markdown layout, reporting toggles, HTML rendering, pdf fallback and artifact writing

package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mlra/internal/results"
	"github.com/2389/mlra/internal/settings"
)

const ttestPayload = `{"test":"ttest","hypothesis":"Dropout improves accuracy","t_statistic":2.5,"p_value":0.013,` +
	`"confidence_interval":[0.1,0.9],"conclusion":"Reject the null hypothesis.","plots":["plots/box.png"]}`

func decode(t *testing.T, payload string) results.View {
	t.Helper()
	v, err := results.Decode([]byte(payload))
	require.NoError(t, err)
	return v
}

func testMeta() Meta {
	return Meta{
		TaskID:      "task-42",
		Explanation: "The effect is moderate.",
		Payload:     []byte(`{"test":"ttest","p_value":0.013}`),
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestGenerate_MarkdownGolden(t *testing.T) {
	opts := settings.Defaults().Reporting
	opts.IncludeCode = true
	opts.IncludePlots = true

	r, err := Generate(decode(t, ttestPayload), opts, testMeta())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "ttest_report", r.Markdown)
}

func TestGenerate_TogglesOmitSections(t *testing.T) {
	opts := settings.Defaults().Reporting
	opts.IncludeCode = false
	opts.IncludePlots = false

	r, err := Generate(decode(t, ttestPayload), opts, testMeta())
	require.NoError(t, err)

	md := string(r.Markdown)
	assert.NotContains(t, md, "## Plots")
	assert.NotContains(t, md, "## Raw Result")
	assert.Contains(t, md, "## T-Test Result")
}

func TestGenerate_HTML(t *testing.T) {
	opts := settings.Defaults().Reporting
	require.Equal(t, FormatHTML, opts.Format)

	r, err := Generate(decode(t, `{"test":"anova","f_statistic":4.2,"p_value":0.02,"groups":[{"name":"a|b","values":[1,2]}]}`), opts, Meta{TaskID: "t1"})
	require.NoError(t, err)

	html := string(r.HTML)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Experiment Report</title>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>a|b</td>", "escaped pipe stays in one cell")
	assert.Equal(t, "text/html; charset=utf-8", r.ContentType())
	assert.Equal(t, "report-t1.html", r.Filename())
}

func TestGenerate_HTMLEscapesBackendText(t *testing.T) {
	opts := settings.Defaults().Reporting
	r, err := Generate(decode(t, `{"test":"ttest","hypothesis":"<script>alert(1)</script>"}`), opts, Meta{})
	require.NoError(t, err)
	assert.NotContains(t, string(r.HTML), "<script>")
}

func TestGenerate_PDFFallsBackToMarkdown(t *testing.T) {
	opts := settings.Defaults().Reporting
	opts.Format = FormatPDF

	r, err := Generate(decode(t, ttestPayload), opts, testMeta())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	require.NotNil(t, r)
	assert.NotEmpty(t, r.Markdown)
	assert.Empty(t, r.HTML)
	assert.Equal(t, "text/markdown; charset=utf-8", r.ContentType())
	assert.Equal(t, "report-task-42.md", r.Filename())
}

func TestGenerate_Unsupported(t *testing.T) {
	r, err := Generate(decode(t, `{"test":"bayesian"}`), settings.Defaults().Reporting, Meta{})
	require.NoError(t, err)
	assert.Contains(t, string(r.Markdown), "## "+results.UnsupportedTitle)
}

func TestGenerate_NilView(t *testing.T) {
	_, err := Generate(nil, settings.Defaults().Reporting, Meta{})
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")

	r, err := Generate(decode(t, ttestPayload), settings.Defaults().Reporting, Meta{TaskID: "../../etc/passwd"})
	require.NoError(t, err)

	path, err := Write(r, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path), "task id cannot escape the artifact dir")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.HTML, data)
}
