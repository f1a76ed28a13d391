// ABOUTME: Markdown assembly for experiment reports
// ABOUTME: Lays out summary, statistics, tables, plots and the optional raw result block

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/2389/mlra/internal/results"
	"github.com/2389/mlra/internal/settings"
)

func buildMarkdown(view results.View, opts settings.ReportingSettings, meta Meta) []byte {
	var b bytes.Buffer
	section := view.Section()
	outcome := view.Outcome()

	fmt.Fprintf(&b, "# %s\n\n", escapeInline(meta.Title))
	if meta.TaskID != "" {
		fmt.Fprintf(&b, "Task `%s`, generated %s\n\n", strings.ReplaceAll(meta.TaskID, "`", "'"), meta.GeneratedAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "Generated %s\n\n", meta.GeneratedAt.UTC().Format(time.RFC3339))
	}

	if outcome.Summary != "" || outcome.Conclusion != "" || meta.Explanation != "" {
		b.WriteString("## Summary\n\n")
		for _, para := range []string{outcome.Summary, outcome.Conclusion, meta.Explanation} {
			if p := strings.TrimSpace(para); p != "" {
				b.WriteString(p)
				b.WriteString("\n\n")
			}
		}
	}

	fmt.Fprintf(&b, "## %s\n\n", escapeInline(section.Title))
	if len(section.Fields) > 0 {
		rows := make([][]string, len(section.Fields))
		for i, f := range section.Fields {
			rows[i] = []string{f.Label, f.Value}
		}
		writeTable(&b, []string{"Statistic", "Value"}, rows)
	}
	if t := section.Table; t != nil && len(t.Columns) > 0 {
		if t.Title != "" {
			fmt.Fprintf(&b, "### %s\n\n", escapeInline(t.Title))
		}
		writeTable(&b, t.Columns, t.Rows)
	}

	if opts.IncludePlots && len(outcome.Plots) > 0 {
		b.WriteString("## Plots\n\n")
		for _, p := range outcome.Plots {
			fmt.Fprintf(&b, "- %s\n", escapeInline(p))
		}
		b.WriteString("\n")
	}

	if opts.IncludeCode && len(meta.Payload) > 0 {
		b.WriteString("## Raw Result\n\n```json\n")
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, meta.Payload, "", "  "); err == nil {
			b.Write(pretty.Bytes())
		} else {
			b.Write(meta.Payload)
		}
		b.WriteString("\n```\n")
	}

	return b.Bytes()
}

func writeTable(b *bytes.Buffer, columns []string, rows [][]string) {
	b.WriteString("|")
	for _, c := range columns {
		fmt.Fprintf(b, " %s |", escapeCell(c))
	}
	b.WriteString("\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString("|")
		for i := range columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprintf(b, " %s |", escapeCell(cell))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	"\n", " ",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escapeInline(s), "|", `\|`)
}
