// Package report renders experiment reports.
//
// Generate lays out a decoded result as Markdown: a header with the task ID,
// a summary from the backend's conclusion and explanation, the statistics of
// the result view, and optionally its plots and the raw result JSON,
// following the reporting settings. html reports are converted with
// goldmark (GFM tables) and wrapped in an embedded page template. pdf
// reports cannot be rendered in-process; Generate returns their Markdown
// together with ErrUnsupportedFormat.
package report
