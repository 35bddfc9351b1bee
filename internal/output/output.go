// Package output provides consistent CLI output: status lines, search
// results and JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/docidx/internal/ui"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer that colours output only on a terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: ui.StylesFor(out)}
}

// NewPlain creates a Writer that never colours output.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: ui.NoColorStyles()}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✅"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("⚠️")+" ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("❌"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Results prints ranked search results, one block per hit.
func (w *Writer) Results(query string, results []docindex.SearchResult, snippetWidth int) {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(w.out, "No results found for %q\n", query)
		return
	}

	noun := "results"
	if len(results) == 1 {
		noun = "result"
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d %s for %q", len(results), noun, query)))
	for i, r := range results {
		_, _ = fmt.Fprintf(w.out, "%2d. %s  %s\n",
			i+1,
			w.styles.ID.Render(r.Doc.ID),
			w.styles.Score.Render(fmt.Sprintf("score=%.4f", r.Score)))
		if snippetWidth > 0 {
			_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Label.Render(ui.Truncate(r.Doc.Text, snippetWidth)))
		}
	}
}

// Document prints a single document.
func (w *Writer) Document(doc docindex.Document) {
	_, _ = fmt.Fprintf(w.out, "%s   %s\n", w.styles.Label.Render("id:"), w.styles.ID.Render(doc.ID))
	_, _ = fmt.Fprintf(w.out, "%s\n", w.styles.Label.Render("text:"))
	for _, line := range strings.Split(doc.Text, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
}

// Stats prints index statistics as aligned key/value lines.
func (w *Writer) Stats(st docindex.Stats) {
	rows := [][2]string{
		{"path", st.Path},
		{"backend", string(st.Backend)},
		{"state", st.State},
		{"documents", fmt.Sprint(st.Documents)},
		{"generation", fmt.Sprint(st.Generation)},
		{"staged", fmt.Sprint(st.Staged)},
	}
	for _, r := range rows {
		key := r[0] + ":"
		_, _ = fmt.Fprintf(w.out, "%s%s %s\n", w.styles.Label.Render(key), strings.Repeat(" ", 11-len(key)), r[1])
	}
}
