package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// Searcher runs queries for the TUI. docindex.Manager satisfies it.
type Searcher interface {
	SearchDocuments(ctx context.Context, raw string, topK int) ([]docindex.SearchResult, error)
}

type resultsMsg struct {
	query   string
	results []docindex.SearchResult
	elapsed time.Duration
	err     error
}

// SearchModel is the bubbletea model for interactive search. Enter runs
// the query; up and down move the selection; Esc or Ctrl+C quits.
type SearchModel struct {
	ctx      context.Context
	searcher Searcher
	topK     int
	styles   Styles
	title    string

	input   textinput.Model
	spinner spinner.Model

	searching bool
	query     string
	results   []docindex.SearchResult
	elapsed   time.Duration
	err       error
	selected  int
	width     int
}

// NewSearchModel creates the search model. title is shown in the header,
// typically the index path.
func NewSearchModel(ctx context.Context, s Searcher, topK int, styles Styles, title string) SearchModel {
	in := textinput.New()
	in.Placeholder = `rust AND "search library" OR tantiv*`
	in.Prompt = "> "
	in.CharLimit = 512
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return SearchModel{
		ctx:      ctx,
		searcher: s,
		topK:     topK,
		styles:   styles,
		title:    title,
		input:    in,
		spinner:  sp,
		width:    80,
	}
}

// Init implements tea.Model.
func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.searching {
				return m, nil
			}
			m.searching = true
			m.query = q
			return m, tea.Batch(m.spinner.Tick, m.searchCmd(q))
		case tea.KeyUp:
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case tea.KeyDown:
			if m.selected < len(m.results)-1 {
				m.selected++
			}
			return m, nil
		}

	case resultsMsg:
		m.searching = false
		m.results = msg.results
		m.elapsed = msg.elapsed
		m.err = msg.err
		m.selected = 0
		return m, nil

	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m SearchModel) searchCmd(q string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		results, err := m.searcher.SearchDocuments(m.ctx, q, m.topK)
		return resultsMsg{query: q, results: results, elapsed: time.Since(start), err: err}
	}
}

// Results returns the results of the last completed search.
func (m SearchModel) Results() []docindex.SearchResult {
	return m.results
}

// Selected returns the selected result, if any.
func (m SearchModel) Selected() (docindex.SearchResult, bool) {
	if m.selected < 0 || m.selected >= len(m.results) {
		return docindex.SearchResult{}, false
	}
	return m.results[m.selected], true
}

// View implements tea.Model.
func (m SearchModel) View() string {
	var b strings.Builder
	s := m.styles

	b.WriteString(s.Header.Render("docidx search"))
	if m.title != "" {
		b.WriteString(s.Dim.Render("  " + m.title))
	}
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.searching:
		b.WriteString(m.spinner.View() + " searching...\n")
	case m.err != nil:
		b.WriteString(s.Error.Render(errorLine(m.err)) + "\n")
	case m.query != "":
		b.WriteString(s.Label.Render(fmt.Sprintf("%d result(s) for %q in %s",
			len(m.results), m.query, m.elapsed.Round(time.Microsecond))) + "\n\n")
		b.WriteString(m.renderResults())
	}

	b.WriteString("\n" + s.Dim.Render("enter search • ↑/↓ select • esc quit"))
	return b.String()
}

func (m SearchModel) renderResults() string {
	var b strings.Builder
	snippetWidth := m.width - 24
	if snippetWidth < 20 {
		snippetWidth = 20
	}
	for i, r := range m.results {
		marker := "  "
		id := m.styles.ID.Render(r.Doc.ID)
		if i == m.selected {
			marker = m.styles.Selected.Render("▸ ")
			id = m.styles.Selected.Render(r.Doc.ID)
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, id, m.styles.Score.Render(fmt.Sprintf("%.4f", r.Score)))
		fmt.Fprintf(&b, "    %s\n", m.styles.Label.Render(Truncate(r.Doc.Text, snippetWidth)))
	}
	if sel, ok := m.Selected(); ok && len(m.results) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Panel.Render(Truncate(sel.Doc.Text, 4*snippetWidth)))
		b.WriteString("\n")
	}
	return b.String()
}

func errorLine(err error) string {
	var de *dxerrors.DocError
	if !errors.As(err, &de) {
		return err.Error()
	}
	msg := de.Message
	if off, ok := de.Details["offset"]; ok {
		msg = fmt.Sprintf("%s (at offset %s)", msg, off)
	}
	return fmt.Sprintf("[%s] %s", de.Code, msg)
}

// RunSearch runs the search TUI until the user quits.
func RunSearch(ctx context.Context, s Searcher, topK int, title string, in io.Reader, out io.Writer) error {
	m := NewSearchModel(ctx, s, topK, StylesFor(out), title)
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out), tea.WithAltScreen()}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	_, err := tea.NewProgram(m, opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
