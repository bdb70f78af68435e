package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ratelab/internal/search"
)

// Focus names the widget receiving key presses
type Focus int

const (
	FocusSearch Focus = iota
	FocusScroll
)

// ViewState contains all the state needed for rendering
type ViewState struct {
	Width  int
	Height int
	Focus  Focus

	Input       string // rendered search input
	Unoptimized search.Snapshot
	Debounced   search.Snapshot
	DebounceTag string // e.g. "300ms"

	ScrollItems []string
	ScrollTop   int
	ScrollRows  int
	Progress    ScrollProgress
	ThrottleTag string

	Counters      []CounterRow
	APICalls      APICalls
	StatusMessage string
	Help          string // rendered help
}

// ScrollProgress is the percent each scroll handler last observed
type ScrollProgress struct {
	Unoptimized int
	Throttled   int
}

// APICalls counts requests each search session sent
type APICalls struct {
	Unoptimized int64
	Debounced   int64
}

// Renderer handles all view rendering
type Renderer struct {
	styles        *Styles
	resultRender  *ResultRenderer
	scrollRender  *ScrollRenderer
	counterRender *CounterRenderer
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	styles := NewStyles()
	return &Renderer{
		styles:        styles,
		resultRender:  NewResultRenderer(styles),
		scrollRender:  NewScrollRenderer(styles),
		counterRender: NewCounterRenderer(styles),
	}
}

// Styles returns the styles used by the renderer
func (r *Renderer) Styles() *Styles { return r.styles }

// Render produces the complete view
func (r *Renderer) Render(state ViewState) string {
	content := &strings.Builder{}

	content.WriteString(r.styles.Title.Render("ratelab") + " " +
		r.styles.Dim.Render("debounced search and throttled scroll, side by side"))
	content.WriteString("\n")

	paneWidth := paneWidth(state.Width)

	// Search
	content.WriteString(r.styles.Section.Render("Search"))
	content.WriteString("\n")
	content.WriteString(state.Input)
	content.WriteString("\n")
	content.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		r.resultRender.Render("Unoptimized · every keystroke", state.Unoptimized, paneWidth, state.Focus == FocusSearch),
		" ",
		r.resultRender.Render("Debounced · "+state.DebounceTag, state.Debounced, paneWidth, state.Focus == FocusSearch),
	))
	content.WriteString("\n")

	// Scroll
	content.WriteString(r.styles.Section.Render("Scroll"))
	content.WriteString("\n")
	content.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		r.scrollRender.RenderList(state.ScrollItems, state.ScrollTop, state.ScrollRows, paneWidth, state.Focus == FocusScroll),
		" ",
		r.scrollRender.RenderProgress(state.Progress, state.ThrottleTag, paneWidth),
	))
	content.WriteString("\n")

	// Counters
	content.WriteString(r.styles.Section.Render("Counters"))
	content.WriteString("\n")
	content.WriteString(r.counterRender.Render(state.Counters))
	content.WriteString("\n")
	content.WriteString(Summary(state.APICalls))
	content.WriteString("\n")

	if state.StatusMessage != "" {
		content.WriteString(r.styles.Status.Render(state.StatusMessage))
		content.WriteString("\n")
	}

	content.WriteString(r.styles.Help.Render(state.Help))

	return r.styles.Main.Render(content.String())
}

// Summary is the one-line API call comparison
func Summary(c APICalls) string {
	return fmt.Sprintf("API calls  unoptimized %d · debounced %d", c.Unoptimized, c.Debounced)
}

func paneWidth(total int) int {
	w := (total - 10) / 2
	if w < 30 {
		w = 30
	}
	return w
}
