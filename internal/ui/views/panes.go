package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ratelab/internal/search"
)

const resultRows = 8

// ResultRenderer renders one search session
type ResultRenderer struct {
	styles *Styles
}

func NewResultRenderer(styles *Styles) *ResultRenderer {
	return &ResultRenderer{styles: styles}
}

// Render draws the session's phase and up to resultRows results
func (r *ResultRenderer) Render(title string, snap search.Snapshot, width int, focused bool) string {
	lines := []string{r.styles.PaneTitle.Render(title)}
	lines = append(lines, r.statusLine(snap))

	for i, item := range snap.Results {
		if i == resultRows {
			lines = append(lines, r.styles.Dim.Render(fmt.Sprintf("… %d more", len(snap.Results)-resultRows)))
			break
		}
		row := fmt.Sprintf("#%-3d %s", item.ID, item.Title)
		if snap.Phase == search.PhasePending {
			row = r.styles.Dim.Render(row)
		}
		lines = append(lines, row)
	}

	return paneStyle(r.styles, focused).
		Width(width).
		Render(clip(lines, width-2))
}

func (r *ResultRenderer) statusLine(snap search.Snapshot) string {
	switch snap.Phase {
	case search.PhasePending:
		return r.styles.Loading.Render(fmt.Sprintf("searching %q…", snap.Query))
	case search.PhaseFailed:
		msg := "request failed"
		if snap.Err != nil {
			msg = snap.Err.Error()
		}
		return r.styles.Error.Render("error: " + msg)
	case search.PhaseResolved:
		if snap.Query == "" {
			return r.styles.Dim.Render("type to search")
		}
		if len(snap.Results) == 0 {
			return r.styles.Dim.Render(fmt.Sprintf("no results for %q", snap.Query))
		}
		return r.styles.Success.Render(fmt.Sprintf("%d results for %q", len(snap.Results), snap.Query))
	default:
		if snap.Query != "" {
			return r.styles.Dim.Render("cancelled")
		}
		return r.styles.Dim.Render("type to search")
	}
}

// ScrollRenderer renders the scroll list and the progress each handler saw
type ScrollRenderer struct {
	styles *Styles
}

func NewScrollRenderer(styles *Styles) *ScrollRenderer {
	return &ScrollRenderer{styles: styles}
}

// RenderList draws rows items starting at top
func (r *ScrollRenderer) RenderList(items []string, top, rows, width int, focused bool) string {
	if top < 0 {
		top = 0
	}
	if rows < 0 {
		rows = 0
	}
	end := top + rows
	if end > len(items) {
		end = len(items)
	}
	if top > end {
		top = end
	}

	lines := append(make([]string, 0, rows), items[top:end]...)
	for len(lines) < rows {
		lines = append(lines, "")
	}

	return paneStyle(r.styles, focused).
		Width(width).
		Render(clip(lines, width-2))
}

// RenderProgress draws one bar per scroll handler
func (r *ScrollRenderer) RenderProgress(p ScrollProgress, throttleTag string, width int) string {
	barWidth := width - 8
	if barWidth < 10 {
		barWidth = 10
	}
	lines := []string{
		r.styles.PaneTitle.Render("Unoptimized · every step"),
		r.bar(p.Unoptimized, barWidth),
		"",
		r.styles.PaneTitle.Render("Throttled · " + throttleTag),
		r.bar(p.Throttled, barWidth),
	}
	return r.styles.Pane.Width(width).Render(strings.Join(lines, "\n"))
}

func (r *ScrollRenderer) bar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return r.styles.Bar.Render(strings.Repeat("█", filled)) +
		r.styles.BarEmpty.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3d%%", pct)
}

// CounterRow compares one metric between the two paths
type CounterRow struct {
	Label       string
	Unoptimized int64
	Optimized   int64
}

// CounterRenderer renders the counters table
type CounterRenderer struct {
	styles *Styles
}

func NewCounterRenderer(styles *Styles) *CounterRenderer {
	return &CounterRenderer{styles: styles}
}

func (r *CounterRenderer) Render(rows []CounterRow) string {
	labelWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
	}

	var b strings.Builder
	b.WriteString(r.styles.Dim.Render(fmt.Sprintf("%-*s  %12s  %12s", labelWidth, "", "unoptimized", "optimized")))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(r.styles.Label.Render(fmt.Sprintf("%-*s", labelWidth, row.Label)))
		b.WriteString("  ")
		b.WriteString(r.styles.Value.Render(fmt.Sprintf("%12d", row.Unoptimized)))
		b.WriteString("  ")
		b.WriteString(r.styles.Value.Render(fmt.Sprintf("%12d", row.Optimized)))
	}
	return b.String()
}

func paneStyle(s *Styles, focused bool) lipgloss.Style {
	if focused {
		return s.PaneFocused
	}
	return s.Pane
}

// clip cuts each line to width cells
func clip(lines []string, width int) string {
	if width < 1 {
		width = 1
	}
	clipper := lipgloss.NewStyle().MaxWidth(width)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = clipper.Render(l)
	}
	return strings.Join(out, "\n")
}
