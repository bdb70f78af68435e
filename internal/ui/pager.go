package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noborus/ov/oviewer"

	"ratelab/internal/search"
	"ratelab/internal/stats"
)

// terminal is the part of *tea.Program the pager needs
type terminal interface {
	ReleaseTerminal() error
	RestoreTerminal() error
}

// PagerOps shows long content in the ov pager
type PagerOps struct {
	program terminal
	run     func(content string) error
}

// NewPagerOps creates a pager bound to program
func NewPagerOps(program terminal) *PagerOps {
	return &PagerOps{program: program, run: runOviewer}
}

// Show hands the terminal to ov until the user closes it
func (p *PagerOps) Show(content string) error {
	if p == nil || p.program == nil {
		return fmt.Errorf("program not set")
	}

	// Release terminal control to run ov
	if err := p.program.ReleaseTerminal(); err != nil {
		return err
	}

	// Ensure terminal is restored even if ov fails
	defer func() {
		// Small delay to ensure ov has fully exited before restoring terminal
		time.Sleep(100 * time.Millisecond)
		_ = p.program.RestoreTerminal()
	}()

	return p.run(content)
}

func runOviewer(content string) error {
	root, err := oviewer.NewRoot(strings.NewReader(content))
	if err != nil {
		return err
	}

	// Don't write the document back to our screen on exit
	config := oviewer.NewConfig()
	config.IsWriteOnExit = false
	config.IsWriteOriginal = false
	root.SetConfig(config)

	return root.Run()
}

// pagerContent renders both sessions and the counters as plain text
func pagerContent(sessions []search.Snapshot, counters []stats.Counter) string {
	var b strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&b, "== %s  [%s] %q\n", s.Session, s.Phase, s.Query)
		if s.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", s.Err)
		}
		for _, item := range s.Results {
			fmt.Fprintf(&b, "#%-4d %s\n", item.ID, item.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("== counters\n")
	for _, c := range counters {
		fmt.Fprintf(&b, "%-36s %d\n", c.Name, c.Value)
	}
	return b.String()
}

// openPager returns a command that shows the sessions in ov
func (m *Model) openPager() tea.Cmd {
	content := pagerContent(
		[]search.Snapshot{m.unoptimized.Snapshot(), m.debounced.Snapshot()},
		m.stats.Snapshot(),
	)
	pager := m.pager
	return func() tea.Msg {
		return pagerMsg{err: pager.Show(content)}
	}
}
