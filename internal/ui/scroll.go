package ui

import (
	"fmt"

	"ratelab/internal/domain"
	"ratelab/internal/stats"
)

// scrollList is the scrollable demo content
type scrollList struct {
	items  []string
	offset int
	rows   int
}

func newScrollList(n int) *scrollList {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("Scroll item %d. Scroll to see the performance difference!", i+1)
	}
	return &scrollList{items: items, rows: 8}
}

func (s *scrollList) maxOffset() int {
	m := len(s.items) - s.rows
	if m < 0 {
		return 0
	}
	return m
}

// scrollBy moves the window and reports whether it moved
func (s *scrollList) scrollBy(delta int) bool {
	return s.scrollTo(s.offset + delta)
}

func (s *scrollList) scrollTo(offset int) bool {
	if offset > s.maxOffset() {
		offset = s.maxOffset()
	}
	if offset < 0 {
		offset = 0
	}
	if offset == s.offset {
		return false
	}
	s.offset = offset
	return true
}

func (s *scrollList) setRows(rows int) {
	if rows < 1 {
		rows = 1
	}
	s.rows = rows
	s.scrollTo(s.offset)
}

func (s *scrollList) position() domain.ScrollPosition {
	return domain.ScrollPosition{Offset: s.offset, Visible: s.rows, Total: len(s.items)}
}

// visibleItems checks every item against the window. Reading the scroll
// position is one query and each item check is another.
func visibleItems(pos domain.ScrollPosition) (visible, queries int) {
	queries = 1
	for i := 0; i < pos.Total; i++ {
		queries++
		if i >= pos.Offset && i < pos.Offset+pos.Visible {
			visible++
		}
	}
	return visible, queries
}

// handleScroll is the scroll handler both panes share. It records the
// progress the pane observed and publishes the work it did.
func (m *Model) handleScroll(pane domain.Pane, pos domain.ScrollPosition) {
	_, queries := visibleItems(pos)
	progress := pos.Progress()

	switch pane {
	case domain.PaneUnoptimized:
		m.progress.Unoptimized = progress
	case domain.PaneThrottled:
		m.progress.Throttled = progress
	}

	m.stats.Inc(stats.Key(pane, stats.MetricRuns))
	m.publish(domain.ScrollHandledEvent{Pane: pane, Position: pos, Queries: queries})
}

// onScroll feeds one scroll step to both handlers
func (m *Model) onScroll(moved bool) {
	if !moved {
		return
	}
	pos := m.scroll.position()
	m.stats.Inc(stats.ScrollSteps)

	m.handleScroll(domain.PaneUnoptimized, pos)
	if !m.throttler.Call(pos) {
		m.publish(domain.ScrollDroppedEvent{Pane: domain.PaneThrottled})
	}
}
