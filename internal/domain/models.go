package domain

// Item is a single search result
type Item struct {
	ID    int
	Title string
}

// Session names one of the two side-by-side search sessions
type Session string

const (
	SessionUnoptimized Session = "search.unoptimized"
	SessionDebounced   Session = "search.debounced"
)

// Pane names one of the two side-by-side scroll handlers
type Pane string

const (
	PaneUnoptimized Pane = "scroll.unoptimized"
	PaneThrottled   Pane = "scroll.throttled"
)

// ScrollPosition describes the scroll pane after a scroll step
type ScrollPosition struct {
	Offset  int // index of the first visible item
	Visible int // number of visible items
	Total   int // total number of items
}

// Progress returns how far the pane is scrolled, in percent
func (p ScrollPosition) Progress() int {
	scrollable := p.Total - p.Visible
	if scrollable <= 0 {
		return 100
	}
	offset := p.Offset
	if offset > scrollable {
		offset = scrollable
	}
	if offset < 0 {
		offset = 0
	}
	return (offset*100 + scrollable/2) / scrollable
}
