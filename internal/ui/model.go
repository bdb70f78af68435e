package ui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ratelab/internal/config"
	"ratelab/internal/domain"
	"ratelab/internal/eventbus"
	"ratelab/internal/search"
	"ratelab/internal/stats"
	"ratelab/internal/timing"
	"ratelab/internal/ui/views"
)

const (
	wheelStep      = 3
	chromeHeight   = 32 // rows used by everything except the scroll list
	minScrollRows  = 3
	maxScrollRows  = 10
	statusDuration = 3 * time.Second
)

// Model represents the UI state
type Model struct {
	cfg    *config.Config
	bus    eventbus.EventBus
	stats  *stats.Recorder
	logger *slog.Logger
	keys   keyMap

	width    int
	height   int
	help     help.Model
	input    textinput.Model
	focus    views.Focus
	renderer *views.Renderer

	// Search sessions, one per path
	unoptimized *search.Controller
	debounced   *search.Controller
	debouncer   *timing.Debouncer[string]

	// Scroll handlers, one per path
	scroll    *scrollList
	throttler *timing.Throttler[domain.ScrollPosition]
	progress  views.ScrollProgress

	statusMessage string
	closeOnce     sync.Once
	inflight      sync.WaitGroup

	// Program reference for terminal management
	program *tea.Program
	pager   *PagerOps
	send    func(tea.Msg)
}

// Option configures a Model
type Option func(*options)

type options struct {
	clock  timing.Clock
	logger *slog.Logger
	ctx    context.Context
}

// WithClock drives the debouncer and throttler from c
func WithClock(c timing.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithContext cancels in-flight searches when ctx is done
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// NewModel creates a new UI model
func NewModel(cfg *config.Config, bus eventbus.EventBus, rec *stats.Recorder, fetcher search.Fetcher, opts ...Option) (*Model, error) {
	o := options{
		clock:  timing.SystemClock(),
		logger: slog.New(slog.DiscardHandler),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	input := textinput.New()
	input.Placeholder = "Search posts…"
	input.Prompt = "› "
	input.Focus()

	m := &Model{
		cfg:      cfg,
		bus:      bus,
		stats:    rec,
		logger:   o.logger,
		keys:     newKeyMap(),
		help:     help.New(),
		input:    input,
		focus:    views.FocusSearch,
		renderer: views.NewRenderer(),
		scroll:   newScrollList(cfg.Scroll.Items),
	}

	sessionOpts := []search.Option{
		search.WithBus(bus),
		search.WithLogger(o.logger),
		search.WithContext(o.ctx),
	}
	m.unoptimized = search.NewController(domain.SessionUnoptimized, fetcher, sessionOpts...)
	m.debounced = search.NewController(domain.SessionDebounced, fetcher, sessionOpts...)

	var err error
	m.debouncer, err = timing.NewDebouncer(cfg.Search.Debounce.Duration, func(q string) {
		m.sendMsg(debouncedQueryMsg{query: q})
	}, timing.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	// The throttled handler runs inside Call, on the event loop
	m.throttler, err = timing.NewThrottler(cfg.Scroll.Throttle.Duration, func(pos domain.ScrollPosition) {
		m.handleScroll(domain.PaneThrottled, pos)
	}, timing.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// SetProgram sets the program reference for terminal management
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
	m.pager = NewPagerOps(p)
	m.send = p.Send
}

// Init returns an initial command. Children of a batch are evaluated on
// the event loop, so the tick goes through a sequence instead.
func (m *Model) Init() tea.Cmd {
	return tea.Sequence(textinput.Blink, tick())
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(20, msg.Width-12)
		m.scroll.setRows(min(max(msg.Height-chromeHeight, minScrollRows), maxScrollRows))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case debouncedQueryMsg:
		m.stats.Inc(stats.Key(domain.SessionDebounced, stats.MetricRuns))
		m.search(m.debounced, msg.query)
		return m, nil

	case searchResultMsg:
		m.session(msg.session).Deliver(msg.response)
		return m, nil

	case tickMsg:
		// Counters fed by the bus change off the loop; re-render periodically
		return m, tick()

	case pagerMsg:
		if msg.err != nil {
			m.logger.Warn("pager failed", "error", msg.err)
			m.statusMessage = "pager failed: " + msg.err.Error()
			return m, clearStatusLater()
		}
		return m, nil

	case clearStatusMsg:
		m.statusMessage = ""
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		return m, m.toggleFocus()

	case key.Matches(msg, m.keys.Reset):
		m.stats.Reset()
		m.statusMessage = "counters reset"
		return m, clearStatusLater()

	case key.Matches(msg, m.keys.Pager):
		return m, m.openPager()
	}

	if m.focus == views.FocusSearch {
		return m, m.updateInput(msg)
	}

	// Keys typed faster than the terminal is read arrive as one message
	if msg.Type == tea.KeyRunes && len(msg.Runes) > 1 {
		for _, r := range msg.Runes {
			if cmd := m.handleListKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: msg.Alt}); cmd != nil {
				return m, cmd
			}
		}
		return m, nil
	}
	return m, m.handleListKey(msg)
}

// handleListKey handles a single key while the scroll pane has focus
func (m *Model) handleListKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.QuitList):
		m.Close()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.onScroll(m.scroll.scrollBy(-1))
	case key.Matches(msg, m.keys.Down):
		m.onScroll(m.scroll.scrollBy(1))
	case key.Matches(msg, m.keys.PageUp):
		m.onScroll(m.scroll.scrollBy(-m.scroll.rows))
	case key.Matches(msg, m.keys.PageDown):
		m.onScroll(m.scroll.scrollBy(m.scroll.rows))
	case key.Matches(msg, m.keys.Home):
		m.onScroll(m.scroll.scrollTo(0))
	case key.Matches(msg, m.keys.End):
		m.onScroll(m.scroll.scrollTo(m.scroll.maxOffset()))
	}
	return nil
}

// handleMouse scrolls on wheel events whatever has focus
func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.onScroll(m.scroll.scrollBy(-wheelStep))
	case tea.MouseButtonWheelDown:
		m.onScroll(m.scroll.scrollBy(wheelStep))
	}
	return m, nil
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == views.FocusSearch {
		m.focus = views.FocusScroll
		m.input.Blur()
		return nil
	}
	m.focus = views.FocusSearch
	return m.input.Focus()
}

// updateInput feeds a key to the search input and, when the query changed,
// to both search paths
func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	before := m.input.Value()

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	query := m.input.Value()
	if query == before {
		return cmd
	}

	keystrokes := 1
	if msg.Type == tea.KeyRunes {
		keystrokes = len(msg.Runes)
	}
	m.onQueryChanged(query, keystrokes)
	return cmd
}

// onQueryChanged runs the unoptimized search right away and leaves the
// other to the debouncer
func (m *Model) onQueryChanged(query string, keystrokes int) {
	m.stats.Add(stats.Keystrokes, int64(keystrokes))
	m.stats.Inc(stats.Key(domain.SessionUnoptimized, stats.MetricRuns))

	m.debouncer.Call(query)
	m.search(m.unoptimized, query)
}

// search issues query on c. The request runs on its own goroutine and the
// response comes back through the event loop.
func (m *Model) search(c *search.Controller, query string) {
	req := c.Search(query)
	if req == nil {
		return
	}
	session := c.Session()

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.sendMsg(searchResultMsg{session: session, response: req.Execute()})
	}()
}

// Wait blocks until every search started by the model has posted its
// response. Close cancels them, so after Close this returns promptly.
func (m *Model) Wait() {
	m.inflight.Wait()
}

func (m *Model) session(s domain.Session) *search.Controller {
	if s == domain.SessionDebounced {
		return m.debounced
	}
	return m.unoptimized
}

// sendMsg posts msg into the event loop from another goroutine
func (m *Model) sendMsg(msg tea.Msg) {
	if m.send == nil {
		m.logger.Debug("dropping message, program not set", "msg", msg)
		return
	}
	m.send(msg)
}

func (m *Model) publish(e domain.DomainEvent) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// Close cancels pending timers and in-flight searches. Safe to call more
// than once.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		m.debouncer.Dispose()
		m.throttler.Dispose()
		m.unoptimized.Dispose()
		m.debounced.Dispose()
		m.logger.Info("ui closed")
	})
}

// View renders the UI
func (m *Model) View() string {
	uSnap := m.unoptimized.Snapshot()
	dSnap := m.debounced.Snapshot()

	return m.renderer.Render(views.ViewState{
		Width:       m.width,
		Height:      m.height,
		Focus:       m.focus,
		Input:       m.input.View(),
		Unoptimized: uSnap,
		Debounced:   dSnap,
		DebounceTag: m.debouncer.Delay().String(),
		ScrollItems: m.scroll.items,
		ScrollTop:   m.scroll.offset,
		ScrollRows:  m.scroll.rows,
		Progress:    m.progress,
		ThrottleTag: m.throttler.Window().String(),
		Counters:    m.counterRows(),
		APICalls: views.APICalls{
			Unoptimized: m.stats.Get(stats.Key(domain.SessionUnoptimized, stats.MetricAPICalls)),
			Debounced:   m.stats.Get(stats.Key(domain.SessionDebounced, stats.MetricAPICalls)),
		},
		StatusMessage: m.statusMessage,
		Help:          m.help.View(m.keys),
	})
}

func (m *Model) counterRows() []views.CounterRow {
	get := m.stats.Get
	u, d := domain.SessionUnoptimized, domain.SessionDebounced
	pu, pt := domain.PaneUnoptimized, domain.PaneThrottled
	keystrokes := get(stats.Keystrokes)
	steps := get(stats.ScrollSteps)

	return []views.CounterRow{
		{Label: "Keystrokes", Unoptimized: keystrokes, Optimized: keystrokes},
		{Label: "Search handler runs", Unoptimized: get(stats.Key(u, stats.MetricRuns)), Optimized: get(stats.Key(d, stats.MetricRuns))},
		{Label: "API calls", Unoptimized: get(stats.Key(u, stats.MetricAPICalls)), Optimized: get(stats.Key(d, stats.MetricAPICalls))},
		{Label: "Responses discarded", Unoptimized: get(stats.Key(u, stats.MetricDiscarded)), Optimized: get(stats.Key(d, stats.MetricDiscarded))},
		{Label: "Failed requests", Unoptimized: get(stats.Key(u, stats.MetricFailed)), Optimized: get(stats.Key(d, stats.MetricFailed))},
		{Label: "Scroll steps", Unoptimized: steps, Optimized: steps},
		{Label: "Scroll handler runs", Unoptimized: get(stats.Key(pu, stats.MetricRuns)), Optimized: get(stats.Key(pt, stats.MetricRuns))},
		{Label: "Scroll steps dropped", Unoptimized: 0, Optimized: get(stats.Key(pt, stats.MetricDropped))},
		{Label: "Visibility queries", Unoptimized: get(stats.Key(pu, stats.MetricQueries)), Optimized: get(stats.Key(pt, stats.MetricQueries))},
	}
}

// tick returns a command that sends a tick message after a delay
func tick() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func clearStatusLater() tea.Cmd {
	return tea.Tick(statusDuration, func(time.Time) tea.Msg { return clearStatusMsg{} })
}
