package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratelab/internal/config"
	"ratelab/internal/domain"
	"ratelab/internal/eventbus"
	"ratelab/internal/search"
	"ratelab/internal/stats"
	"ratelab/internal/timing"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{} // when set, searches wait for it to close
}

func (f *fakeFetcher) Search(ctx context.Context, query string) ([]domain.Item, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if query == "boom" {
		return nil, errors.New("upstream down")
	}
	return []domain.Item{{ID: len(query), Title: "post about " + query}}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type harness struct {
	t       *testing.T
	m       *Model
	clock   *timing.ManualClock
	fetcher *fakeFetcher
	stats   *stats.Recorder
	bus     eventbus.EventBus

	mu   sync.Mutex
	sent []tea.Msg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   timing.NewManualClock(time.Unix(0, 0)),
		fetcher: &fakeFetcher{},
		bus:     eventbus.New(nil),
	}
	h.stats = stats.NewRecorder()
	detach := h.stats.Attach(h.bus)
	t.Cleanup(func() {
		detach()
		h.bus.Close()
		h.stats.Close()
	})

	m, err := NewModel(config.DefaultConfig(), h.bus, h.stats, h.fetcher, WithClock(h.clock))
	require.NoError(t, err)
	m.input.Cursor.SetMode(cursor.CursorStatic)
	m.send = func(msg tea.Msg) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, msg)
	}
	t.Cleanup(m.Close)
	h.m = m
	return h
}

// takeSent returns and clears the messages posted from timers
func (h *harness) takeSent() []tea.Msg {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.sent
	h.sent = nil
	return out
}

// drain waits for in-flight searches and feeds their responses back in,
// leaving other posted messages for takeSent
func (h *harness) drain() {
	for {
		h.m.Wait()

		h.mu.Lock()
		var results, rest []tea.Msg
		for _, msg := range h.sent {
			if _, ok := msg.(searchResultMsg); ok {
				results = append(results, msg)
			} else {
				rest = append(rest, msg)
			}
		}
		h.sent = rest
		h.mu.Unlock()

		if len(results) == 0 {
			return
		}
		for _, msg := range results {
			h.settle(msg)
		}
	}
}

// update feeds msg and returns the command it produced without running it
func (h *harness) update(msg tea.Msg) tea.Cmd {
	_, cmd := h.m.Update(msg)
	return cmd
}

// settle feeds msg and keeps running the resulting commands until none are
// left. Ticks are not expected here.
func (h *harness) settle(msg tea.Msg) {
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		queue = append(queue, run(h.update(next))...)
	}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.settle(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		h.drain()
	}
}

func (h *harness) press(t tea.KeyType) {
	h.settle(tea.KeyMsg{Type: t})
}

// run executes cmd, expanding batches
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func TestEveryKeystrokeSearchesButDebouncedSearchesOnce(t *testing.T) {
	h := newHarness(t)

	h.typeText("react")
	assert.Equal(t, []string{"r", "re", "rea", "reac", "react"}, h.fetcher.Calls())
	assert.Empty(t, h.takeSent(), "debouncer must not fire before the delay")

	h.clock.Advance(299 * time.Millisecond)
	assert.Empty(t, h.takeSent())

	h.clock.Advance(time.Millisecond)
	sent := h.takeSent()
	require.Equal(t, []tea.Msg{debouncedQueryMsg{query: "react"}}, sent)
	h.settle(sent[0])
	h.drain()

	assert.Len(t, h.fetcher.Calls(), 6)
	assert.Equal(t, search.PhaseResolved, h.m.debounced.Snapshot().Phase)
	assert.Equal(t, "post about react", h.m.debounced.Snapshot().Results[0].Title)
	assert.Equal(t, "post about react", h.m.unoptimized.Snapshot().Results[0].Title)

	assert.Equal(t, int64(5), h.stats.Get(stats.Keystrokes))
	assert.Equal(t, int64(5), h.stats.Get(stats.Key(domain.SessionUnoptimized, stats.MetricRuns)))
	assert.Equal(t, int64(1), h.stats.Get(stats.Key(domain.SessionDebounced, stats.MetricRuns)))

	require.Eventually(t, func() bool {
		return strings.Contains(h.m.View(), "API calls  unoptimized 5 · debounced 1")
	}, time.Second, 5*time.Millisecond)
}

func TestOutOfOrderResponsesKeepLatestQuery(t *testing.T) {
	h := newHarness(t)

	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	h.m.Wait()

	responses := map[string]tea.Msg{}
	for _, msg := range h.takeSent() {
		res := msg.(searchResultMsg)
		responses[res.response.Query] = msg
	}
	require.Len(t, responses, 2)

	// "re" answers first, then the superseded "r"
	h.settle(responses["re"])
	h.settle(responses["r"])

	snap := h.m.unoptimized.Snapshot()
	assert.Equal(t, search.PhaseResolved, snap.Phase)
	assert.Equal(t, "re", snap.Query)
	assert.Equal(t, []domain.Item{{ID: 2, Title: "post about re"}}, snap.Results)

	require.Eventually(t, func() bool {
		return h.stats.Get(stats.Key(domain.SessionUnoptimized, stats.MetricDiscarded)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClearingQueryMakesNoRequest(t *testing.T) {
	h := newHarness(t)

	h.typeText("r")
	h.press(tea.KeyBackspace)
	h.clock.Advance(300 * time.Millisecond)
	for _, msg := range h.takeSent() {
		h.settle(msg)
	}

	assert.Equal(t, []string{"r"}, h.fetcher.Calls())
	for _, snap := range []search.Snapshot{h.m.unoptimized.Snapshot(), h.m.debounced.Snapshot()} {
		assert.Equal(t, search.PhaseResolved, snap.Phase)
		assert.Empty(t, snap.Results)
	}
}

func TestFailedSearchShowsError(t *testing.T) {
	h := newHarness(t)

	h.typeText("boom")
	snap := h.m.unoptimized.Snapshot()
	assert.Equal(t, search.PhaseFailed, snap.Phase)
	assert.Empty(t, snap.Results)
	assert.Contains(t, h.m.View(), "upstream down")
}

func TestScrollIsThrottled(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyTab)

	for i := 0; i < 5; i++ {
		h.press(tea.KeyDown)
	}
	assert.Equal(t, int64(5), h.stats.Get(stats.ScrollSteps))
	assert.Equal(t, int64(5), h.stats.Get(stats.Key(domain.PaneUnoptimized, stats.MetricRuns)))
	assert.Equal(t, int64(1), h.stats.Get(stats.Key(domain.PaneThrottled, stats.MetricRuns)))

	// the throttled pane still shows the first step
	pos := domain.ScrollPosition{Offset: 1, Visible: h.m.scroll.rows, Total: 50}
	assert.Equal(t, pos.Progress(), h.m.progress.Throttled)
	assert.Greater(t, h.m.progress.Unoptimized, h.m.progress.Throttled)

	h.clock.Advance(100 * time.Millisecond)
	h.press(tea.KeyDown)
	assert.Equal(t, int64(2), h.stats.Get(stats.Key(domain.PaneThrottled, stats.MetricRuns)))
	assert.Equal(t, h.m.progress.Unoptimized, h.m.progress.Throttled)

	require.Eventually(t, func() bool {
		return h.stats.Get(stats.Key(domain.PaneThrottled, stats.MetricDropped)) == 4 &&
			h.stats.Get(stats.Key(domain.PaneUnoptimized, stats.MetricQueries)) == 6*51
	}, time.Second, 5*time.Millisecond)
}

func TestScrollAtEdgeIsNotAStep(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyTab)

	h.press(tea.KeyUp)
	h.press(tea.KeyHome)
	assert.Zero(t, h.stats.Get(stats.ScrollSteps))

	h.press(tea.KeyEnd)
	assert.Equal(t, 100, h.m.progress.Unoptimized)
	assert.Equal(t, 100, h.m.progress.Throttled)
}

func TestMouseWheelScrollsFromSearchFocus(t *testing.T) {
	h := newHarness(t)

	h.settle(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.Equal(t, wheelStep, h.m.scroll.offset)
	assert.Equal(t, int64(1), h.stats.Get(stats.ScrollSteps))

	h.settle(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionRelease})
	assert.Equal(t, wheelStep, h.m.scroll.offset)
}

func TestQuitKeyDependsOnFocus(t *testing.T) {
	h := newHarness(t)

	h.typeText("q")
	assert.Equal(t, "q", h.m.input.Value())

	h.press(tea.KeyTab)
	cmd := h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestQuitDisposesTimersAndSessions(t *testing.T) {
	h := newHarness(t)

	h.fetcher.gate = make(chan struct{})
	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	// the in-flight request is cancelled, so Wait returns with the gate shut
	h.m.Wait()

	// the debounced search never fires
	h.clock.Advance(time.Second)
	assert.Zero(t, h.clock.Pending())

	// the in-flight response is dropped
	sent := h.takeSent()
	require.Len(t, sent, 1)
	require.IsType(t, searchResultMsg{}, sent[0])
	before := h.m.unoptimized.Snapshot()
	h.settle(sent[0])
	assert.Equal(t, before, h.m.unoptimized.Snapshot())
	assert.Equal(t, search.PhasePending, before.Phase)
}

func TestResetClearsCounters(t *testing.T) {
	h := newHarness(t)
	h.typeText("go")
	require.Equal(t, int64(2), h.stats.Get(stats.Keystrokes))

	cmd := h.update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.NotNil(t, cmd)
	assert.Zero(t, h.stats.Get(stats.Keystrokes))
	assert.Equal(t, "go", h.m.input.Value(), "reset must not type into the input")
	assert.Contains(t, h.m.View(), "counters reset")

	h.settle(clearStatusMsg{})
	assert.NotContains(t, h.m.View(), "counters reset")
}

type fakeTerminal struct {
	released, restored int
}

func (f *fakeTerminal) ReleaseTerminal() error { f.released++; return nil }
func (f *fakeTerminal) RestoreTerminal() error { f.restored++; return nil }

func TestPagerShowsSessions(t *testing.T) {
	h := newHarness(t)
	h.typeText("go")

	term := &fakeTerminal{}
	var shown string
	h.m.pager = &PagerOps{program: term, run: func(content string) error {
		shown = content
		return nil
	}}

	msgs := run(h.update(tea.KeyMsg{Type: tea.KeyCtrlO}))
	require.Equal(t, []tea.Msg{pagerMsg{}}, msgs)
	assert.Equal(t, 1, term.released)
	assert.Equal(t, 1, term.restored)
	assert.Contains(t, shown, "== search.unoptimized  [resolved] \"go\"")
	assert.Contains(t, shown, "#2    post about go")
	assert.Contains(t, shown, stats.Keystrokes)
}

func TestPagerWithoutProgramReportsError(t *testing.T) {
	h := newHarness(t)

	msgs := run(h.update(tea.KeyMsg{Type: tea.KeyCtrlO}))
	require.Len(t, msgs, 1)
	assert.NotNil(t, h.update(msgs[0]), "status is cleared later")
	assert.Contains(t, h.m.View(), "pager failed: program not set")
}

func TestWindowResizeClampsScrollRows(t *testing.T) {
	h := newHarness(t)

	h.settle(tea.WindowSizeMsg{Width: 120, Height: 20})
	assert.Equal(t, minScrollRows, h.m.scroll.rows)

	h.settle(tea.WindowSizeMsg{Width: 120, Height: 200})
	assert.Equal(t, maxScrollRows, h.m.scroll.rows)
}

func TestVisibleItemsQueriesEveryItem(t *testing.T) {
	visible, queries := visibleItems(domain.ScrollPosition{Offset: 45, Visible: 8, Total: 50})
	assert.Equal(t, 5, visible)
	assert.Equal(t, 51, queries, "one position read plus one check per item")
}

func TestKeystrokeDoesNotBlockEventLoop(t *testing.T) {
	h := newHarness(t)
	h.fetcher.gate = make(chan struct{})
	h.m.input.Cursor.SetMode(cursor.CursorBlink)

	start := time.Now()
	cmd := h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// The program runs a returned command on its own goroutine but
	// evaluates the children of a batch on the loop, so none may come back
	if cmd != nil {
		out := make(chan tea.Msg, 1)
		go func() { out <- cmd() }()
		select {
		case msg := <-out:
			_, isBatch := msg.(tea.BatchMsg)
			assert.False(t, isBatch, "keystroke returned a batch")
		case <-time.After(50 * time.Millisecond):
		}
	}
	assert.Equal(t, search.PhasePending, h.m.unoptimized.Snapshot().Phase)

	close(h.fetcher.gate)
	h.drain()
	assert.Equal(t, search.PhaseResolved, h.m.unoptimized.Snapshot().Phase)
}

func TestInitDoesNotBatchTheTick(t *testing.T) {
	h := newHarness(t)

	msg := h.m.Init()()
	_, isBatch := msg.(tea.BatchMsg)
	assert.False(t, isBatch)
}

func TestGroupedScrollKeysStepOnceEach(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyTab)

	h.settle(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("jjjk")})
	assert.Equal(t, 2, h.m.scroll.offset)
	assert.Equal(t, int64(4), h.stats.Get(stats.ScrollSteps))
	assert.Equal(t, int64(4), h.stats.Get(stats.Key(domain.PaneUnoptimized, stats.MetricRuns)))
	assert.Equal(t, int64(1), h.stats.Get(stats.Key(domain.PaneThrottled, stats.MetricRuns)))

	cmd := h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("jq")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 3, h.m.scroll.offset)
}

func TestGroupedRunesCountEveryKeystroke(t *testing.T) {
	h := newHarness(t)

	h.settle(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("go")})
	h.drain()
	assert.Equal(t, int64(2), h.stats.Get(stats.Keystrokes))
	assert.Equal(t, int64(1), h.stats.Get(stats.Key(domain.SessionUnoptimized, stats.MetricRuns)))
	assert.Equal(t, []string{"go"}, h.fetcher.Calls())
}
