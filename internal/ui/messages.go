package ui

import (
	"time"

	"ratelab/internal/domain"
	"ratelab/internal/search"
)

// tickMsg is sent on a timer to refresh the counters
type tickMsg time.Time

// debouncedQueryMsg carries the query the debouncer settled on
type debouncedQueryMsg struct {
	query string
}

// searchResultMsg carries the response of a search request back to the loop
type searchResultMsg struct {
	session  domain.Session
	response search.Response
}

// pagerMsg contains the result of a pager command
type pagerMsg struct {
	err error
}

// clearStatusMsg clears the status line
type clearStatusMsg struct{}
