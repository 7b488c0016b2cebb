// Package scrape fetches a candidate's page and reduces it to LLM-sized
// evaluation context: cleaned text plus opportunistic metadata hints.
package scrape

import (
	"context"
)

// Result holds scraped page context. Metadata hints supplement the
// candidate's claimed fields; they never overwrite them before the LLM
// has seen both.
type Result struct {
	Text        string
	Title       string // OpenGraph title, or <title> fallback
	Description string // OpenGraph/meta description

	// Hints from an Event-typed JSON-LD block, when present.
	EventDate    string
	EventEndDate string
	Location     string
}

// Scraper fetches a single URL and returns its evaluation context.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
}
