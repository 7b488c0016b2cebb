// Package connector gathers candidate events from upstream sources. Each
// connector owns one upstream and degrades through layered fallbacks when
// the preferred access path fails.
package connector

import (
	"context"

	"github.com/safetymap/events-cli/internal/model"
)

// SourceConnector is implemented by every upstream gatherer.
type SourceConnector interface {
	// Name returns the source tag the connector emits candidates under.
	Name() string

	// Gather fetches the upstream's current event listings as raw
	// candidates. A connector only errors when every fallback layer
	// failed; partial results with a nil error are normal.
	Gather(ctx context.Context) ([]model.Candidate, error)
}

// dedupeByID drops candidates repeating a source ID within a single run.
// Upstreams list the same event on multiple surfaces (search results plus
// a calendar page), so first occurrence wins.
func dedupeByID(cands []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func strPtr(s string) *string { return &s }
