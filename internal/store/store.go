// Package store provides persistence for candidates and promoted resources,
// backed by Postgres or SQLite.
package store

import (
	"context"

	"github.com/safetymap/events-cli/internal/model"
)

// Key is the dedup projection of a stored record: the (source, source_id)
// natural key plus the normalized URL.
type Key struct {
	Source        model.Source
	SourceID      string
	NormalizedURL string
}

// CandidateFilter specifies criteria for listing candidates.
type CandidateFilter struct {
	Status model.Status
	Limit  int
	Offset int
}

// ResourceFilter specifies criteria for listing resources.
type ResourceFilter struct {
	Category string
	Enabled  *bool
	Limit    int
	Offset   int
}

// Store defines the persistence interface for the intake pipeline. All
// writes to the candidate and resource tables go through here; status
// changes are transition-checked against model.CanTransition.
type Store interface {
	// Candidates
	InsertCandidate(ctx context.Context, c *model.Candidate) error
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error)
	ListCandidateKeys(ctx context.Context) ([]Key, error)
	// SetScrapedText caches page context. Write-once: a no-op when the
	// candidate already has scraped text.
	SetScrapedText(ctx context.Context, id, text string) error
	// SaveEvaluation persists the evaluation block plus the standardized
	// scheduling/location fields, independent of any status transition.
	SaveEvaluation(ctx context.Context, c *model.Candidate) error
	SetStatus(ctx context.Context, id string, to model.Status, force bool) error
	MarkPromoted(ctx context.Context, id, resourceID string) error
	// CandidateWindow returns recent evaluated-or-promoted candidates
	// projected for the LLM dedup window, newest first.
	CandidateWindow(ctx context.Context, limit int) ([]model.WindowEntry, error)

	// Resources
	InsertResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListResources(ctx context.Context, filter ResourceFilter) ([]model.Resource, error)
	// ListEventResourceKeys returns dedup keys for resources in the
	// events category only.
	ListEventResourceKeys(ctx context.Context) ([]Key, error)
	// ResourceWindow returns recent event resources projected for the LLM
	// dedup window, newest first.
	ResourceWindow(ctx context.Context, limit int) ([]model.WindowEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
