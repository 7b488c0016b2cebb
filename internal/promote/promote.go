// Package promote materializes an approved candidate into the public
// event listing.
package promote

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/store"
)

// defaultActivityScore is the freshness score assigned to a just-confirmed
// live event; the public listing decays it over time.
const defaultActivityScore = 0.8

// Writer creates Resources from evaluated Candidates. A Resource and a
// promoted status must never diverge: the resource row is written first,
// and any failure leaves the candidate untouched.
type Writer struct {
	store store.Store
}

func NewWriter(s store.Store) *Writer {
	return &Writer{store: s}
}

// Promote builds a Resource from the candidate's evaluation block, inserts
// it, then marks the candidate promoted with a back-reference.
func (w *Writer) Promote(ctx context.Context, c *model.Candidate) (*model.Resource, error) {
	if c.Evaluation == nil {
		return nil, eris.New("promote: candidate has no evaluation")
	}

	r := buildResource(c)

	if err := w.store.InsertResource(ctx, r); err != nil {
		return nil, eris.Wrap(err, "promote: insert resource")
	}

	if err := w.store.MarkPromoted(ctx, c.ID, r.ID); err != nil {
		return nil, eris.Wrap(err, "promote: mark candidate promoted")
	}

	zap.L().Info("candidate promoted",
		zap.String("candidate_id", c.ID),
		zap.String("resource_id", r.ID),
		zap.String("title", r.Title))
	return r, nil
}

// buildResource maps evaluation output onto a fresh Resource. Cleaned
// fields win over raw claims; organization falls back through the model's
// extraction, the upstream's claim, then the source tag.
func buildResource(c *model.Candidate) *model.Resource {
	ev := c.Evaluation

	title := ev.CleanTitle
	if title == "" {
		title = c.Title
	}
	desc := ev.CleanDescription
	if desc == "" {
		desc = c.Description
	}
	location := ev.Location
	if location == "" {
		location = c.Location
	}
	org := ev.Organization
	if org == "" {
		org = c.SourceOrg
	}
	if org == "" {
		org = string(c.Source)
	}

	r := &model.Resource{
		ID:             uuid.NewString(),
		Category:       model.CategoryEvents,
		Title:          title,
		Description:    desc,
		URL:            c.URL,
		NormalizedURL:  c.NormalizedURL,
		Location:       location,
		EventType:      ev.EventType,
		Organization:   org,
		IsOnline:       ev.IsOnline,
		EVScore:        ev.SuggestedEV,
		Friction:       ev.SuggestedFriction,
		ActivityScore:  defaultActivityScore,
		Enabled:        true,
		ApprovalStatus: model.ApprovalApproved,
		Source:         c.Source,
		SourceID:       c.SourceID,
	}

	r.EventDate = firstNonEmpty(ev.EventDate, deref(c.EventDate))
	r.EventEndDate = firstNonEmpty(ev.EventEndDate, deref(c.EventEndDate))
	r.EventTime = firstNonEmpty(ev.EventTime, deref(c.EventTime))

	return r
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
