package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/store"
	"github.com/safetymap/events-cli/pkg/anthropic"
)

// memStore is a minimal in-memory store.Store for end-to-end runs.
type memStore struct {
	candidates map[string]*model.Candidate
	resources  map[string]*model.Resource
	seq        int
}

func newMemStore() *memStore {
	return &memStore{
		candidates: map[string]*model.Candidate{},
		resources:  map[string]*model.Resource{},
	}
}

func (m *memStore) InsertCandidate(ctx context.Context, c *model.Candidate) error {
	for _, ex := range m.candidates {
		if ex.Source == c.Source && ex.SourceID == c.SourceID {
			return eris.New("memstore: duplicate key")
		}
	}
	m.seq++
	c.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

func (m *memStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	c, ok := m.candidates[id]
	if !ok {
		return nil, eris.New("memstore: not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCandidates(ctx context.Context, f store.CandidateFilter) ([]model.Candidate, error) {
	var out []model.Candidate
	for _, c := range m.candidates {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) ListCandidateKeys(ctx context.Context) ([]store.Key, error) {
	var keys []store.Key
	for _, c := range m.candidates {
		keys = append(keys, store.Key{Source: c.Source, SourceID: c.SourceID, NormalizedURL: c.NormalizedURL})
	}
	return keys, nil
}

func (m *memStore) SetScrapedText(ctx context.Context, id, text string) error {
	c, ok := m.candidates[id]
	if !ok {
		return eris.New("memstore: not found")
	}
	if c.ScrapedText == nil {
		c.ScrapedText = &text
	}
	return nil
}

func (m *memStore) SaveEvaluation(ctx context.Context, c *model.Candidate) error {
	ex, ok := m.candidates[c.ID]
	if !ok {
		return eris.New("memstore: not found")
	}
	ex.Evaluation = c.Evaluation
	ex.EvaluatedAt = c.EvaluatedAt
	ex.EventDate = c.EventDate
	ex.EventEndDate = c.EventEndDate
	ex.EventTime = c.EventTime
	ex.Location = c.Location
	return nil
}

func (m *memStore) SetStatus(ctx context.Context, id string, to model.Status, force bool) error {
	c, ok := m.candidates[id]
	if !ok {
		return eris.New("memstore: not found")
	}
	if !model.CanTransition(c.Status, to, force) {
		return eris.Errorf("memstore: invalid transition %s -> %s", c.Status, to)
	}
	c.Status = to
	return nil
}

func (m *memStore) MarkPromoted(ctx context.Context, id, resourceID string) error {
	c, ok := m.candidates[id]
	if !ok {
		return eris.New("memstore: not found")
	}
	c.Status = model.StatusPromoted
	c.PromotedResourceID = &resourceID
	return nil
}

func (m *memStore) CandidateWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	return nil, nil
}

func (m *memStore) InsertResource(ctx context.Context, r *model.Resource) error {
	cp := *r
	m.resources[r.ID] = &cp
	return nil
}

func (m *memStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	r, ok := m.resources[id]
	if !ok {
		return nil, eris.New("memstore: not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListResources(ctx context.Context, f store.ResourceFilter) ([]model.Resource, error) {
	var out []model.Resource
	for _, r := range m.resources {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) ListEventResourceKeys(ctx context.Context) ([]store.Key, error) {
	var keys []store.Key
	for _, r := range m.resources {
		if r.Category != model.CategoryEvents {
			continue
		}
		keys = append(keys, store.Key{Source: r.Source, SourceID: r.SourceID, NormalizedURL: r.NormalizedURL})
	}
	return keys, nil
}

func (m *memStore) ResourceWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	var out []model.WindowEntry
	for _, r := range m.resources {
		out = append(out, model.WindowEntry{
			ID: r.ID, Title: r.Title, EventDate: r.EventDate,
			Location: r.Location, Organization: r.Organization, URL: r.URL,
		})
	}
	return out, nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }

func (m *memStore) Close() error { return nil }

// stubConnector returns fixed candidates or an error.
type stubConnector struct {
	name  string
	cands []model.Candidate
	err   error
	calls int
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Gather(ctx context.Context) ([]model.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Candidate, len(s.cands))
	copy(out, s.cands)
	return out, nil
}

// stubLLM answers every call with the same payload.
type stubLLM struct {
	response string
	calls    int
}

func (s *stubLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.calls++
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.response}},
	}, nil
}
