package evaluator

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/scrape"
	"github.com/safetymap/events-cli/internal/store"
	"github.com/safetymap/events-cli/pkg/anthropic"
)

// mockStore records the calls the evaluator makes. Unused interface
// methods come from the embedded nil Store and panic if reached.
type mockStore struct {
	store.Store

	saved       []model.Candidate
	statuses    map[string]model.Status
	scrapedText map[string]string
	resources   []model.Resource
	promoted    map[string]string

	resourceWindow  []model.WindowEntry
	candidateWindow []model.WindowEntry

	saveErr           error
	insertResourceErr error
	setStatusErr      error
}

func newMockStore() *mockStore {
	return &mockStore{
		statuses:    map[string]model.Status{},
		scrapedText: map[string]string{},
		promoted:    map[string]string{},
	}
}

func (m *mockStore) SaveEvaluation(ctx context.Context, c *model.Candidate) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, *c)
	return nil
}

func (m *mockStore) SetStatus(ctx context.Context, id string, to model.Status, force bool) error {
	if m.setStatusErr != nil {
		return m.setStatusErr
	}
	m.statuses[id] = to
	return nil
}

func (m *mockStore) SetScrapedText(ctx context.Context, id, text string) error {
	if _, done := m.scrapedText[id]; done {
		return nil
	}
	m.scrapedText[id] = text
	return nil
}

func (m *mockStore) MarkPromoted(ctx context.Context, id, resourceID string) error {
	m.promoted[id] = resourceID
	m.statuses[id] = model.StatusPromoted
	return nil
}

func (m *mockStore) InsertResource(ctx context.Context, r *model.Resource) error {
	if m.insertResourceErr != nil {
		return m.insertResourceErr
	}
	m.resources = append(m.resources, *r)
	return nil
}

func (m *mockStore) ResourceWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	return m.resourceWindow, nil
}

func (m *mockStore) CandidateWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	return m.candidateWindow, nil
}

// mockLLM returns canned responses in order, recording prompts.
type mockLLM struct {
	responses []string
	calls     int
	prompts   []string
	err       error
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(req.Messages) > 0 {
		m.prompts = append(m.prompts, req.Messages[0].Content)
	}
	if m.calls >= len(m.responses) {
		return nil, eris.New("mock llm: no response configured")
	}
	text := m.responses[m.calls]
	m.calls++
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

// mockScraper serves fixed results per URL.
type mockScraper struct {
	results map[string]string
	calls   int
	err     error
}

func (m *mockScraper) Name() string { return "mock" }

func (m *mockScraper) Scrape(ctx context.Context, url string) (*scrape.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &scrape.Result{Text: m.results[url]}, nil
}
