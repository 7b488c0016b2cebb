package gateway

import (
	"context"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/store"
)

// mockStore implements store.Store with overridable funcs. Only the
// methods the gateway touches have real behavior.
type mockStore struct {
	candidateKeys []store.Key
	resourceKeys  []store.Key
	inserted      []model.Candidate

	listCandidateKeysErr error
	insertErr            func(c *model.Candidate) error
}

func (m *mockStore) ListCandidateKeys(ctx context.Context) ([]store.Key, error) {
	return m.candidateKeys, m.listCandidateKeysErr
}

func (m *mockStore) ListEventResourceKeys(ctx context.Context) ([]store.Key, error) {
	return m.resourceKeys, nil
}

func (m *mockStore) InsertCandidate(ctx context.Context, c *model.Candidate) error {
	if m.insertErr != nil {
		if err := m.insertErr(c); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, *c)
	return nil
}

func (m *mockStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	return nil, nil
}

func (m *mockStore) ListCandidates(ctx context.Context, f store.CandidateFilter) ([]model.Candidate, error) {
	return nil, nil
}

func (m *mockStore) SetScrapedText(ctx context.Context, id, text string) error { return nil }

func (m *mockStore) SaveEvaluation(ctx context.Context, c *model.Candidate) error { return nil }

func (m *mockStore) SetStatus(ctx context.Context, id string, to model.Status, force bool) error {
	return nil
}

func (m *mockStore) MarkPromoted(ctx context.Context, id, resourceID string) error { return nil }

func (m *mockStore) CandidateWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	return nil, nil
}

func (m *mockStore) InsertResource(ctx context.Context, r *model.Resource) error { return nil }

func (m *mockStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	return nil, nil
}

func (m *mockStore) ListResources(ctx context.Context, f store.ResourceFilter) ([]model.Resource, error) {
	return nil, nil
}

func (m *mockStore) ResourceWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	return nil, nil
}

func (m *mockStore) Migrate(ctx context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }
