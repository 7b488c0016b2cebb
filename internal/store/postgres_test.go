package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetymap/events-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresSetStatusChecksTransition(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	// promoted is terminal: the read happens, the update must not.
	mock.ExpectQuery(`SELECT status FROM candidates`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("promoted"))

	err := s.SetStatus(ctx, "c1", model.StatusPending, true)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetStatusValid(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT status FROM candidates`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(`UPDATE candidates SET status`).
		WithArgs("c1", "rejected").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetStatus(ctx, "c1", model.StatusRejected, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkPromotedMissing(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE candidates`).
		WithArgs("c1", "promoted", "r1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkPromoted(ctx, "c1", "r1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListCandidateKeys(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT source, source_id, normalized_url FROM candidates`).
		WillReturnRows(pgxmock.NewRows([]string{"source", "source_id", "normalized_url"}).
			AddRow("luma", "evt-abc", "lu.ma/aisafety2026").
			AddRow("forum", "p1", "lesswrong.com/events/p1"))

	keys, err := s.ListCandidateKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, model.SourceLuma, keys[0].Source)
	assert.Equal(t, "evt-abc", keys[0].SourceID)
	assert.Equal(t, "lu.ma/aisafety2026", keys[0].NormalizedURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResourceWindow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, title, event_date, location, organization, url\s+FROM resources`).
		WithArgs("events", 300).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "event_date", "location", "organization", "url"}).
			AddRow("r1", "AI Safety Summit", "2026-03-01", "London, UK", "AISI", "https://example.com/summit"))

	entries, err := s.ResourceWindow(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AI Safety Summit", entries[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
