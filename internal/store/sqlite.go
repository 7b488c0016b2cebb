package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/safetymap/events-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// local development and tests; Postgres is the production backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id                   TEXT PRIMARY KEY,
	source               TEXT NOT NULL,
	source_id            TEXT NOT NULL,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	url                  TEXT NOT NULL DEFAULT '',
	normalized_url       TEXT NOT NULL DEFAULT '',
	source_org           TEXT NOT NULL DEFAULT '',
	location             TEXT NOT NULL DEFAULT '',
	event_date           TEXT,
	event_end_date       TEXT,
	event_time           TEXT,
	submitted_by         TEXT NOT NULL DEFAULT '',
	scraped_text         TEXT,
	evaluation           TEXT,
	status               TEXT NOT NULL DEFAULT 'pending',
	promoted_resource_id TEXT,
	evaluated_at         DATETIME,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL,
	UNIQUE (source, source_id)
);

CREATE TABLE IF NOT EXISTS resources (
	id              TEXT PRIMARY KEY,
	category        TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	normalized_url  TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	event_date      TEXT NOT NULL DEFAULT '',
	event_end_date  TEXT NOT NULL DEFAULT '',
	event_time      TEXT NOT NULL DEFAULT '',
	event_type      TEXT NOT NULL DEFAULT '',
	organization    TEXT NOT NULL DEFAULT '',
	is_online       INTEGER NOT NULL DEFAULT 0,
	ev_score        REAL NOT NULL DEFAULT 0,
	friction        REAL NOT NULL DEFAULT 0,
	activity_score  REAL NOT NULL DEFAULT 0,
	enabled         INTEGER NOT NULL DEFAULT 1,
	approval_status TEXT NOT NULL DEFAULT 'approved',
	source          TEXT NOT NULL DEFAULT '',
	source_id       TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
CREATE INDEX IF NOT EXISTS idx_candidates_normalized_url ON candidates(normalized_url);
CREATE INDEX IF NOT EXISTS idx_resources_category ON resources(category);
CREATE INDEX IF NOT EXISTS idx_resources_normalized_url ON resources(normalized_url);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertCandidate(ctx context.Context, c *model.Candidate) error {
	evalJSON, err := marshalEvaluation(c.Evaluation)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, source, source_id, title, description, url, normalized_url,
			source_org, location, event_date, event_end_date, event_time, submitted_by,
			scraped_text, evaluation, status, promoted_resource_id, evaluated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Source), c.SourceID, c.Title, c.Description, c.URL, c.NormalizedURL,
		c.SourceOrg, c.Location, c.EventDate, c.EventEndDate, c.EventTime, c.SubmittedBy,
		c.ScrapedText, nullableBytes(evalJSON), string(c.Status), c.PromotedResourceID, c.EvaluatedAt,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert candidate %s", c.Key())
	}
	return nil
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)

	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get candidate %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var rows *sql.Rows
	var err error
	if filter.Status != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+candidateColumns+` FROM candidates WHERE status = ? ORDER BY created_at, id LIMIT ? OFFSET ?`,
			string(filter.Status), limit, filter.Offset)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+candidateColumns+` FROM candidates ORDER BY created_at, id LIMIT ? OFFSET ?`,
			limit, filter.Offset)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListCandidateKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, source_id, normalized_url FROM candidates`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidate keys")
	}
	defer rows.Close()

	return scanKeysSQL(rows)
}

func (s *SQLiteStore) SetScrapedText(ctx context.Context, id, text string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET scraped_text = ?, updated_at = ? WHERE id = ? AND scraped_text IS NULL`,
		text, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set scraped text %s", id)
	}
	return nil
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, c *model.Candidate) error {
	evalJSON, err := marshalEvaluation(c.Evaluation)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	c.EvaluatedAt = &now

	_, err = s.db.ExecContext(ctx, `
		UPDATE candidates SET
			evaluation = ?,
			event_date = ?,
			event_end_date = ?,
			event_time = ?,
			location = ?,
			evaluated_at = ?,
			updated_at = ?
		WHERE id = ?`,
		nullableBytes(evalJSON), c.EventDate, c.EventEndDate, c.EventTime, c.Location, now, now, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save evaluation %s", c.ID)
	}
	return nil
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, to model.Status, force bool) error {
	var cur string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM candidates WHERE id = ?`, id).Scan(&cur)
	if err == sql.ErrNoRows {
		return eris.Errorf("sqlite: candidate %s not found", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: read status %s", id)
	}

	if model.Status(cur) == to {
		return nil
	}
	if !model.CanTransition(model.Status(cur), to, force) {
		return eris.Errorf("sqlite: invalid status transition %s -> %s for candidate %s", cur, to, id)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE candidates SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set status %s", id)
	}
	return nil
}

func (s *SQLiteStore) MarkPromoted(ctx context.Context, id, resourceID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE candidates SET
			status = ?,
			promoted_resource_id = ?,
			updated_at = ?
		WHERE id = ? AND status <> ?`,
		string(model.StatusPromoted), resourceID, time.Now().UTC(), id, string(model.StatusPromoted),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark promoted %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark promoted %s", id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: candidate %s not found or already promoted", id)
	}
	return nil
}

func (s *SQLiteStore) CandidateWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	if limit <= 0 {
		limit = 300
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(event_date, ''), location,
			COALESCE(json_extract(evaluation, '$.organization'), source_org), url
		FROM candidates
		WHERE status IN (?, ?)
		ORDER BY updated_at DESC
		LIMIT ?`,
		string(model.StatusEvaluated), string(model.StatusPromoted), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: candidate window")
	}
	defer rows.Close()

	return scanWindowSQL(rows)
}

func (s *SQLiteStore) InsertResource(ctx context.Context, r *model.Resource) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, category, title, description, url, normalized_url, location,
			event_date, event_end_date, event_time, event_type, organization, is_online,
			ev_score, friction, activity_score, enabled, approval_status,
			source, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Category, r.Title, r.Description, r.URL, r.NormalizedURL, r.Location,
		r.EventDate, r.EventEndDate, r.EventTime, string(r.EventType), r.Organization, r.IsOnline,
		r.EVScore, r.Friction, r.ActivityScore, r.Enabled, r.ApprovalStatus,
		string(r.Source), r.SourceID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert resource %s", r.ID)
	}
	return nil
}

func (s *SQLiteStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)

	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get resource %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListResources(ctx context.Context, filter ResourceFilter) ([]model.Resource, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var conditions []string
	var args []any
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Enabled != nil {
		conditions = append(conditions, "enabled = ?")
		args = append(args, *filter.Enabled)
	}

	query := `SELECT ` + resourceColumns + ` FROM resources`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resources")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resource")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListEventResourceKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, source_id, normalized_url FROM resources WHERE category = ?`,
		model.CategoryEvents)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list event resource keys")
	}
	defer rows.Close()

	return scanKeysSQL(rows)
}

func (s *SQLiteStore) ResourceWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	if limit <= 0 {
		limit = 300
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, event_date, location, organization, url
		FROM resources
		WHERE category = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		model.CategoryEvents, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: resource window")
	}
	defer rows.Close()

	return scanWindowSQL(rows)
}

func scanKeysSQL(rows *sql.Rows) ([]Key, error) {
	var keys []Key
	for rows.Next() {
		var k Key
		var source string
		if err := rows.Scan(&source, &k.SourceID, &k.NormalizedURL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan key")
		}
		k.Source = model.Source(source)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanWindowSQL(rows *sql.Rows) ([]model.WindowEntry, error) {
	var entries []model.WindowEntry
	for rows.Next() {
		var e model.WindowEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.EventDate, &e.Location, &e.Organization, &e.URL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan window entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// nullableBytes converts an empty JSON payload to NULL.
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

