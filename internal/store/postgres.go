package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/safetymap/events-cli/internal/db"
	"github.com/safetymap/events-cli/internal/model"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool creates a PostgresStore over an existing pool. Used
// by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	evaluation           JSONB,
	status               TEXT NOT NULL DEFAULT 'pending',
	promoted_resource_id TEXT,
	evaluated_at         TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	is_online       BOOLEAN NOT NULL DEFAULT false,
	ev_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	friction        DOUBLE PRECISION NOT NULL DEFAULT 0,
	activity_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	enabled         BOOLEAN NOT NULL DEFAULT true,
	approval_status TEXT NOT NULL DEFAULT 'approved',
	source          TEXT NOT NULL DEFAULT '',
	source_id       TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
CREATE INDEX IF NOT EXISTS idx_candidates_normalized_url ON candidates(normalized_url);
CREATE INDEX IF NOT EXISTS idx_resources_category ON resources(category);
CREATE INDEX IF NOT EXISTS idx_resources_normalized_url ON resources(normalized_url);
`

// Migrate creates tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const candidateColumns = `id, source, source_id, title, description, url, normalized_url,
	source_org, location, event_date, event_end_date, event_time, submitted_by,
	scraped_text, evaluation, status, promoted_resource_id, evaluated_at,
	created_at, updated_at`

// InsertCandidate inserts a new candidate row. The caller owns dedup; a
// unique violation surfaces as an error.
func (s *PostgresStore) InsertCandidate(ctx context.Context, c *model.Candidate) error {
	evalJSON, err := marshalEvaluation(c.Evaluation)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO candidates (id, source, source_id, title, description, url, normalized_url,
			source_org, location, event_date, event_end_date, event_time, submitted_by,
			scraped_text, evaluation, status, promoted_resource_id, evaluated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		c.ID, string(c.Source), c.SourceID, c.Title, c.Description, c.URL, c.NormalizedURL,
		c.SourceOrg, c.Location, c.EventDate, c.EventEndDate, c.EventTime, c.SubmittedBy,
		c.ScrapedText, evalJSON, string(c.Status), c.PromotedResourceID, c.EvaluatedAt,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert candidate %s", c.Key())
	}
	return nil
}

// GetCandidate returns a candidate by id, or nil when absent.
func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)

	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get candidate %s", id)
	}
	return c, nil
}

// ListCandidates returns candidates matching the filter, oldest first.
func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var rows pgx.Rows
	var err error
	if filter.Status != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+candidateColumns+` FROM candidates WHERE status = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
			string(filter.Status), limit, filter.Offset)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+candidateColumns+` FROM candidates ORDER BY created_at, id LIMIT $1 OFFSET $2`,
			limit, filter.Offset)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListCandidateKeys returns the dedup key projection of every candidate.
func (s *PostgresStore) ListCandidateKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, source_id, normalized_url FROM candidates`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidate keys")
	}
	defer rows.Close()

	return scanKeys(rows)
}

// SetScrapedText caches page context, only when none is cached yet.
func (s *PostgresStore) SetScrapedText(ctx context.Context, id, text string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE candidates SET scraped_text = $2, updated_at = now() WHERE id = $1 AND scraped_text IS NULL`,
		id, text,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set scraped text %s", id)
	}
	return nil
}

// SaveEvaluation persists the evaluation block and the standardized
// scheduling/location fields from the candidate.
func (s *PostgresStore) SaveEvaluation(ctx context.Context, c *model.Candidate) error {
	evalJSON, err := marshalEvaluation(c.Evaluation)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	c.EvaluatedAt = &now

	_, err = s.pool.Exec(ctx, `
		UPDATE candidates SET
			evaluation = $2,
			event_date = $3,
			event_end_date = $4,
			event_time = $5,
			location = $6,
			evaluated_at = $7,
			updated_at = now()
		WHERE id = $1`,
		c.ID, evalJSON, c.EventDate, c.EventEndDate, c.EventTime, c.Location, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save evaluation %s", c.ID)
	}
	return nil
}

// SetStatus transitions a candidate. The current status is read and the
// transition is checked against model.CanTransition.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, to model.Status, force bool) error {
	var cur string
	err := s.pool.QueryRow(ctx, `SELECT status FROM candidates WHERE id = $1`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Errorf("postgres: candidate %s not found", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: read status %s", id)
	}

	if model.Status(cur) == to {
		return nil
	}
	if !model.CanTransition(model.Status(cur), to, force) {
		return eris.Errorf("postgres: invalid status transition %s -> %s for candidate %s", cur, to, id)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE candidates SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(to),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set status %s", id)
	}
	return nil
}

// MarkPromoted sets the terminal promoted status with the resource
// back-reference in a single statement.
func (s *PostgresStore) MarkPromoted(ctx context.Context, id, resourceID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE candidates SET
			status = $2,
			promoted_resource_id = $3,
			updated_at = now()
		WHERE id = $1 AND status <> $2`,
		id, string(model.StatusPromoted), resourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark promoted %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: candidate %s not found or already promoted", id)
	}
	return nil
}

// CandidateWindow returns recent evaluated-or-promoted candidates for the
// LLM dedup window, newest first.
func (s *PostgresStore) CandidateWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	if limit <= 0 {
		limit = 300
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, COALESCE(event_date, ''), location,
			COALESCE(evaluation->>'organization', source_org), url
		FROM candidates
		WHERE status IN ($1, $2)
		ORDER BY updated_at DESC
		LIMIT $3`,
		string(model.StatusEvaluated), string(model.StatusPromoted), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: candidate window")
	}
	defer rows.Close()

	return scanWindow(rows)
}

const resourceColumns = `id, category, title, description, url, normalized_url, location,
	event_date, event_end_date, event_time, event_type, organization, is_online,
	ev_score, friction, activity_score, enabled, approval_status,
	source, source_id, created_at, updated_at`

// InsertResource inserts a new resource row.
func (s *PostgresStore) InsertResource(ctx context.Context, r *model.Resource) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO resources (id, category, title, description, url, normalized_url, location,
			event_date, event_end_date, event_time, event_type, organization, is_online,
			ev_score, friction, activity_score, enabled, approval_status,
			source, source_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		r.ID, r.Category, r.Title, r.Description, r.URL, r.NormalizedURL, r.Location,
		r.EventDate, r.EventEndDate, r.EventTime, string(r.EventType), r.Organization, r.IsOnline,
		r.EVScore, r.Friction, r.ActivityScore, r.Enabled, r.ApprovalStatus,
		string(r.Source), r.SourceID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert resource %s", r.ID)
	}
	return nil
}

// GetResource returns a resource by id, or nil when absent.
func (s *PostgresStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)

	r, err := scanResource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get resource %s", id)
	}
	return r, nil
}

// ListResources returns resources matching the filter, newest first.
func (s *PostgresStore) ListResources(ctx context.Context, filter ResourceFilter) ([]model.Resource, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var conditions []string
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		conditions = append(conditions, fmt.Sprintf("enabled = $%d", len(args)))
	}

	query := `SELECT ` + resourceColumns + ` FROM resources`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resources")
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan resource")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListEventResourceKeys returns dedup keys for events-category resources.
func (s *PostgresStore) ListEventResourceKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, source_id, normalized_url FROM resources WHERE category = $1`,
		model.CategoryEvents)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list event resource keys")
	}
	defer rows.Close()

	return scanKeys(rows)
}

// ResourceWindow returns recent event resources for the LLM dedup window,
// newest first.
func (s *PostgresStore) ResourceWindow(ctx context.Context, limit int) ([]model.WindowEntry, error) {
	if limit <= 0 {
		limit = 300
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, event_date, location, organization, url
		FROM resources
		WHERE category = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		model.CategoryEvents, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: resource window")
	}
	defer rows.Close()

	return scanWindow(rows)
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row scanner) (*model.Candidate, error) {
	var c model.Candidate
	var source, status string
	var evalJSON []byte

	err := row.Scan(
		&c.ID, &source, &c.SourceID, &c.Title, &c.Description, &c.URL, &c.NormalizedURL,
		&c.SourceOrg, &c.Location, &c.EventDate, &c.EventEndDate, &c.EventTime, &c.SubmittedBy,
		&c.ScrapedText, &evalJSON, &status, &c.PromotedResourceID, &c.EvaluatedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = model.Source(source)
	c.Status = model.Status(status)

	if len(evalJSON) > 0 {
		var eval model.Evaluation
		if err := json.Unmarshal(evalJSON, &eval); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal evaluation for %s", c.ID)
		}
		c.Evaluation = &eval
	}

	return &c, nil
}

func scanResource(row scanner) (*model.Resource, error) {
	var r model.Resource
	var eventType, source string

	err := row.Scan(
		&r.ID, &r.Category, &r.Title, &r.Description, &r.URL, &r.NormalizedURL, &r.Location,
		&r.EventDate, &r.EventEndDate, &r.EventTime, &eventType, &r.Organization, &r.IsOnline,
		&r.EVScore, &r.Friction, &r.ActivityScore, &r.Enabled, &r.ApprovalStatus,
		&source, &r.SourceID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.EventType = model.EventType(eventType)
	r.Source = model.Source(source)
	return &r, nil
}

func scanKeys(rows pgx.Rows) ([]Key, error) {
	var keys []Key
	for rows.Next() {
		var k Key
		var source string
		if err := rows.Scan(&source, &k.SourceID, &k.NormalizedURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan key")
		}
		k.Source = model.Source(source)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanWindow(rows pgx.Rows) ([]model.WindowEntry, error) {
	var entries []model.WindowEntry
	for rows.Next() {
		var e model.WindowEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.EventDate, &e.Location, &e.Organization, &e.URL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan window entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalEvaluation(eval *model.Evaluation) ([]byte, error) {
	if eval == nil {
		return nil, nil
	}
	data, err := json.Marshal(eval)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal evaluation")
	}
	return data, nil
}

