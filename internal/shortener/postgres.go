package shortener

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkforge/shortener/internal/errx"
	"github.com/linkforge/shortener/internal/idgen"
)

// dbtx is the subset of *pgxpool.Pool the store needs. Kept internal so
// tests can substitute fakes.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements LinkStore and ClickCounter against PostgreSQL.
// Uniqueness and increment atomicity are enforced by the database, not
// application logic: the short_code unique constraint arbitrates concurrent
// inserts, and clicks are bumped with a single upsert statement.
type Postgres struct {
	db  dbtx
	ids idgen.Generator
}

// PostgresConfig holds configuration for the Postgres store.
type PostgresConfig struct {
	IDGenerator idgen.Generator
}

// NewPostgres creates a Postgres store backed by the given connection pool.
func NewPostgres(db dbtx, config *PostgresConfig) *Postgres {
	if config == nil {
		config = &PostgresConfig{}
	}

	// Default: UUID v7 (good for DB locality). Retry once by default inside idgen.NewV7.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &Postgres{
		db:  db,
		ids: config.IDGenerator,
	}
}

func isShortCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" &&
		pgErr.ConstraintName == "links_short_code_unique"
}

func isLinkForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503"
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	case isLinkForeignKeyViolation(err):
		return errx.E(op, errx.NotFound, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

/***************
 * LinkStore
 ***************/

const putLinkSQL = `
INSERT INTO links (id, short_code, original_url)
VALUES ($1, $2, $3)
RETURNING id, short_code, original_url, created_at`

// Put atomically inserts a new link. A concurrent insert of the same code
// surfaces as errx.Conflict with no partial write.
func (p *Postgres) Put(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.postgres.Put"

	// Generate row ID if not provided
	if link.ID == uuid.Nil {
		id, err := p.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	var out Link
	err := p.db.QueryRow(ctx, putLinkSQL, link.ID, link.ShortCode, link.OriginalURL).
		Scan(&out.ID, &out.ShortCode, &out.OriginalURL, &out.CreatedAt)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return out, nil
}

const getLinkSQL = `
SELECT id, short_code, original_url, created_at
FROM links
WHERE short_code = $1`

// Get looks up a link by its short code.
func (p *Postgres) Get(ctx context.Context, code string) (Link, error) {
	const op = "shortener.postgres.Get"

	var out Link
	err := p.db.QueryRow(ctx, getLinkSQL, code).
		Scan(&out.ID, &out.ShortCode, &out.OriginalURL, &out.CreatedAt)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return out, nil
}

const listLinksSQL = `
SELECT l.id, l.short_code, l.original_url, l.created_at, COALESCE(c.clicks, 0)
FROM links l
LEFT JOIN link_clicks c ON c.short_code = l.short_code
ORDER BY l.created_at DESC, l.id DESC`

// List returns all links newest-first, each joined with its click count in a
// single query. Links without a counter row report zero clicks.
func (p *Postgres) List(ctx context.Context) ([]LinkStats, error) {
	const op = "shortener.postgres.List"

	rows, err := p.db.Query(ctx, listLinksSQL)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	defer rows.Close()

	var out []LinkStats
	for rows.Next() {
		var ls LinkStats
		if err := rows.Scan(&ls.ID, &ls.ShortCode, &ls.OriginalURL, &ls.CreatedAt, &ls.Clicks); err != nil {
			return nil, mapStoreError(op, err)
		}
		out = append(out, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(op, err)
	}
	return out, nil
}

/***************
 * ClickCounter
 ***************/

const incrementClicksSQL = `
INSERT INTO link_clicks (short_code, clicks)
VALUES ($1, 1)
ON CONFLICT (short_code) DO UPDATE SET clicks = link_clicks.clicks + 1
RETURNING clicks`

// Increment bumps the click count for a code in one atomic upsert, creating
// the counter row with count 1 on first resolution. Unknown codes fail the
// foreign key and map to errx.NotFound.
func (p *Postgres) Increment(ctx context.Context, code string) (int64, error) {
	const op = "shortener.postgres.Increment"

	var clicks int64
	err := p.db.QueryRow(ctx, incrementClicksSQL, code).Scan(&clicks)
	if err != nil {
		return 0, mapStoreError(op, err)
	}
	return clicks, nil
}

const getClicksSQL = `
SELECT clicks FROM link_clicks WHERE short_code = $1`

// Count returns the click count for a code, 0 if no counter row exists.
func (p *Postgres) Count(ctx context.Context, code string) (int64, error) {
	const op = "shortener.postgres.Count"

	var clicks int64
	err := p.db.QueryRow(ctx, getClicksSQL, code).Scan(&clicks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, mapStoreError(op, err)
	}
	return clicks, nil
}

const aggregateSQL = `
SELECT
	(SELECT COUNT(*) FROM links),
	COALESCE((SELECT SUM(clicks) FROM link_clicks), 0)`

// Aggregate computes the totals in a single statement so both values come
// from one snapshot; totals never regress between observations of committed
// state.
func (p *Postgres) Aggregate(ctx context.Context) (AggregateStats, error) {
	const op = "shortener.postgres.Aggregate"

	var stats AggregateStats
	err := p.db.QueryRow(ctx, aggregateSQL).Scan(&stats.TotalLinks, &stats.TotalClicks)
	if err != nil {
		return AggregateStats{}, mapStoreError(op, err)
	}
	return stats, nil
}
