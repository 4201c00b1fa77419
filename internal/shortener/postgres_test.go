package shortener

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkforge/shortener/internal/errx"
)

/***************
 * Fakes
 ***************/

// fakeDB implements dbtx for testing without a live database.
type fakeDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.queryRowFunc != nil {
		return f.queryRowFunc(ctx, sql, args...)
	}
	return fakeRow{err: errors.New("QueryRow not configured")}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryFunc != nil {
		return f.queryFunc(ctx, sql, args...)
	}
	return nil, errors.New("Query not configured")
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.execFunc != nil {
		return f.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, errors.New("Exec not configured")
}

// fakeRow implements pgx.Row. It either fails with err or assigns values
// positionally into the scan targets.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignScanTargets(r.values, dest)
}

// fakeRows implements pgx.Rows over an in-memory result set.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignScanTargets(r.rows[r.idx-1], dest)
}

func assignScanTargets(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan target count mismatch: %d values, %d targets", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			d2, ok := v.(uuid.UUID)
			if !ok {
				return fmt.Errorf("column %d: expected uuid.UUID, got %T", i, v)
			}
			*d = d2
		case *string:
			*d = v.(string)
		case *int64:
			*d = v.(int64)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("column %d: unsupported scan target %T", i, dest[i])
		}
	}
	return nil
}

func uniqueViolation() *pgconn.PgError {
	return &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "links_short_code_unique",
	}
}

func foreignKeyViolation() *pgconn.PgError {
	return &pgconn.PgError{Code: "23503"}
}

/***************
 * LinkStore Tests
 ***************/

func TestPostgres_Put(t *testing.T) {
	t.Run("inserts link and generates row ID", func(t *testing.T) {
		id := uuid.New()
		now := time.Now()

		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				if len(args) != 3 {
					t.Fatalf("len(args) = %d, want 3", len(args))
				}
				rowID, ok := args[0].(uuid.UUID)
				if !ok || rowID == uuid.Nil {
					t.Errorf("args[0] = %v, want generated uuid", args[0])
				}
				if args[1] != "Ab3dK9x" {
					t.Errorf("args[1] = %v, want Ab3dK9x", args[1])
				}
				return fakeRow{values: []any{id, "Ab3dK9x", "https://example.com", now}}
			},
		}

		store := NewPostgres(db, nil)

		created, err := store.Put(context.Background(), Link{
			ShortCode:   "Ab3dK9x",
			OriginalURL: "https://example.com",
		})
		if err != nil {
			t.Fatalf("Put() unexpected error: %v", err)
		}
		if created.ID != id {
			t.Errorf("ID = %v, want %v", created.ID, id)
		}
		if created.CreatedAt != now {
			t.Errorf("CreatedAt = %v, want %v", created.CreatedAt, now)
		}
	})

	t.Run("preserves caller-provided row ID", func(t *testing.T) {
		id := uuid.New()

		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				if args[0] != id {
					t.Errorf("args[0] = %v, want %v", args[0], id)
				}
				return fakeRow{values: []any{id, "Ab3dK9x", "https://example.com", time.Now()}}
			},
		}

		store := NewPostgres(db, nil)

		if _, err := store.Put(context.Background(), Link{ID: id, ShortCode: "Ab3dK9x", OriginalURL: "https://example.com"}); err != nil {
			t.Fatalf("Put() unexpected error: %v", err)
		}
	})

	t.Run("maps unique violation to Conflict", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{err: uniqueViolation()}
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.Put(context.Background(), Link{ShortCode: "taken", OriginalURL: "https://example.com"})
		if errx.KindOf(err) != errx.Conflict {
			t.Errorf("error kind = %v, want %v", errx.KindOf(err), errx.Conflict)
		}
	})

	t.Run("maps other errors to Unavailable", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{err: errors.New("connection refused")}
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.Put(context.Background(), Link{ShortCode: "Ab3dK9x", OriginalURL: "https://example.com"})
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("error kind = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
	})
}

func TestPostgres_Get(t *testing.T) {
	t.Run("returns link by code", func(t *testing.T) {
		id := uuid.New()
		now := time.Now()

		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				if args[0] != "Ab3dK9x" {
					t.Errorf("args[0] = %v, want Ab3dK9x", args[0])
				}
				return fakeRow{values: []any{id, "Ab3dK9x", "https://example.com", now}}
			},
		}

		store := NewPostgres(db, nil)

		link, err := store.Get(context.Background(), "Ab3dK9x")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if link.OriginalURL != "https://example.com" {
			t.Errorf("OriginalURL = %q, want %q", link.OriginalURL, "https://example.com")
		}
	})

	t.Run("maps no rows to NotFound", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{err: pgx.ErrNoRows}
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.Get(context.Background(), "missing")
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("error kind = %v, want %v", errx.KindOf(err), errx.NotFound)
		}
	})
}

func TestPostgres_List(t *testing.T) {
	t.Run("returns links joined with click counts", func(t *testing.T) {
		now := time.Now()

		db := &fakeDB{
			queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
				return &fakeRows{rows: [][]any{
					{uuid.New(), "new0001", "https://example.com/new", now, int64(0)},
					{uuid.New(), "old0001", "https://example.com/old", now.Add(-time.Hour), int64(42)},
				}}, nil
			},
		}

		store := NewPostgres(db, nil)

		stats, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(stats) != 2 {
			t.Fatalf("len(stats) = %d, want 2", len(stats))
		}
		if stats[0].Clicks != 0 {
			t.Errorf("stats[0].Clicks = %d, want 0", stats[0].Clicks)
		}
		if stats[1].Clicks != 42 {
			t.Errorf("stats[1].Clicks = %d, want 42", stats[1].Clicks)
		}
	})

	t.Run("returns empty result for empty catalog", func(t *testing.T) {
		db := &fakeDB{
			queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
				return &fakeRows{}, nil
			},
		}

		store := NewPostgres(db, nil)

		stats, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(stats) != 0 {
			t.Errorf("len(stats) = %d, want 0", len(stats))
		}
	})

	t.Run("maps query errors to Unavailable", func(t *testing.T) {
		db := &fakeDB{
			queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
				return nil, errors.New("connection refused")
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.List(context.Background())
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("error kind = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
	})

	t.Run("surfaces iteration errors", func(t *testing.T) {
		db := &fakeDB{
			queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
				return &fakeRows{err: errors.New("stream interrupted")}, nil
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.List(context.Background())
		if err == nil {
			t.Fatal("List() expected error, got nil")
		}
	})
}

/***************
 * ClickCounter Tests
 ***************/

func TestPostgres_Increment(t *testing.T) {
	t.Run("returns new count", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				if args[0] != "Ab3dK9x" {
					t.Errorf("args[0] = %v, want Ab3dK9x", args[0])
				}
				return fakeRow{values: []any{int64(5)}}
			},
		}

		store := NewPostgres(db, nil)

		clicks, err := store.Increment(context.Background(), "Ab3dK9x")
		if err != nil {
			t.Fatalf("Increment() unexpected error: %v", err)
		}
		if clicks != 5 {
			t.Errorf("clicks = %d, want 5", clicks)
		}
	})

	t.Run("maps foreign key violation to NotFound", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{err: foreignKeyViolation()}
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.Increment(context.Background(), "missing")
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("error kind = %v, want %v", errx.KindOf(err), errx.NotFound)
		}
	})
}

func TestPostgres_Count(t *testing.T) {
	t.Run("returns stored count", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{values: []any{int64(7)}}
			},
		}

		store := NewPostgres(db, nil)

		clicks, err := store.Count(context.Background(), "Ab3dK9x")
		if err != nil {
			t.Fatalf("Count() unexpected error: %v", err)
		}
		if clicks != 7 {
			t.Errorf("clicks = %d, want 7", clicks)
		}
	})

	t.Run("unclicked code counts as zero", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{err: pgx.ErrNoRows}
			},
		}

		store := NewPostgres(db, nil)

		clicks, err := store.Count(context.Background(), "fresh01")
		if err != nil {
			t.Fatalf("Count() unexpected error: %v", err)
		}
		if clicks != 0 {
			t.Errorf("clicks = %d, want 0", clicks)
		}
	})
}

func TestPostgres_Aggregate(t *testing.T) {
	t.Run("returns totals", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{values: []any{int64(3), int64(17)}}
			},
		}

		store := NewPostgres(db, nil)

		stats, err := store.Aggregate(context.Background())
		if err != nil {
			t.Fatalf("Aggregate() unexpected error: %v", err)
		}
		if stats.TotalLinks != 3 || stats.TotalClicks != 17 {
			t.Errorf("stats = %+v, want {3 17}", stats)
		}
	})

	t.Run("maps errors to Unavailable", func(t *testing.T) {
		db := &fakeDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return fakeRow{err: errors.New("connection refused")}
			},
		}

		store := NewPostgres(db, nil)

		_, err := store.Aggregate(context.Background())
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("error kind = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
	})
}

/***************
 * Error mapping
 ***************/

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errx.Kind
	}{
		{"no rows", pgx.ErrNoRows, errx.NotFound},
		{"short code unique violation", uniqueViolation(), errx.Conflict},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "links_pkey"}, errx.Unavailable},
		{"foreign key violation", foreignKeyViolation(), errx.NotFound},
		{"generic error", errors.New("boom"), errx.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errx.KindOf(mapStoreError("test.op", tt.err))
			if got != tt.want {
				t.Errorf("kind = %v, want %v", got, tt.want)
			}
		})
	}
}
