package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"CircularsDesk/internal/domain"
	"CircularsDesk/internal/ports"
)

// Schema creates the archive table. Applied by Migrate.
const Schema = `CREATE TABLE IF NOT EXISTS circulars (
    circular_no   TEXT NOT NULL,
    description   TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    date          TEXT NOT NULL DEFAULT '',
    download_link TEXT NOT NULL DEFAULT '',
    source_url    TEXT NOT NULL DEFAULT '',
    source        TEXT NOT NULL DEFAULT '',
    section       TEXT NOT NULL DEFAULT '',
    run_id        TEXT NOT NULL DEFAULT '',
    first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (circular_no, description)
)`

const circularsTable = "circulars"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository archives every circular the pipeline has published.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.CircularRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a lib/pq connection pool and checks it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate circulars: %w", err)
	}
	return nil
}

// AlreadySeen returns the subset of keys present in the archive.
func (r *PostgresRepository) AlreadySeen(ctx context.Context, keys []domain.CircularKey) (map[domain.CircularKey]bool, error) {
	if r.db == nil || len(keys) == 0 {
		return map[domain.CircularKey]bool{}, nil
	}

	query, args, err := seenQuery(keys)
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}

	wanted := make(map[domain.CircularKey]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	result := make(map[domain.CircularKey]bool)
	for rows.Next() {
		var k domain.CircularKey
		if err := rows.Scan(&k.CircularNo, &k.Description); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if wanted[k] {
			result[k] = true
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// SaveBatch upserts circulars in a single transaction.
func (r *PostgresRepository) SaveBatch(ctx context.Context, runID string, circulars []domain.Circular) error {
	if r.db == nil || len(circulars) == 0 {
		return nil
	}

	query, args, err := upsertQuery(runID, circulars)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert circulars: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit circulars: %w", err)
	}
	return nil
}

func seenQuery(keys []domain.CircularKey) (string, []interface{}, error) {
	numbers := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k.CircularNo] {
			continue
		}
		seen[k.CircularNo] = true
		numbers = append(numbers, k.CircularNo)
	}
	return psql.
		Select("circular_no", "description").
		From(circularsTable).
		Where("circular_no = ANY(?)", pq.StringArray(numbers)).
		ToSql()
}

func upsertQuery(runID string, circulars []domain.Circular) (string, []interface{}, error) {
	b := psql.
		Insert(circularsTable).
		Columns("circular_no", "description", "title", "date", "download_link", "source_url", "source", "section", "run_id")

	// one statement may not touch the same conflict key twice
	seen := make(map[domain.CircularKey]bool, len(circulars))
	for _, c := range circulars {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		b = b.Values(c.CircularNo, c.Description, c.Title, c.Date, c.DownloadLink, c.SourceURL, c.Source, c.Section, runID)
	}

	return b.Suffix(`ON CONFLICT (circular_no, description) DO UPDATE
SET title = EXCLUDED.title,
    date = EXCLUDED.date,
    download_link = EXCLUDED.download_link,
    source_url = EXCLUDED.source_url,
    section = EXCLUDED.section,
    updated_at = NOW()`).ToSql()
}
