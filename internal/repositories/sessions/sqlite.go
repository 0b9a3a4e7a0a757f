package sessions

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
)

const sqliteTimeout = 3 * time.Second

// SQLiteConfig holds the configuration for the SQLite repository
type SQLiteConfig struct {
	// Path is the database file, or ":memory:"
	Path  string
	Clock clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *SQLiteConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("path", strings.TrimSpace(c.Path), vb)
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	return vb.Build()
}

type sqliteRepository struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteRepository opens (creating if needed) a SQLite database holding
// one row per session
func NewSQLiteRepository(ctx context.Context, cfg *SQLiteConfig) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	dbPath := strings.TrimSpace(cfg.Path)
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, errors.Wrapf(err, "failed to create %s", parent)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "failed to apply %s", pragma)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite database")
	}
	if err := ensureSessionSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create sessions table")
	}

	return &sqliteRepository{db: db, clock: cfg.Clock}, nil
}

// Ensure sqliteRepository implements Repository
var _ Repository = (*sqliteRepository)(nil)

// Save upserts the session row inside a transaction
func (r *sqliteRepository) Save(ctx context.Context, input SaveInput) (*SaveOutput, error) {
	rec, err := prepare(input.Record, r.clock)
	if err != nil {
		return nil, err
	}
	data, err := rec.Encode()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, sqliteTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (id, name, turn_count, ended, saved_at_ms, document)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    turn_count = excluded.turn_count,
    ended = excluded.ended,
    saved_at_ms = excluded.saved_at_ms,
    document = excluded.document
`, rec.ID, rec.Name, rec.TurnCount, rec.Ended, rec.SavedAt.UnixMilli(), string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to store session %s", rec.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrapf(err, "failed to commit session %s", rec.ID)
	}

	return &SaveOutput{Summary: summaryOf(rec)}, nil
}

// Load reads one session document
func (r *sqliteRepository) Load(ctx context.Context, input LoadInput) (*LoadOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errIDEmpty)
	}

	ctx, cancel := context.WithTimeout(ctx, sqliteTimeout)
	defer cancel()

	var document string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM sessions WHERE id = ?`, input.ID).Scan(&document)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("session %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to read session %s", input.ID)
	}

	rec, err := decode(input.ID, []byte(document))
	if err != nil {
		return nil, err
	}
	return &LoadOutput{Record: rec}, nil
}

// List reads summaries from the indexed columns without decoding documents
func (r *sqliteRepository) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	limit := -1
	if input.Limit > 0 {
		limit = input.Limit
	}

	ctx, cancel := context.WithTimeout(ctx, sqliteTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, turn_count, ended, saved_at_ms
FROM sessions
ORDER BY saved_at_ms DESC, id ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var (
			s         Summary
			savedAtMs int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.TurnCount, &s.Ended, &savedAtMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan session row")
		}
		s.SavedAt = time.UnixMilli(savedAtMs).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	return &ListOutput{Sessions: out}, nil
}

// Close closes the database
func (r *sqliteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func ensureSessionSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    turn_count INTEGER NOT NULL DEFAULT 0,
    ended INTEGER NOT NULL DEFAULT 0,
    saved_at_ms INTEGER NOT NULL,
    document TEXT NOT NULL
)`)
	return err
}
