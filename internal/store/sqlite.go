// Package store persists per-replication run summaries to SQLite so
// repeated simulation campaigns can be compared offline.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/survsim/coxsim/internal/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at   TEXT    NOT NULL,
	seed         INTEGER NOT NULL,
	replication  INTEGER NOT NULL,
	n            INTEGER NOT NULL,
	t            INTEGER NOT NULL,
	type         TEXT    NOT NULL,
	censor       REAL    NOT NULL,
	data_rows    INTEGER NOT NULL,
	events       INTEGER NOT NULL,
	marg_effect  REAL    NOT NULL,
	warnings     INTEGER NOT NULL
);
`

// RunStore appends run summaries to a SQLite database.
type RunStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Save appends one summary row for a replication result.
func (s *RunStore) Save(ctx context.Context, cfg sim.Config, replication int, res *sim.Result) error {
	events := 0
	for _, row := range res.Data {
		if row.Failed {
			events++
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (created_at, seed, replication, n, t, type, censor, data_rows, events, marg_effect, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		int64(cfg.Seed), replication,
		cfg.N, cfg.T, string(cfg.Type), cfg.Censor,
		len(res.Data), events, res.MargEffect.Effect, len(res.Warnings),
	)
	if err != nil {
		return fmt.Errorf("store: saving replication %d: %w", replication, err)
	}
	return nil
}

// Count returns the number of stored summaries.
func (s *RunStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting runs: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error {
	return s.db.Close()
}
