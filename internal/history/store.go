// Package history keeps a local SQLite log of scan prompts, raw model
// output and verdicts. Prompt and response text can be sealed at rest with
// any Sealer (see internal/vault).
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history: record not found")

const createTableSQL = `
CREATE TABLE IF NOT EXISTS h (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    ts       TEXT NOT NULL,
    scan_id  TEXT NOT NULL DEFAULT '',
    prompt   BLOB,
    response BLOB,
    verdict  TEXT NOT NULL DEFAULT '',
    sealed   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_h_ts ON h(ts);
`

// Record is one logged interaction.
type Record struct {
	ID       int64     `json:"id"`
	Time     time.Time `json:"ts"`
	ScanID   string    `json:"scan_id"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
	Verdict  string    `json:"verdict"`
	// Sealed is set when the row was sealed and this store has no Sealer
	// to open it; Prompt and Response are then empty.
	Sealed bool `json:"sealed,omitempty"`
}

// Sealer is an opaque reversible byte transform.
type Sealer interface {
	Seal(plain []byte) ([]byte, error)
	Unseal(sealed []byte) ([]byte, error)
}

// Store is a SQLite-backed interaction log.
type Store struct {
	db     *sql.DB
	sealer Sealer
	now    func() time.Time
}

// DefaultPath returns ~/.local/share/roadscan/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "roadscan", "history.db"), nil
}

// Open opens (or creates) the database at path. sealer may be nil.
func Open(path string, sealer Sealer) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, sealer: sealer, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Log inserts r and returns its row id. A zero r.Time is set to now.
func (s *Store) Log(ctx context.Context, r Record) (int64, error) {
	if r.Time.IsZero() {
		r.Time = s.now()
	}
	prompt, err := s.seal(r.Prompt)
	if err != nil {
		return 0, err
	}
	response, err := s.seal(r.Response)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO h (ts, scan_id, prompt, response, verdict, sealed) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Time.UTC().Format(time.RFC3339Nano),
		r.ScanID,
		prompt,
		response,
		r.Verdict,
		s.sealer != nil,
	)
	if err != nil {
		return 0, fmt.Errorf("log interaction: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	q := `SELECT id, ts, scan_id, prompt, response, verdict, sealed FROM h ORDER BY id DESC`
	args := []any{}
	if n > 0 {
		q += ` LIMIT ?`
		args = append(args, n)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ts, scan_id, prompt, response, verdict, sealed FROM h WHERE id = ?`, id)
	r, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM h`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Clear deletes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM h`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (Record, error) {
	var (
		r                Record
		ts               string
		prompt, response []byte
		sealed           bool
	)
	if err := row.Scan(&r.ID, &ts, &r.ScanID, &prompt, &response, &r.Verdict, &sealed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan history row: %w", err)
	}
	r.Time, _ = time.Parse(time.RFC3339Nano, ts)

	if !sealed {
		r.Prompt, r.Response = string(prompt), string(response)
		return r, nil
	}
	if s.sealer == nil {
		r.Sealed = true
		return r, nil
	}
	p, err := s.sealer.Unseal(prompt)
	if err != nil {
		return r, fmt.Errorf("unseal prompt %d: %w", r.ID, err)
	}
	resp, err := s.sealer.Unseal(response)
	if err != nil {
		return r, fmt.Errorf("unseal response %d: %w", r.ID, err)
	}
	r.Prompt, r.Response = string(p), string(resp)
	return r, nil
}

func (s *Store) seal(text string) ([]byte, error) {
	if s.sealer == nil {
		return []byte(text), nil
	}
	b, err := s.sealer.Seal([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return b, nil
}
