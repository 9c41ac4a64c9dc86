package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-wot/internal/bridges/wot"
)

// DefaultPollInterval is returned by Load when no interval has been saved.
const DefaultPollInterval = 5 * time.Second

// Repository stores adapter settings in SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a repository on a migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Load returns the stored poll interval and URLs.
func (r *Repository) Load(ctx context.Context) (wot.Settings, error) {
	s := wot.Settings{PollInterval: DefaultPollInterval}

	var seconds int64
	err := r.db.QueryRowContext(ctx, `SELECT poll_interval FROM adapter_settings WHERE id = 1`).Scan(&seconds)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return wot.Settings{}, fmt.Errorf("reading poll interval: %w", err)
	case seconds > 0:
		s.PollInterval = time.Duration(seconds) * time.Second
	}

	urls, err := r.ListURLs(ctx)
	if err != nil {
		return wot.Settings{}, err
	}
	s.URLs = urls
	return s, nil
}

// Save replaces the stored settings in one transaction. The poll interval
// is stored in whole seconds; a non-positive interval keeps the stored one.
func (r *Repository) Save(ctx context.Context, s wot.Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settings transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := r.timestamp()
	if s.PollInterval > 0 {
		if err := upsertPollInterval(ctx, tx, s.PollInterval, now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thing_urls`); err != nil {
		return fmt.Errorf("clearing thing urls: %w", err)
	}
	seen := make(map[string]bool, len(s.URLs))
	position := 0
	for _, u := range s.URLs {
		u = normalize(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thing_urls (url, position, created_at) VALUES (?, ?, ?)`,
			u, position, now); err != nil {
			return fmt.Errorf("inserting thing url %s: %w", u, err)
		}
		position++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

// SetPollInterval stores the poll interval alone.
func (r *Repository) SetPollInterval(ctx context.Context, d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("poll interval %v: must be at least 1s", d)
	}
	return upsertPollInterval(ctx, r.db, d, r.timestamp())
}

// ListURLs returns the stored URLs in the order they were added.
func (r *Repository) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url FROM thing_urls ORDER BY position, url`)
	if err != nil {
		return nil, fmt.Errorf("listing thing urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning thing url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thing urls: %w", err)
	}
	return urls, nil
}

// AddURL appends rawURL to the stored list.
//
// Returns:
//   - error: ErrInvalidURL, ErrURLExists, or a database error
func (r *Repository) AddURL(ctx context.Context, rawURL string) error {
	u := normalize(rawURL)
	if u == "" {
		return ErrInvalidURL
	}

	const query = `INSERT INTO thing_urls (url, position, created_at)
		SELECT ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM thing_urls), ?
		WHERE NOT EXISTS (SELECT 1 FROM thing_urls WHERE url = ?)`
	res, err := r.db.ExecContext(ctx, query, u, r.timestamp(), u)
	if err != nil {
		return fmt.Errorf("inserting thing url %s: %w", u, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrURLExists, u)
	}
	return nil
}

// RemoveURL deletes rawURL from the stored list.
//
// Returns:
//   - error: ErrURLNotFound, or a database error
func (r *Repository) RemoveURL(ctx context.Context, rawURL string) error {
	u := normalize(rawURL)
	res, err := r.db.ExecContext(ctx, `DELETE FROM thing_urls WHERE url = ?`, u)
	if err != nil {
		return fmt.Errorf("deleting thing url %s: %w", u, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting thing url %s: %w", u, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrURLNotFound, u)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPollInterval(ctx context.Context, db execer, d time.Duration, now string) error {
	const query = `INSERT INTO adapter_settings (id, poll_interval, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET poll_interval = excluded.poll_interval, updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, int64(d/time.Second), now); err != nil {
		return fmt.Errorf("saving poll interval: %w", err)
	}
	return nil
}

func (r *Repository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func normalize(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

var _ wot.ConfigStore = (*Repository)(nil)
