package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/nextplay/dbopen"
)

// PagesSchema for the play_pages table.
const PagesSchema = `
CREATE TABLE IF NOT EXISTS play_pages (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'active',
	updated_at INTEGER NOT NULL
);
`

// PageStore keeps the runtime page list in SQLite. Every write bumps
// PRAGMA user_version so watchers on the same connection pool see it.
type PageStore struct {
	db    *sql.DB
	owned bool
}

// NewPageStore wraps an open database and applies the schema.
func NewPageStore(db *sql.DB) (*PageStore, error) {
	if _, err := db.Exec(PagesSchema); err != nil {
		return nil, fmt.Errorf("config: pages schema: %w", err)
	}
	return &PageStore{db: db}, nil
}

// OpenPageStore opens (creating if needed) the page database at path.
func OpenPageStore(path string) (*PageStore, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(PagesSchema))
	if err != nil {
		return nil, fmt.Errorf("config: pages db: %w", err)
	}
	return &PageStore{db: db, owned: true}, nil
}

// Put inserts or reactivates a page.
func (s *PageStore) Put(ctx context.Context, p PageConfig) error {
	if p.ID == "" || p.URL == "" {
		return fmt.Errorf("config: page needs id and url")
	}
	return s.write(ctx, `
		INSERT INTO play_pages (id, url, status, updated_at) VALUES (?, ?, 'active', ?)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, status = 'active', updated_at = excluded.updated_at`,
		p.ID, p.URL, time.Now().UnixMilli())
}

// Disable marks a page inactive. Unknown ids are not an error.
func (s *PageStore) Disable(ctx context.Context, id string) error {
	return s.write(ctx,
		`UPDATE play_pages SET status = 'disabled', updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
}

func (s *PageStore) write(ctx context.Context, query string, args ...any) error {
	if _, err := dbopen.Exec(ctx, s.db, query, args...); err != nil {
		return fmt.Errorf("config: pages write: %w", err)
	}
	// PRAGMA values must be literals.
	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return fmt.Errorf("config: pages version: %w", err)
	}
	if _, err := dbopen.Exec(ctx, s.db, fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
		return fmt.Errorf("config: pages version: %w", err)
	}
	return nil
}

// Active lists active pages ordered by id.
func (s *PageStore) Active(ctx context.Context) ([]PageConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url FROM play_pages WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("config: pages list: %w", err)
	}
	defer rows.Close()

	var pages []PageConfig
	for rows.Next() {
		var p PageConfig
		if err := rows.Scan(&p.ID, &p.URL); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Version combines the application version with SQLite's data_version, so
// writes from this process and from other connections both change it.
func (s *PageStore) Version(ctx context.Context) (int64, error) {
	var uv, dv int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&uv); err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&dv); err != nil {
		return 0, err
	}
	return uv<<32 | (dv & 0xffffffff), nil
}

// WatchOptions tunes PageStore.Watch.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before reloading.
	// Default: 0, reload on the next poll.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch calls fn with the active pages once, then after every change,
// until ctx is cancelled. When fn fails the change is retried on the next
// poll.
func (s *PageStore) Watch(ctx context.Context, opts WatchOptions, fn func([]PageConfig) error) {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	applied := int64(-1)
	var changedAt time.Time
	pending := int64(-1)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	check := func() {
		v, err := s.Version(ctx)
		if err != nil {
			log.Warn("config: pages version check failed", "error", err)
			return
		}
		if v != pending {
			pending = v
			changedAt = time.Now()
		}
		if pending == applied || time.Since(changedAt) < opts.Debounce {
			return
		}
		pages, err := s.Active(ctx)
		if err == nil {
			err = fn(pages)
		}
		if err != nil {
			log.Error("config: pages reload failed", "error", err, "version", pending)
			return
		}
		applied = pending
		log.Info("config: pages reloaded", "pages", len(pages), "version", applied)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Close releases the database when the store opened it.
func (s *PageStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
