package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/nextplay/autoplay/report"
	"github.com/hazyhaar/nextplay/dbopen"
)

// Schema for the play_events history table.
const Schema = `
CREATE TABLE IF NOT EXISTS play_events (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	page_id   TEXT NOT NULL,
	page_url  TEXT NOT NULL DEFAULT '',
	frame_id  TEXT NOT NULL DEFAULT '',
	detail    TEXT NOT NULL DEFAULT '',
	at_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_play_events_page ON play_events(page_id, at_ms);
`

// SQLite appends events to the play_events table.
type SQLite struct {
	db    *sql.DB
	owned bool
}

// NewSQLite wraps an open database. The schema must already be applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// OpenSQLite opens (creating if needed) the history database at path.
// Close releases it.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: %w", err)
	}
	return &SQLite{db: db, owned: true}, nil
}

func (s *SQLite) Send(ctx context.Context, ev report.Event) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO play_events (id, kind, page_id, page_url, frame_id, detail, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.PageID, ev.PageURL, ev.FrameID, ev.Detail, ev.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite sink: insert: %w", err)
	}
	return nil
}

// CountByKind returns how many events of each kind were stored for pageID.
func (s *SQLite) CountByKind(ctx context.Context, pageID string) (map[report.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM play_events WHERE page_id = ? GROUP BY kind`, pageID)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: count: %w", err)
	}
	defer rows.Close()

	out := make(map[report.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[report.Kind(kind)] = n
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
