// Package archive persists collected posts, the monthly usage ledger,
// and an operation history in a single SQLite database.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Post is one archived X post with its author and engagement metrics.
type Post struct {
	ID             string
	Text           string
	CreatedAt      time.Time
	AuthorID       string
	AuthorUsername string
	AuthorName     string
	AuthorVerified bool
	Retweets       int
	Replies        int
	Likes          int
	Quotes         int
	Lang           string
	CollectedAt    time.Time
}

// Usage is one month's ledger row. Month uses the form "2026-08" (UTC).
type Usage struct {
	Month     string
	Retrieved int
	Cap       int
}

// Event is one history entry: a build, deploy, or collect run.
type Event struct {
	ID      int64
	Kind    string
	Ref     string
	At      time.Time
	Details string
}

// Store wraps the archive database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the archive at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create archive directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		author_id TEXT,
		author_username TEXT,
		author_name TEXT,
		author_verified INTEGER NOT NULL DEFAULT 0,
		retweets INTEGER NOT NULL DEFAULT 0,
		replies INTEGER NOT NULL DEFAULT 0,
		likes INTEGER NOT NULL DEFAULT 0,
		quotes INTEGER NOT NULL DEFAULT 0,
		lang TEXT,
		collected_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	CREATE TABLE IF NOT EXISTS usage (
		month TEXT PRIMARY KEY,
		retrieved INTEGER NOT NULL DEFAULT 0,
		cap INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		ref TEXT,
		at INTEGER NOT NULL,
		details TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertPosts stores posts, skipping ids already archived, and returns
// how many rows were actually new.
func (s *Store) InsertPosts(ctx context.Context, posts []Post) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (id, text, created_at, author_id, author_username,
			author_name, author_verified, retweets, replies, likes, quotes,
			lang, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, p := range posts {
		collected := p.CollectedAt
		if collected.IsZero() {
			collected = time.Now().UTC()
		}
		res, err := stmt.ExecContext(ctx,
			p.ID, p.Text, p.CreatedAt.Unix(), p.AuthorID, p.AuthorUsername,
			p.AuthorName, boolToInt(p.AuthorVerified), p.Retweets, p.Replies,
			p.Likes, p.Quotes, p.Lang, collected.Unix())
		if err != nil {
			return 0, fmt.Errorf("insert post %s: %w", p.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return added, nil
}

// Posts returns every archived post, newest first.
func (s *Store) Posts(ctx context.Context) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, created_at, author_id, author_username, author_name,
			author_verified, retweets, replies, likes, quotes, lang, collected_at
		FROM posts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		var createdAt, collectedAt int64
		var verified int
		if err := rows.Scan(&p.ID, &p.Text, &createdAt, &p.AuthorID,
			&p.AuthorUsername, &p.AuthorName, &verified, &p.Retweets,
			&p.Replies, &p.Likes, &p.Quotes, &p.Lang, &collectedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		p.CollectedAt = time.Unix(collectedAt, 0).UTC()
		p.AuthorVerified = verified != 0
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// CountPosts returns the number of archived posts.
func (s *Store) CountPosts(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// NewestID returns the highest post id, for since_id continuation. Post
// ids are numeric strings that grow over time, so length-then-lexical
// ordering matches numeric ordering. Empty archive returns "".
func (s *Store) NewestID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM posts ORDER BY LENGTH(id) DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query newest id: %w", err)
	}
	return id, nil
}

// UsageFor returns the ledger row for a month, zero-valued when the
// month has no row yet.
func (s *Store) UsageFor(ctx context.Context, month string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := Usage{Month: month}
	err := s.db.QueryRowContext(ctx,
		`SELECT retrieved, cap FROM usage WHERE month = ?`, month).
		Scan(&u.Retrieved, &u.Cap)
	if err == sql.ErrNoRows {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("query usage for %s: %w", month, err)
	}
	return u, nil
}

// AddUsage adds n retrieved posts to a month's ledger row, creating the
// row on first use. The cap is refreshed on every charge so a config
// change takes effect mid-month.
func (s *Store) AddUsage(ctx context.Context, month string, n, cap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (month, retrieved, cap) VALUES (?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			retrieved = retrieved + excluded.retrieved,
			cap = excluded.cap`,
		month, n, cap)
	if err != nil {
		return fmt.Errorf("update usage for %s: %w", month, err)
	}
	return nil
}

// AppendEvent records one operation in the history.
func (s *Store) AppendEvent(ctx context.Context, kind, ref, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (kind, ref, at, details) VALUES (?, ?, ?, ?)`,
		kind, ref, time.Now().UTC().Unix(), details)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// RecentEvents returns the latest events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, ref, at, details FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var at int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Ref, &at, &e.Details); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.At = time.Unix(at, 0).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
