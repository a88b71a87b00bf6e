package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devfeeds/bsky-keyword-feed/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		uri TEXT PRIMARY KEY,
		cid TEXT NOT NULL,
		indexedAt TEXT NOT NULL
	)`

// timeLayout keeps the fractional seconds fixed-width so that SQLite's
// lexicographic TEXT comparison of indexedAt agrees with chronological order.
// RFC3339Nano would drop trailing zeros and break that.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements domain.PostStore on SQLite, keeping at most limit posts.
// Eviction removes the oldest rows by indexedAt; ties are broken by rowid,
// which SQLite assigns monotonically on insert, so eviction order is
// deterministic even when timestamps collide.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens (or creates) the database at path and ensures the posts table
// exists. The caller should call Close when the store is no longer needed.
func Open(path string, limit int) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY between the writer and
	// concurrent readers; the workload is one ingester plus light polling.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create posts table: %w", err)
	}

	return &Store{db: db, limit: limit}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces a post by URI, then evicts the oldest rows if
// the table exceeds the capacity limit. The insert-count-evict sequence runs
// in one transaction so readers never observe an over-capacity steady state.
// Replacing an existing URI keeps its rowid, so a refreshed post holds its
// tie-break position among rows sharing an indexedAt.
func (s *Store) Upsert(ctx context.Context, post *domain.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (uri, cid, indexedAt)
		VALUES (?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET cid = excluded.cid, indexedAt = excluded.indexedAt`,
		post.URI,
		post.CID,
		post.IndexedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return fmt.Errorf("count posts: %w", err)
	}

	if count > s.limit {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM posts WHERE uri IN (
				SELECT uri FROM posts
				ORDER BY indexedAt ASC, rowid ASC
				LIMIT ?
			)`, count-s.limit,
		)
		if err != nil {
			return fmt.Errorf("evict oldest posts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Query returns up to limit posts ordered by indexedAt descending.
func (s *Store) Query(ctx context.Context, limit int) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, cid, indexedAt
		FROM posts
		ORDER BY indexedAt DESC, rowid DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			p         domain.Post
			indexedAt string
		)
		if err := rows.Scan(&p.URI, &p.CID, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.IndexedAt, err = time.Parse(timeLayout, indexedAt)
		if err != nil {
			return nil, fmt.Errorf("parse indexedAt %q: %w", indexedAt, err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// count returns the number of stored posts.
func (s *Store) count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}
