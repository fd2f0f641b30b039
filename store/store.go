package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pevans/newsreap"
)

// ArticleStore persists harvested article records using SQLite. Records for
// a resource are replaced wholesale each run: Sweep removes the previous
// run's rows before any Insert, which keeps repeated runs idempotent.
type ArticleStore struct {
	db *sql.DB
}

// NewArticleStore opens (creating if necessary) the article database at the
// given path.
func NewArticleStore(dbPath string) (*ArticleStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &ArticleStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the articles table if it doesn't exist.
func (s *ArticleStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		headline TEXT NOT NULL,
		summary TEXT NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		resource TEXT NOT NULL,
		media TEXT NOT NULL,
		link TEXT NOT NULL,
		date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_resource ON articles (resource);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *ArticleStore) Close() error {
	return s.db.Close()
}

// Sweep deletes all records tagged with the given resource and returns the
// number of rows removed. Run once per job, before any inserts.
func (s *ArticleStore) Sweep(resource string) (int64, error) {
	result, err := s.db.Exec("DELETE FROM articles WHERE resource = ?", resource)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep resource %q: %w", resource, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// Insert stores one record. Ids are generated fresh per record and the sweep
// has already cleared prior rows for the resource, so a plain insert never
// collides.
func (s *ArticleStore) Insert(rec newsreap.ArticleRecord) error {
	query := `
		INSERT INTO articles (
			id, slug, headline, summary, body,
			author, resource, media, link, date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.ID.String(),
		rec.Slug,
		rec.Headline,
		rec.Summary,
		rec.Body,
		rec.Author,
		rec.Resource,
		rec.Media,
		rec.Link,
		rec.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert article %q: %w", rec.Slug, err)
	}

	return nil
}

// ListByResource returns all stored records for a resource in insertion
// order.
func (s *ArticleStore) ListByResource(resource string) ([]newsreap.ArticleRecord, error) {
	query := `
		SELECT id, slug, headline, summary, body,
		       author, resource, media, link, date
		FROM articles
		WHERE resource = ?
		ORDER BY rowid
	`

	rows, err := s.db.Query(query, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var records []newsreap.ArticleRecord
	for rows.Next() {
		var rec newsreap.ArticleRecord
		var idStr string

		err := rows.Scan(
			&idStr, &rec.Slug, &rec.Headline, &rec.Summary, &rec.Body,
			&rec.Author, &rec.Resource, &rec.Media, &rec.Link, &rec.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}

		rec.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse article ID: %w", err)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}
