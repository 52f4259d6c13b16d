// Package pagestore persists per-slide text and picture annotations of a
// deck to PostgreSQL, keyed by artifact name and page number.
package pagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/shape"
	"github.com/benjaminschreck/go-scalpel/pkg/scalpel/text"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "deck_pages"

// Execer runs a statement without returning rows. *pgxpool.Pool and
// pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PageRecord is one stored slide.
type PageRecord struct {
	Artifact string
	Page     int
	Title    string
	Text     string
	Pictures []string
	Metadata map[string]any
}

// Store writes PageRecords to a single table.
type Store struct {
	db    Execer
	table string
	close func()
}

// New wraps db. An empty table selects DefaultTable.
func New(db Execer, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// Connect opens a pool for dsn and checks it answers.
func Connect(ctx context.Context, dsn, table string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("page store DSN not configured")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect page store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping page store: %w", err)
	}
	s := New(pool, table)
	s.close = pool.Close
	return s, nil
}

// Close releases the pool opened by Connect.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// EnsureSchema creates the table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	artifact_name text NOT NULL,
	page_number integer NOT NULL,
	title text NOT NULL DEFAULT '',
	body text NOT NULL DEFAULT '',
	pictures text[] NOT NULL DEFAULT '{}',
	metadata jsonb NOT NULL DEFAULT '{}',
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (artifact_name, page_number)
)`, s.table)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Upsert inserts rec or replaces the stored row for the same artifact and
// page.
func (s *Store) Upsert(ctx context.Context, rec PageRecord) error {
	if rec.Artifact == "" || rec.Page < 1 {
		return fmt.Errorf("invalid page record %q page %d", rec.Artifact, rec.Page)
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	pictures := rec.Pictures
	if pictures == nil {
		pictures = []string{}
	}

	sql := fmt.Sprintf(`INSERT INTO %s (artifact_name, page_number, title, body, pictures, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (artifact_name, page_number) DO UPDATE SET
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	pictures = EXCLUDED.pictures,
	metadata = EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.db.Exec(ctx, sql, rec.Artifact, rec.Page, rec.Title, rec.Text, pictures, metaJSON); err != nil {
		return fmt.Errorf("upsert %s page %d: %w", rec.Artifact, rec.Page, err)
	}
	return nil
}

// UpsertAll stores every record, continuing past failures.
func (s *Store) UpsertAll(ctx context.Context, recs []PageRecord) error {
	errs := scalpel.NewMultiError()
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		errs.Add(s.Upsert(ctx, rec))
	}
	return errs.Err()
}

var titleTypes = map[string]bool{"title": true, "ctrTitle": true}

// RecordsFromPackage builds one record per slide: the title placeholder's
// text, the logical text of every attached text shape and the annotations
// of its pictures.
func RecordsFromPackage(pkg *scalpel.Package, artifact string, markers []string) []PageRecord {
	slides := pkg.SlideParts()
	recs := make([]PageRecord, 0, len(slides))
	for i, name := range slides {
		part, ok := pkg.Part(name)
		if !ok || part.Document() == nil {
			continue
		}
		rec := PageRecord{
			Artifact: artifact,
			Page:     i + 1,
			Metadata: map[string]any{"part": name},
		}

		var texts []string
		shapes := 0
		for _, node := range shape.Walk(name, shape.Tree(part.Document())) {
			if !node.Attached() || node.Kind == shape.KindGroup {
				continue
			}
			shapes++
			if node.Kind == shape.KindPicture {
				if a := node.Annotation(); a != "" {
					rec.Pictures = append(rec.Pictures, a)
				}
				continue
			}
			body := node.TextBody()
			if body == nil {
				continue
			}
			logical := strings.TrimSpace(text.ExtractLogicalText(text.Parse(body), markers))
			if logical == "" {
				continue
			}
			if rec.Title == "" && titleTypes[node.PlaceholderType()] {
				rec.Title = logical
			}
			texts = append(texts, logical)
		}
		if rec.Title == "" && len(texts) > 0 {
			rec.Title = texts[0]
		}
		rec.Text = strings.Join(texts, "\n")
		rec.Metadata["shapes"] = shapes
		recs = append(recs, rec)
	}
	return recs
}
