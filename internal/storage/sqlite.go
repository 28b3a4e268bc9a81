package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/matsen/paperrank/internal/reference"
)

// ErrNotFound is returned when a paper id has no row in the corpus.
var ErrNotFound = errors.New("paper not found in corpus")

// DB wraps the SQLite corpus database.
type DB struct {
	db *sql.DB
}

// selectRefFields contains the standard field list for SELECT queries.
const selectRefFields = `id, doi, title, abstract, venue,
	pub_year, pub_month, pub_day,
	pdf_path, source_type, source_id, authors_json`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS refs (
			id TEXT PRIMARY KEY,
			doi TEXT,
			title TEXT NOT NULL,
			abstract TEXT,
			venue TEXT,
			pub_year INTEGER NOT NULL,
			pub_month INTEGER,
			pub_day INTEGER,
			pdf_path TEXT,
			source_type TEXT NOT NULL,
			source_id TEXT,
			authors_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_refs_doi ON refs(doi) WHERE doi IS NOT NULL AND doi != '';

		-- Standalone FTS table; id is stored but not tokenized
		CREATE VIRTUAL TABLE IF NOT EXISTS refs_fts USING fts5(
			id UNINDEXED,
			title,
			abstract,
			authors_text
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the database and rebuilds it from a JSONL file.
func (d *DB) RebuildFromJSONL(ctx context.Context, jsonlPath string) (int, error) {
	refs, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	if err := d.Rebuild(ctx, refs); err != nil {
		return 0, err
	}
	return len(refs), nil
}

// Rebuild replaces the corpus with refs in a single transaction.
func (d *DB) Rebuild(ctx context.Context, refs []reference.Reference) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM refs"); err != nil {
		return fmt.Errorf("clearing refs table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM refs_fts"); err != nil {
		return fmt.Errorf("clearing refs_fts table: %w", err)
	}

	refsStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO refs (
			id, doi, title, abstract, venue,
			pub_year, pub_month, pub_day,
			pdf_path, source_type, source_id, authors_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing refs insert: %w", err)
	}
	defer refsStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO refs_fts (id, title, abstract, authors_text)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, ref := range refs {
		authorsJSON, err := json.Marshal(ref.Authors)
		if err != nil {
			return fmt.Errorf("marshaling authors for %s: %w", ref.ID, err)
		}

		_, err = refsStmt.ExecContext(ctx,
			ref.ID, nullableStringValue(ref.DOI), ref.Title, nullableStringValue(ref.Abstract), nullableStringValue(ref.Venue),
			ref.Published.Year, ref.Published.Month, ref.Published.Day,
			nullableStringValue(ref.PDFPath), ref.Source.Type, nullableStringValue(ref.Source.ID),
			string(authorsJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting ref %s: %w", ref.ID, err)
		}

		if _, err := ftsStmt.ExecContext(ctx, ref.ID, ref.Title, ref.Abstract, reference.AuthorsText(ref.Authors)); err != nil {
			return fmt.Errorf("inserting fts for %s: %w", ref.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild: %w", err)
	}
	return nil
}

// GetByID retrieves a reference by its ID.
func (d *DB) GetByID(ctx context.Context, id string) (*reference.Reference, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectRefFields+` FROM refs WHERE id = ?`, id)
	ref, err := scanReference(row)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ref, nil
}

// GetByDOI retrieves a reference by DOI. DOIs compare case-insensitively.
func (d *DB) GetByDOI(ctx context.Context, doi string) (*reference.Reference, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectRefFields+` FROM refs WHERE lower(doi) = lower(?) LIMIT 1`, doi)
	ref, err := scanReference(row)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: doi %s", ErrNotFound, doi)
	}
	return ref, nil
}

// GetMany returns the references for ids that exist, keyed by id.
func (d *DB) GetMany(ctx context.Context, ids []string) (map[string]reference.Reference, error) {
	out := make(map[string]reference.Reference, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, `SELECT `+selectRefFields+` FROM refs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading refs: %w", err)
	}
	defer rows.Close()

	refs, err := scanReferences(rows)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		out[ref.ID] = ref
	}
	return out, nil
}

// Search performs a full-text search over titles, abstracts and authors.
func (d *DB) Search(ctx context.Context, query string, limit int) ([]reference.Reference, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectRefFields+`
		FROM refs
		WHERE id IN (SELECT id FROM refs_fts WHERE refs_fts MATCH ?)
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanReferences(rows)
}

// TitleMatch is a paper whose title matched at least one query term.
type TitleMatch struct {
	ID    string
	Title string
	Rank  float64 // FTS5 bm25 rank; more negative is better
}

// MatchTitles returns papers whose titles contain any term of query,
// best bm25 rank first. limit <= 0 means no limit.
func (d *DB) MatchTitles(ctx context.Context, query string, limit int) ([]TitleMatch, error) {
	ftsQuery := titleTermsQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, rank
		FROM refs_fts
		WHERE refs_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("matching titles: %w", err)
	}
	defer rows.Close()

	var matches []TitleMatch
	for rows.Next() {
		var m TitleMatch
		if err := rows.Scan(&m.ID, &m.Title, &m.Rank); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListAll returns all references, optionally limited.
func (d *DB) ListAll(ctx context.Context, limit int) ([]reference.Reference, error) {
	query := `SELECT ` + selectRefFields + ` FROM refs ORDER BY id`
	var args []any

	if limit > 0 {
		query += " LIMIT ?"
		args = []any{limit}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing refs: %w", err)
	}
	defer rows.Close()

	return scanReferences(rows)
}

// Count returns the total number of references.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM refs").Scan(&count)
	return count, err
}

// CountPapersWithAbstract returns the number of papers that have abstracts.
func (d *DB) CountPapersWithAbstract(ctx context.Context, minLength int) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM refs WHERE abstract IS NOT NULL AND LENGTH(abstract) >= ?", minLength).Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanReference(s scanner) (*reference.Reference, error) {
	var ref reference.Reference
	var authorsJSON sql.NullString
	var doi, abstract, venue, pdfPath, sourceID sql.NullString
	var pubMonth, pubDay sql.NullInt64

	err := s.Scan(
		&ref.ID, &doi, &ref.Title, &abstract, &venue,
		&ref.Published.Year, &pubMonth, &pubDay,
		&pdfPath, &ref.Source.Type, &sourceID, &authorsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	ref.DOI = doi.String
	ref.Abstract = abstract.String
	ref.Venue = venue.String
	ref.PDFPath = pdfPath.String
	ref.Source.ID = sourceID.String
	ref.Published.Month = int(pubMonth.Int64)
	ref.Published.Day = int(pubDay.Int64)

	if authorsJSON.Valid {
		if err := json.Unmarshal([]byte(authorsJSON.String), &ref.Authors); err != nil {
			return nil, fmt.Errorf("parsing authors JSON for %s: %w", ref.ID, err)
		}
	}

	return &ref, nil
}

func scanReferences(rows *sql.Rows) ([]reference.Reference, error) {
	var refs []reference.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	return refs, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}

// titleTermsQuery builds a title-column FTS5 query matching any query term.
func titleTermsQuery(query string) string {
	terms := Terms(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = "\"" + t + "\""
	}
	return "title:(" + strings.Join(quoted, " OR ") + ")"
}

// Terms splits text into lowercase alphanumeric terms, the same way the
// FTS5 unicode61 tokenizer does.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
