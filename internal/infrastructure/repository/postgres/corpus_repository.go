package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// CorpusRepository stores corpus clauses with pgvector embeddings and
// answers cosine similarity searches over them.
type CorpusRepository struct {
	db         *sql.DB
	dimensions int
	now        func() time.Time
}

// NewCorpusRepository builds a repository; dimensions fixes the vector
// column width and enables an HNSW index when positive.
func NewCorpusRepository(db *sql.DB, dimensions int) *CorpusRepository {
	return &CorpusRepository{db: db, dimensions: dimensions, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, classifyDBError("db ping", err)
	}
	return db, nil
}

func (r *CorpusRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyDBError("begin schema tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return classifyDBError("acquire schema lock", err)
	}

	vectorType := "vector"
	if r.dimensions > 0 {
		vectorType = fmt.Sprintf("vector(%d)", r.dimensions)
	}
	query := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS corpus_documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	jurisdiction TEXT NOT NULL,
	document_type TEXT NOT NULL,
	status TEXT NOT NULL,
	indexed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS corpus_clauses (
	document_id TEXT NOT NULL REFERENCES corpus_documents(id) ON DELETE CASCADE,
	clause_index INTEGER NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	clause_type TEXT NOT NULL DEFAULT 'general',
	text TEXT NOT NULL,
	embedding ` + vectorType + ` NOT NULL,
	PRIMARY KEY (document_id, clause_index)
);

CREATE INDEX IF NOT EXISTS idx_corpus_documents_filter ON corpus_documents(jurisdiction, document_type);
`
	if r.dimensions > 0 {
		query += `CREATE INDEX IF NOT EXISTS idx_corpus_clauses_embedding ON corpus_clauses USING hnsw (embedding vector_cosine_ops);
`
	}
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return classifyDBError("execute schema ddl", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyDBError("commit schema tx", err)
	}
	return nil
}

// IndexClauses replaces every stored clause of doc in one transaction.
func (r *CorpusRepository) IndexClauses(ctx context.Context, doc domain.CorpusDocument, clauses []domain.ClauseSegment, vectors [][]float32) error {
	if len(clauses) != len(vectors) {
		return domain.WrapError(domain.ErrValidation, "postgres index", fmt.Errorf("clauses/vectors mismatch: %d != %d", len(clauses), len(vectors)))
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyDBError("begin index tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO corpus_documents (id, title, jurisdiction, document_type, status, indexed_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	jurisdiction = EXCLUDED.jurisdiction,
	document_type = EXCLUDED.document_type,
	status = EXCLUDED.status,
	indexed_at = EXCLUDED.indexed_at
`, doc.ID, doc.Title, doc.Jurisdiction, doc.DocumentType, doc.Status, r.now().UTC())
	if err != nil {
		return classifyDBError("upsert corpus document", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_clauses WHERE document_id = $1`, doc.ID); err != nil {
		return classifyDBError("delete corpus clauses", err)
	}

	for i, clause := range clauses {
		_, err := tx.ExecContext(ctx, `
INSERT INTO corpus_clauses (document_id, clause_index, reference, clause_type, text, embedding)
VALUES ($1,$2,$3,$4,$5,$6)
`, doc.ID, i, clause.Reference, string(clause.Type.Normalized()), clause.Text, pgvector.NewVector(vectors[i]))
		if err != nil {
			return classifyDBError(fmt.Sprintf("insert corpus clause %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyDBError("commit index tx", err)
	}
	return nil
}

func (r *CorpusRepository) SearchSimilar(ctx context.Context, vector []float32, query domain.CorpusQuery) ([]domain.CorpusMatch, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT d.id, d.title, d.jurisdiction, d.document_type, d.status, c.reference, c.text,
	1 - (c.embedding <=> $1) AS similarity
FROM corpus_clauses c
JOIN corpus_documents d ON d.id = c.document_id
WHERE ($2 = '' OR d.jurisdiction = $2)
	AND ($3 = '' OR d.document_type = ANY(string_to_array($3, ',')))
	AND ($4 = '' OR d.id <> $4)
	AND 1 - (c.embedding <=> $1) >= $5
ORDER BY c.embedding <=> $1
LIMIT $6
`,
		pgvector.NewVector(vector),
		query.Jurisdiction,
		strings.Join(query.DocumentTypes, ","),
		query.ExcludeDocumentID,
		query.MinScore,
		limit,
	)
	if err != nil {
		return nil, classifyDBError("search corpus", err)
	}
	defer rows.Close()

	out := make([]domain.CorpusMatch, 0, limit)
	for rows.Next() {
		var m domain.CorpusMatch
		if err := rows.Scan(&m.DocumentID, &m.Title, &m.Jurisdiction, &m.DocumentType, &m.Status, &m.Reference, &m.Text, &m.Similarity); err != nil {
			return nil, classifyDBError("scan corpus match", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("iterate corpus matches", err)
	}
	return out, nil
}

func (r *CorpusRepository) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpus_documents`).Scan(&n); err != nil {
		return 0, classifyDBError("count corpus documents", err)
	}
	return n, nil
}

// classifyDBError marks connection loss and serialization failures as
// transient; anything else the database rejected is terminal.
func classifyDBError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001",
			pgErr.Code == "40P01",
			pgErr.Code == "57P03":
			return domain.WrapError(domain.ErrTransientRemote, operation, err)
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return domain.WrapTerminal(domain.ErrAuthRejected, operation, err)
		default:
			return domain.WrapTerminal(nil, operation, err)
		}
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTransientRemote, operation, err)
	}
	return domain.WrapTerminal(nil, operation, err)
}
