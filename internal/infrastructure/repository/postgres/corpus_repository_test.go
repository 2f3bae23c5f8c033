package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CorpusRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewCorpusRepository(db, 0)
	repo.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func TestSearchSimilarMapsRowsAndPassesFilters(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "title", "jurisdiction", "document_type", "status", "reference", "text", "similarity"}).
		AddRow("uu-7-2014", "Undang-Undang Nomor 7 Tahun 2014", "national", "statute", "active", "Pasal 47", "Impor barang bekas dilarang.", 0.88)
	mock.ExpectQuery("SELECT d.id, d.title").
		WithArgs(sqlmock.AnyArg(), "national", "statute,regulation", "draft-1", 0.8, 3).
		WillReturnRows(rows)

	matches, err := repo.SearchSimilar(context.Background(), []float32{0.1, 0.2}, domain.CorpusQuery{
		Jurisdiction:      "national",
		DocumentTypes:     []string{"statute", "regulation"},
		ExcludeDocumentID: "draft-1",
		MinScore:          0.8,
		Limit:             3,
	})
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Reference != "Pasal 47" || matches[0].Similarity != 0.88 {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIndexClausesReplacesDocumentInOneTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := domain.CorpusDocument{ID: "pp-5-2021", Title: "PP 5/2021", Jurisdiction: "national", DocumentType: "regulation", Status: "active"}
	clauses := []domain.ClauseSegment{
		{Text: "Pasal 1. Ketentuan umum.", Reference: "Pasal 1", Type: domain.ClauseArticle, Order: 1},
		{Text: "Pasal 2. Perizinan berusaha.", Reference: "Pasal 2", Type: domain.ClauseArticle, Order: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO corpus_documents").
		WithArgs("pp-5-2021", "PP 5/2021", "national", "regulation", "active", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM corpus_clauses").
		WithArgs("pp-5-2021").
		WillReturnResult(sqlmock.NewResult(0, 4))
	for i, c := range clauses {
		mock.ExpectExec("INSERT INTO corpus_clauses").
			WithArgs("pp-5-2021", i, c.Reference, "article", c.Text, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := repo.IndexClauses(context.Background(), doc, clauses, [][]float32{{0.1}, {0.2}}); err != nil {
		t.Fatalf("IndexClauses() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIndexClausesRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := domain.CorpusDocument{ID: "d", Title: "D", Jurisdiction: "national", DocumentType: "statute", Status: "active"}
	clauses := []domain.ClauseSegment{{Text: "Pasal 1.", Type: domain.ClauseArticle}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO corpus_documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM corpus_clauses").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO corpus_clauses").
		WillReturnError(&pgconn.PgError{Code: "22000", Message: "expected 768 dimensions, not 1"})
	mock.ExpectRollback()

	err := repo.IndexClauses(context.Background(), doc, clauses, [][]float32{{0.1}})
	if !errors.Is(err, domain.ErrTerminalRemote) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountDocuments(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	n, err := repo.CountDocuments(context.Background())
	if err != nil || n != 17 {
		t.Fatalf("CountDocuments() = %d, %v", n, err)
	}
}

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}, domain.ErrTransientRemote},
		{"serialization", &pgconn.PgError{Code: "40001"}, domain.ErrTransientRemote},
		{"bad password", &pgconn.PgError{Code: "28P01"}, domain.ErrAuthRejected},
		{"syntax", &pgconn.PgError{Code: "42601"}, domain.ErrTerminalRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := classifyDBError("op", tt.err); !errors.Is(err, tt.kind) {
				t.Fatalf("classifyDBError() = %v, want kind %v", err, tt.kind)
			}
		})
	}
	if err := classifyDBError("op", context.Canceled); errors.Is(err, domain.ErrTransientRemote) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled context to pass through, got %v", err)
	}
}
