package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuvault/api/internal/scope"
)

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "title", "description", "file_type", "file_category", "size_bytes", "file_owner",
		"category_id", "organization_id", "department_id", "created_by", "expire_date", "status",
		"archived_at", "created_at", "updated_at",
	})
}

func addDocumentRow(rows *sqlmock.Rows, id, title string) *sqlmock.Rows {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, title+".pdf", title, "", "application/pdf", "PDF", int64(2048), "Test User",
		nil, "org_1", "dept_1", "usr_1", nil, "active",
		nil, created, created,
	)
}

// TestListDocuments_ScopeConditionsPrecedeFilters locks the placeholder
// order: scope columns first, then the request filters, then paging.
func TestListDocuments_ScopeConditionsPrecedeFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM documents d WHERE TRUE AND d.organization_id = \$1 AND d.department_id = \$2 AND d.status = \$3 AND d.category_id = \$4 ORDER BY d.created_at DESC LIMIT \$5`).
		WithArgs("org_1", "dept_1", "active", "cat_1", 50).
		WillReturnRows(addDocumentRow(addDocumentRow(documentRows(), "doc_1", "Lease"), "doc_2", "Invoice"))

	store := NewPostgresStore(db)
	sc := scope.Scope{OrganizationID: "org_1", DepartmentID: "dept_1", UserID: "usr_1"}
	docs, err := store.ListDocuments(context.Background(), sc, DocumentFilter{Status: "active", CategoryID: "cat_1", Limit: 50})

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc_1", docs[0].ID)
	assert.Equal(t, "Invoice", docs[1].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestListDocuments_EmptyScopeMatchesNothing verifies that a scope without
// a tenant compiles to a FALSE predicate instead of a full-table read.
func TestListDocuments_EmptyScopeMatchesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM documents d WHERE TRUE AND FALSE ORDER BY d.created_at DESC`).
		WillReturnRows(documentRows())

	store := NewPostgresStore(db)
	docs, err := store.ListDocuments(context.Background(), scope.Scope{}, DocumentFilter{})

	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocument_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM documents d WHERE d.id=\$1`).
		WithArgs("doc_missing").
		WillReturnRows(documentRows())

	store := NewPostgresStore(db)
	_, err = store.GetDocument(context.Background(), "doc_missing")

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDocument_TranslatesForeignKeyViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO documents`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "documents_category_id_fkey"})

	store := NewPostgresStore(db)
	err = store.InsertDocument(context.Background(), Document{ID: "doc_1", OrganizationID: "org_1", DepartmentID: "dept_1", Status: "active"})

	assert.ErrorIs(t, err, ErrForeignKey)
	assert.Contains(t, err.Error(), "documents_category_id_fkey")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCategory_TranslatesDuplicateCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO document_categories`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "document_categories_organization_id_code_key"})

	store := NewPostgresStore(db)
	err = store.InsertCategory(context.Background(), DocumentCategory{ID: "cat_1", OrganizationID: "org_1", Name: "Contracts", Code: "CONTRACT"})

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "document_categories_organization_id_code_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocument_MissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE documents`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPostgresStore(db)
	err = store.UpdateDocument(context.Background(), Document{ID: "doc_missing", Title: "New Title"})

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveExpiredDocuments_ScopesUpdate(t *testing.T) {
	now := time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC)

	t.Run("all organizations", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`SET status='archived', archived_at=\$1, updated_at=\$1`).
			WithArgs(now).
			WillReturnResult(sqlmock.NewResult(0, 9))

		store := NewPostgresStore(db)
		archived, err := store.ArchiveExpiredDocuments(context.Background(), scope.Scope{All: true}, now)

		require.NoError(t, err)
		assert.Equal(t, int64(9), archived)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("one department", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`SET status='archived', archived_at=\$1, updated_at=\$1`).
			WithArgs(now, "org_1", "dept_1").
			WillReturnResult(sqlmock.NewResult(0, 2))

		store := NewPostgresStore(db)
		sc := scope.Scope{OrganizationID: "org_1", DepartmentID: "dept_1", UserID: "usr_1"}
		archived, err := store.ArchiveExpiredDocuments(context.Background(), sc, now)

		require.NoError(t, err)
		assert.Equal(t, int64(2), archived)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSumStorageBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(size_bytes\), 0\) FROM documents`).
		WithArgs("org_1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(123456)))

	store := NewPostgresStore(db)
	total, err := store.SumStorageBytes(context.Background(), "org_1")

	require.NoError(t, err)
	assert.Equal(t, int64(123456), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestGetShareByToken_ExpiryFilterInStatement pins the expiry check to the
// query itself so expired links fail closed without application logic.
func TestGetShareByToken_ExpiryFilterInStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE token=\$1 AND \(expires_at IS NULL OR expires_at > NOW\(\)\)`).
		WithArgs("sharetoken").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "token", "created_by", "expires_at", "created_at"}).
			AddRow("shr_1", "doc_1", "sharetoken", "usr_1", nil, created))

	store := NewPostgresStore(db)
	share, err := store.GetShareByToken(context.Background(), "sharetoken")

	require.NoError(t, err)
	assert.Equal(t, "doc_1", share.DocumentID)
	assert.Nil(t, share.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShareByToken_UnknownToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE token=\$1 AND \(expires_at IS NULL OR expires_at > NOW\(\)\)`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "token", "created_by", "expires_at", "created_at"}))

	store := NewPostgresStore(db)
	_, err = store.GetShareByToken(context.Background(), "gone")

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
