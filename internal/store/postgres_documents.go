package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docuvault/api/internal/scope"
)

// ------------------------------------------------------------------
// Document categories

const categoryColumns = `c.id, c.organization_id, c.name, c.code, c.description, c.created_by, c.created_at, c.updated_at`

func scanCategory(row interface{ Scan(...any) error }) (DocumentCategory, error) {
	var cat DocumentCategory
	err := row.Scan(&cat.ID, &cat.OrganizationID, &cat.Name, &cat.Code, &cat.Description, &cat.CreatedBy, &cat.CreatedAt, &cat.UpdatedAt)
	return cat, err
}

func (s *PostgresStore) InsertCategory(ctx context.Context, cat DocumentCategory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_categories (id, organization_id, name, code, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cat.ID, cat.OrganizationID, cat.Name, cat.Code, cat.Description, cat.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert category: %w", translate(err))
	}
	return nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, categoryID string) (DocumentCategory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM document_categories c WHERE c.id=$1`, categoryID)
	return scanCategory(row)
}

func (s *PostgresStore) ListCategories(ctx context.Context, sc scope.Scope, organizationID string) ([]DocumentCategory, error) {
	conds := []string{"TRUE"}
	var args []any
	// Categories are organization-wide, so department scopes see the whole
	// organization's set.
	conds, args = sc.Filter(conds, args, "c.organization_id", "")
	if organizationID != "" {
		args = append(args, organizationID)
		conds = append(conds, fmt.Sprintf("c.organization_id = $%d", len(args)))
	}

	query := `SELECT ` + categoryColumns + ` FROM document_categories c WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY c.code`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var items []DocumentCategory
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, cat)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, cat DocumentCategory) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE document_categories
		SET name=$2, code=$3, description=$4, updated_at=NOW()
		WHERE id=$1
	`, cat.ID, cat.Name, cat.Code, cat.Description)
	if err != nil {
		return fmt.Errorf("update category: %w", translate(err))
	}
	return requireRowChanged(res, "category")
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, categoryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_categories WHERE id=$1`, categoryID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRowChanged(res, "category")
}

// EnsureCategories inserts any of the given categories whose code is not yet
// present for the organization. Safe to call repeatedly; returns how many
// rows were actually created.
func (s *PostgresStore) EnsureCategories(ctx context.Context, cats []DocumentCategory) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ensure categories: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, cat := range cats {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO document_categories (id, organization_id, name, code, description, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (organization_id, code) DO NOTHING
		`, cat.ID, cat.OrganizationID, cat.Name, cat.Code, cat.Description, cat.CreatedBy)
		if err != nil {
			return 0, fmt.Errorf("ensure category %s: %w", cat.Code, translate(err))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("ensure category %s: %w", cat.Code, err)
		}
		created += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ensure categories: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListCategoryStats(ctx context.Context, sc scope.Scope, organizationID string) ([]CategoryStats, error) {
	conds := []string{"d.status = 'active'"}
	var args []any
	conds, args = sc.Filter(conds, args, "c.organization_id", "")
	if organizationID != "" {
		args = append(args, organizationID)
		conds = append(conds, fmt.Sprintf("c.organization_id = $%d", len(args)))
	}

	query := `
		SELECT c.id, c.name, c.code, COUNT(d.id), COALESCE(SUM(d.size_bytes), 0)
		FROM document_categories c
		JOIN documents d ON d.category_id = c.id
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY c.id, c.name, c.code
		ORDER BY c.code`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	var items []CategoryStats
	for rows.Next() {
		var stat CategoryStats
		if err := rows.Scan(&stat.CategoryID, &stat.CategoryName, &stat.CategoryCode, &stat.DocCount, &stat.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan category stats: %w", err)
		}
		items = append(items, stat)
	}
	return items, rows.Err()
}

// ------------------------------------------------------------------
// Documents

const documentColumns = `d.id, d.name, d.title, d.description, d.file_type, d.file_category, d.size_bytes, d.file_owner,
	d.category_id, d.organization_id, d.department_id, d.created_by, d.expire_date, d.status, d.archived_at, d.created_at, d.updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.Name, &doc.Title, &doc.Description, &doc.FileType, &doc.FileCategory,
		&doc.SizeBytes, &doc.FileOwner, &doc.CategoryID, &doc.OrganizationID, &doc.DepartmentID,
		&doc.CreatedBy, &doc.ExpireDate, &doc.Status, &doc.ArchivedAt, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, title, description, file_type, file_category, size_bytes, file_owner,
			category_id, organization_id, department_id, created_by, expire_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, doc.ID, doc.Name, doc.Title, doc.Description, doc.FileType, doc.FileCategory, doc.SizeBytes, doc.FileOwner,
		doc.CategoryID, doc.OrganizationID, doc.DepartmentID, doc.CreatedBy, doc.ExpireDate, doc.Status)
	if err != nil {
		return fmt.Errorf("insert document: %w", translate(err))
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.id=$1`, documentID)
	return scanDocument(row)
}

// DocumentFilter narrows ListDocuments beyond the principal's scope.
type DocumentFilter struct {
	Status         string
	CategoryID     string
	OrganizationID string
	DepartmentID   string
	Limit          int
	Offset         int
}

func (s *PostgresStore) ListDocuments(ctx context.Context, sc scope.Scope, filter DocumentFilter) ([]Document, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "d.organization_id", "d.department_id")

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("d.category_id = $%d", len(args)))
	}
	if filter.OrganizationID != "" {
		args = append(args, filter.OrganizationID)
		conds = append(conds, fmt.Sprintf("d.organization_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conds = append(conds, fmt.Sprintf("d.department_id = $%d", len(args)))
	}

	query := `SELECT ` + documentColumns + ` FROM documents d WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY d.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var items []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

// UpdateDocument persists the mutable metadata fields. Lifecycle columns
// (status, archived_at) and the file_owner snapshot are deliberately not
// part of the statement.
func (s *PostgresStore) UpdateDocument(ctx context.Context, doc Document) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET name=$2, title=$3, description=$4, category_id=$5, expire_date=$6, updated_at=NOW()
		WHERE id=$1
	`, doc.ID, doc.Name, doc.Title, doc.Description, doc.CategoryID, doc.ExpireDate)
	if err != nil {
		return fmt.Errorf("update document: %w", translate(err))
	}
	return requireRowChanged(res, "document")
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRowChanged(res, "document")
}

// ArchiveExpiredDocuments is the archive sweep: every active document whose
// expiry has passed flips to archived with archived_at set to now. The
// single UPDATE makes the transition atomic, and rerunning it is a no-op
// because archived rows no longer match. An org filter narrows the sweep
// when an org_admin triggers it by hand.
func (s *PostgresStore) ArchiveExpiredDocuments(ctx context.Context, sc scope.Scope, now time.Time) (int64, error) {
	conds := []string{"status = 'active'", "expire_date IS NOT NULL"}
	args := []any{now}
	conds = append(conds, "expire_date < $1")
	conds, args = sc.Filter(conds, args, "organization_id", "department_id")

	query := fmt.Sprintf(`
		UPDATE documents
		SET status='archived', archived_at=$1, updated_at=$1
		WHERE %s`, strings.Join(conds, " AND "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("archive expired documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive expired documents: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) ListExpiredDocuments(ctx context.Context, sc scope.Scope) ([]ExpiredDocument, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "v.organization_id", "v.department_id")

	query := `
		SELECT v.id, v.name, v.title, v.organization_id, v.organization_name, v.department_id, v.department_name,
			v.expire_date, v.status, v.archived_at
		FROM expired_documents v
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY v.expire_date`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expired documents: %w", err)
	}
	defer rows.Close()

	var items []ExpiredDocument
	for rows.Next() {
		var doc ExpiredDocument
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Title, &doc.OrganizationID, &doc.OrganizationName,
			&doc.DepartmentID, &doc.DepartmentName, &doc.ExpireDate, &doc.Status, &doc.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan expired document: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

// ListExpiringDocuments returns active documents whose expiry falls inside
// [now, now+window).
func (s *PostgresStore) ListExpiringDocuments(ctx context.Context, sc scope.Scope, now time.Time, window time.Duration) ([]Document, error) {
	conds := []string{"d.status = 'active'", "d.expire_date IS NOT NULL", "d.expire_date >= $1", "d.expire_date < $2"}
	args := []any{now, now.Add(window)}
	conds, args = sc.Filter(conds, args, "d.organization_id", "d.department_id")

	query := `SELECT ` + documentColumns + ` FROM documents d WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY d.expire_date`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expiring documents: %w", err)
	}
	defer rows.Close()

	var items []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expiring document: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

// SumStorageBytes totals active-document storage for one organization,
// used by the upload quota check.
func (s *PostgresStore) SumStorageBytes(ctx context.Context, organizationID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(size_bytes), 0) FROM documents
		WHERE organization_id=$1 AND status='active'
	`, organizationID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum storage: %w", err)
	}
	return total, nil
}

// ------------------------------------------------------------------
// Document content fallback (bytea)

func (s *PostgresStore) SaveDocumentBlob(ctx context.Context, documentID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_blobs (document_id, data)
		VALUES ($1, $2)
		ON CONFLICT (document_id) DO UPDATE SET data=EXCLUDED.data
	`, documentID, data)
	if err != nil {
		return fmt.Errorf("save document blob: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocumentBlob(ctx context.Context, documentID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM document_blobs WHERE document_id=$1`, documentID).Scan(&data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *PostgresStore) DeleteDocumentBlob(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_blobs WHERE document_id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document blob: %w", err)
	}
	return nil
}

// ------------------------------------------------------------------
// Share links

func (s *PostgresStore) InsertShare(ctx context.Context, share DocumentShare) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_shares (id, document_id, token, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, share.ID, share.DocumentID, share.Token, share.CreatedBy, share.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert share: %w", translate(err))
	}
	return nil
}

// GetShareByToken resolves an unexpired share link.
func (s *PostgresStore) GetShareByToken(ctx context.Context, token string) (DocumentShare, error) {
	var share DocumentShare
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, token, created_by, expires_at, created_at
		FROM document_shares
		WHERE token=$1 AND (expires_at IS NULL OR expires_at > NOW())
	`, token).Scan(&share.ID, &share.DocumentID, &share.Token, &share.CreatedBy, &share.ExpiresAt, &share.CreatedAt)
	if err != nil {
		return DocumentShare{}, err
	}
	return share, nil
}

func (s *PostgresStore) ListShares(ctx context.Context, documentID string) ([]DocumentShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, token, created_by, expires_at, created_at
		FROM document_shares
		WHERE document_id=$1
		ORDER BY created_at DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var items []DocumentShare
	for rows.Next() {
		var share DocumentShare
		if err := rows.Scan(&share.ID, &share.DocumentID, &share.Token, &share.CreatedBy, &share.ExpiresAt, &share.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		items = append(items, share)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteShare(ctx context.Context, documentID, shareID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_shares WHERE id=$1 AND document_id=$2`, shareID, documentID)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return requireRowChanged(res, "share")
}
