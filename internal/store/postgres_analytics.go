package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docuvault/api/internal/scope"
)

func (s *PostgresStore) countWhere(ctx context.Context, table string, conds []string, args []any) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, strings.Join(conds, " AND "))
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// SummaryCounts gathers the dashboard numbers, each restricted to the
// caller's scope.
func (s *PostgresStore) SummaryCounts(ctx context.Context, sc scope.Scope, now time.Time) (SummaryCounts, error) {
	var out SummaryCounts
	var err error

	conds, args := sc.Filter([]string{"TRUE"}, nil, "id", "")
	if out.Organizations, err = s.countWhere(ctx, "organizations", conds, args); err != nil {
		return out, err
	}

	conds, args = sc.Filter([]string{"TRUE"}, nil, "organization_id", "id")
	if out.Departments, err = s.countWhere(ctx, "departments", conds, args); err != nil {
		return out, err
	}

	conds, args = sc.Filter([]string{"TRUE"}, nil, "organization_id", "department_id")
	if out.Users, err = s.countWhere(ctx, "users", conds, args); err != nil {
		return out, err
	}

	conds, args = sc.Filter([]string{"status = 'active'"}, nil, "organization_id", "department_id")
	if out.ActiveDocuments, err = s.countWhere(ctx, "documents", conds, args); err != nil {
		return out, err
	}

	conds, args = sc.Filter([]string{"status = 'archived'"}, nil, "organization_id", "department_id")
	if out.ArchivedDocuments, err = s.countWhere(ctx, "documents", conds, args); err != nil {
		return out, err
	}

	args = []any{now, now.Add(7 * 24 * time.Hour)}
	conds = []string{"status = 'active'", "expire_date IS NOT NULL", "expire_date >= $1", "expire_date < $2"}
	conds, args = sc.Filter(conds, args, "organization_id", "department_id")
	if out.ExpiringSoon, err = s.countWhere(ctx, "documents", conds, args); err != nil {
		return out, err
	}

	conds, args = sc.Filter([]string{"status = 'active'"}, nil, "organization_id", "department_id")
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM documents WHERE ` + strings.Join(conds, " AND ")
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&out.StorageBytes); err != nil {
		return out, fmt.Errorf("sum dashboard storage: %w", err)
	}

	return out, nil
}

// StorageByOrganization breaks active-document storage down per
// organization.
func (s *PostgresStore) StorageByOrganization(ctx context.Context, sc scope.Scope) ([]StorageUsage, error) {
	conds := []string{"d.status = 'active'"}
	var args []any
	conds, args = sc.Filter(conds, args, "d.organization_id", "d.department_id")

	query := `
		SELECT o.id, o.name, o.code, COALESCE(SUM(d.size_bytes), 0), COUNT(d.id)
		FROM organizations o
		JOIN documents d ON d.organization_id = o.id
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY o.id, o.name, o.code
		ORDER BY o.name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage by organization: %w", err)
	}
	defer rows.Close()

	var items []StorageUsage
	for rows.Next() {
		var usage StorageUsage
		if err := rows.Scan(&usage.OrganizationID, &usage.OrganizationName, &usage.OrganizationCode, &usage.TotalBytes, &usage.DocCount); err != nil {
			return nil, fmt.Errorf("scan storage usage: %w", err)
		}
		items = append(items, usage)
	}
	return items, rows.Err()
}

// DocsByFileCategory breaks active documents down by the derived file
// bucket (Photo, PDF, Word...).
func (s *PostgresStore) DocsByFileCategory(ctx context.Context, sc scope.Scope) ([]FileCategoryStats, error) {
	conds := []string{"d.status = 'active'"}
	var args []any
	conds, args = sc.Filter(conds, args, "d.organization_id", "d.department_id")

	query := `
		SELECT d.file_category, COUNT(*), COALESCE(SUM(d.size_bytes), 0)
		FROM documents d
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY d.file_category
		ORDER BY COUNT(*) DESC, d.file_category`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents by file category: %w", err)
	}
	defer rows.Close()

	var items []FileCategoryStats
	for rows.Next() {
		var stat FileCategoryStats
		if err := rows.Scan(&stat.FileCategory, &stat.DocCount, &stat.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan file category stats: %w", err)
		}
		items = append(items, stat)
	}
	return items, rows.Err()
}
