package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs the query against the generated fts column with
// plainto_tsquery and ts_rank, using ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	conds := []string{"d.fts @@ " + tsQuery}

	conds, args = q.Scope.Filter(conds, args, "d.organization_id", "d.department_id")
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if q.CategoryID != "" {
		args = append(args, q.CategoryID)
		conds = append(conds, fmt.Sprintf("d.category_id = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	countSQL := fmt.Sprintf(`SELECT count(*) FROM documents d WHERE %s`, where)

	dataSQL := fmt.Sprintf(`
		SELECT d.id, d.name, d.title,
			ts_headline('english', coalesce(d.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			d.organization_id, d.department_id, coalesce(d.category_id, ''), d.status
		FROM documents d
		WHERE %s
		ORDER BY ts_rank(d.fts, %s) DESC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Title, &r.Snippet, &r.OrganizationID, &r.DepartmentID, &r.CategoryID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all indexable documents for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, title, coalesce(description, ''), file_owner, coalesce(category_id, ''),
			organization_id, department_id, status, file_category
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	documents := make([]DocumentRecord, 0)
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.Name, &d.Title, &d.Description, &d.FileOwner, &d.CategoryID,
			&d.OrganizationID, &d.DepartmentID, &d.Status, &d.FileCategory); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return documents, nil
}
