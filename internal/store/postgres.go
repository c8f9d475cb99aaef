package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docuvault/api/internal/scope"
)

// Sentinel errors for constraint violations. Callers match with errors.Is
// and turn them into the matching domain error; raw driver errors never
// leave this package for constraint failures.
var (
	ErrDuplicate  = errors.New("duplicate key")
	ErrForeignKey = errors.New("invalid reference")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// translate maps Postgres constraint violations onto the package sentinels,
// keeping the violated constraint name for the message.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w (%s)", ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w (%s)", ErrForeignKey, pgErr.ConstraintName)
		}
	}
	return err
}

// ------------------------------------------------------------------
// Organizations

const organizationColumns = `id, name, code, description, is_active, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.Code, &org.Description, &org.IsActive, &org.CreatedAt, &org.UpdatedAt)
	return org, err
}

// CreateOrganizationWithLicense inserts the organization and its trial
// license in one transaction. Either both rows exist afterwards or neither.
func (s *PostgresStore) CreateOrganizationWithLicense(ctx context.Context, org Organization, lic OrganizationLicense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create organization: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, code, description, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, org.ID, org.Name, org.Code, org.Description, org.IsActive); err != nil {
		return fmt.Errorf("insert organization: %w", translate(err))
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO organization_licenses (id, organization_id, subscription_status, start_date, end_date, trial_days, max_users, max_storage_gb)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, lic.ID, lic.OrganizationID, lic.SubscriptionStatus, lic.StartDate, lic.EndDate, lic.TrialDays, lic.MaxUsers, lic.MaxStorageGB); err != nil {
		return fmt.Errorf("insert license: %w", translate(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, organizationID string) (Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id=$1`, organizationID)
	return scanOrganization(row)
}

func (s *PostgresStore) ListOrganizations(ctx context.Context, sc scope.Scope) ([]Organization, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "id", "")

	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var items []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		items = append(items, org)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateOrganization(ctx context.Context, org Organization) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations
		SET name=$2, code=$3, description=$4, is_active=$5, updated_at=NOW()
		WHERE id=$1
	`, org.ID, org.Name, org.Code, org.Description, org.IsActive)
	if err != nil {
		return fmt.Errorf("update organization: %w", translate(err))
	}
	return requireRowChanged(res, "organization")
}

func (s *PostgresStore) DeleteOrganization(ctx context.Context, organizationID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id=$1`, organizationID)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	return requireRowChanged(res, "organization")
}

func (s *PostgresStore) CountDepartmentsInOrg(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments WHERE organization_id=$1`, organizationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	return count, nil
}

// ------------------------------------------------------------------
// Departments

const departmentColumns = `d.id, d.organization_id, d.name, d.code, d.description, d.head_user_id, d.is_active, d.created_at, d.updated_at`

func scanDepartment(row interface{ Scan(...any) error }, withCounts bool) (Department, error) {
	var dept Department
	dest := []any{&dept.ID, &dept.OrganizationID, &dept.Name, &dept.Code, &dept.Description, &dept.HeadUserID, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt}
	if withCounts {
		dest = append(dest, &dept.MemberCount, &dept.DocumentCount)
	}
	err := row.Scan(dest...)
	return dept, err
}

func (s *PostgresStore) InsertDepartment(ctx context.Context, dept Department) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, organization_id, name, code, description, head_user_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, dept.ID, dept.OrganizationID, dept.Name, dept.Code, dept.Description, dept.HeadUserID, dept.IsActive)
	if err != nil {
		return fmt.Errorf("insert department: %w", translate(err))
	}
	return nil
}

func (s *PostgresStore) GetDepartment(ctx context.Context, departmentID string) (Department, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments d WHERE d.id=$1`, departmentID)
	return scanDepartment(row, false)
}

func (s *PostgresStore) ListDepartments(ctx context.Context, sc scope.Scope) ([]Department, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "d.organization_id", "d.id")

	query := `
		SELECT ` + departmentColumns + `,
			(SELECT COUNT(*) FROM users u WHERE u.department_id = d.id) AS member_count,
			(SELECT COUNT(*) FROM documents doc WHERE doc.department_id = d.id AND doc.status = 'active') AS document_count
		FROM departments d
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY d.name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var items []Department
	for rows.Next() {
		dept, err := scanDepartment(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		items = append(items, dept)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateDepartment(ctx context.Context, dept Department) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE departments
		SET name=$2, code=$3, description=$4, head_user_id=$5, is_active=$6, updated_at=NOW()
		WHERE id=$1
	`, dept.ID, dept.Name, dept.Code, dept.Description, dept.HeadUserID, dept.IsActive)
	if err != nil {
		return fmt.Errorf("update department: %w", translate(err))
	}
	return requireRowChanged(res, "department")
}

func (s *PostgresStore) DeleteDepartment(ctx context.Context, departmentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id=$1`, departmentID)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return requireRowChanged(res, "department")
}

// DepartmentCounts returns the live member and active-document counts used
// by the delete guard.
func (s *PostgresStore) DepartmentCounts(ctx context.Context, departmentID string) (members, documents int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE department_id=$1),
			(SELECT COUNT(*) FROM documents WHERE department_id=$1)
	`, departmentID).Scan(&members, &documents)
	if err != nil {
		return 0, 0, fmt.Errorf("count department rows: %w", err)
	}
	return members, documents, nil
}

// ------------------------------------------------------------------
// Users

const userColumns = `u.id, u.email, u.password_hash, u.display_name, u.role, u.organization_id, u.department_id, u.is_active, u.created_at, u.updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Role,
		&user.OrganizationID, &user.DepartmentID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, role, organization_id, department_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role, user.OrganizationID, user.DepartmentID, user.IsActive)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email)=LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) ListUsers(ctx context.Context, sc scope.Scope) ([]User, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "u.organization_id", "u.department_id")

	query := `SELECT ` + userColumns + ` FROM users u WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY u.display_name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email=$2, display_name=$3, role=$4, organization_id=$5, department_id=$6, is_active=$7, updated_at=NOW()
		WHERE id=$1
	`, user.ID, user.Email, user.DisplayName, user.Role, user.OrganizationID, user.DepartmentID, user.IsActive)
	if err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	return requireRowChanged(res, "user")
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRowChanged(res, "user")
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowChanged(res, "user")
}

// ------------------------------------------------------------------
// Refresh sessions (Postgres fallback when Redis is absent)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.expires_at > NOW()
	`
	return scanUser(s.db.QueryRowContext(ctx, query, tokenHash))
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ------------------------------------------------------------------
// Password resets

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

// GetPasswordReset returns the user behind an unexpired, unused token.
func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// ------------------------------------------------------------------
// Activity log

func (s *PostgresStore) InsertActivity(ctx context.Context, entry ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, user_name, organization_id, action, entity_type, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.UserID, entry.UserName, entry.OrganizationID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, sc scope.Scope, limit, offset int) ([]ActivityLog, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "a.organization_id", "")
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.user_name, a.organization_id, a.action, a.entity_type, a.entity_id, a.detail, a.created_at
		FROM activity_log a
		WHERE %s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d`, strings.Join(conds, " AND "), len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var items []ActivityLog
	for rows.Next() {
		var entry ActivityLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &entry.OrganizationID,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, entry)
	}
	return items, rows.Err()
}

// ------------------------------------------------------------------

func requireRowChanged(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", entity, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
