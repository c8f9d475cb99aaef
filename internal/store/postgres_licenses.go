package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"docuvault/api/internal/scope"
)

const licenseColumns = `id, organization_id, subscription_status, start_date, end_date, trial_days, max_users, max_storage_gb, last_checked, created_at, updated_at`

func scanLicense(row interface{ Scan(...any) error }) (OrganizationLicense, error) {
	var lic OrganizationLicense
	err := row.Scan(&lic.ID, &lic.OrganizationID, &lic.SubscriptionStatus, &lic.StartDate, &lic.EndDate,
		&lic.TrialDays, &lic.MaxUsers, &lic.MaxStorageGB, &lic.LastChecked, &lic.CreatedAt, &lic.UpdatedAt)
	return lic, err
}

func (s *PostgresStore) GetLicenseByOrg(ctx context.Context, organizationID string) (OrganizationLicense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM organization_licenses WHERE organization_id=$1`, organizationID)
	return scanLicense(row)
}

// RenewLicense extends the license by the given number of days. The new
// end date counts from whichever is later, the current end date or now, so
// renewing an expired license starts the paid window today instead of
// backdating it. The status always returns to active.
func (s *PostgresStore) RenewLicense(ctx context.Context, organizationID string, days int) (OrganizationLicense, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE organization_licenses
		SET end_date = GREATEST(end_date, NOW()) + make_interval(days => $2),
			subscription_status = 'active',
			updated_at = NOW()
		WHERE organization_id = $1
		RETURNING `+licenseColumns, organizationID, days)
	return scanLicense(row)
}

// ExpireOverdueLicenses flips every overdue active or trial license to
// expired and stamps last_checked on all licenses, in one transaction.
// Rerunning it finds nothing left to expire.
func (s *PostgresStore) ExpireOverdueLicenses(ctx context.Context, now time.Time) (expired, checked int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin license sweep: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE organization_licenses
		SET subscription_status='expired', updated_at=$1
		WHERE end_date < $1 AND subscription_status IN ('active', 'trial')
	`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("expire licenses: %w", err)
	}
	expired, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("expire licenses: %w", err)
	}

	res, err = tx.ExecContext(ctx, `UPDATE organization_licenses SET last_checked=$1`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("touch licenses: %w", err)
	}
	checked, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("touch licenses: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit license sweep: %w", err)
	}
	return expired, checked, nil
}

// ListOrganizationsMissingLicense returns the ids of organizations that
// have no license row, the backfill candidates.
func (s *PostgresStore) ListOrganizationsMissingLicense(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id FROM organizations o
		LEFT JOIN organization_licenses l ON l.organization_id = o.id
		WHERE l.id IS NULL
		ORDER BY o.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list unlicensed organizations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan organization id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EnsureLicenses inserts the given license rows, skipping any organization
// that already holds one. One transaction; returns how many were created.
// The UNIQUE constraint on organization_id is what makes repeated backfills
// converge on exactly one license per organization.
func (s *PostgresStore) EnsureLicenses(ctx context.Context, lics []OrganizationLicense) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin license backfill: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, lic := range lics {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO organization_licenses (id, organization_id, subscription_status, start_date, end_date, trial_days, max_users, max_storage_gb)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (organization_id) DO NOTHING
		`, lic.ID, lic.OrganizationID, lic.SubscriptionStatus, lic.StartDate, lic.EndDate, lic.TrialDays, lic.MaxUsers, lic.MaxStorageGB)
		if err != nil {
			return 0, fmt.Errorf("backfill license for %s: %w", lic.OrganizationID, translate(err))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("backfill license for %s: %w", lic.OrganizationID, err)
		}
		created += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit license backfill: %w", err)
	}
	return created, nil
}

// ListLicenseStatus reads the monitoring view. Organizations without a
// license surface with status "none" so the backfill gap is visible.
func (s *PostgresStore) ListLicenseStatus(ctx context.Context, sc scope.Scope) ([]LicenseStatus, error) {
	conds := []string{"TRUE"}
	var args []any
	conds, args = sc.Filter(conds, args, "v.organization_id", "")

	query := `
		SELECT v.organization_id, v.organization_name, v.organization_code,
			COALESCE(v.subscription_status, 'none'),
			v.start_date, v.end_date,
			COALESCE(v.days_remaining, 0), COALESCE(v.is_active, FALSE),
			v.current_users, COALESCE(v.max_users, 0), COALESCE(v.max_storage_gb, 0),
			v.last_checked
		FROM organization_license_status v
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY v.organization_name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list license status: %w", err)
	}
	defer rows.Close()

	var items []LicenseStatus
	for rows.Next() {
		var st LicenseStatus
		var start, end sql.NullTime
		if err := rows.Scan(&st.OrganizationID, &st.OrganizationName, &st.OrganizationCode,
			&st.Status, &start, &end, &st.DaysRemaining, &st.IsActive,
			&st.CurrentUsers, &st.MaxUsers, &st.MaxStorageGB, &st.LastChecked); err != nil {
			return nil, fmt.Errorf("scan license status: %w", err)
		}
		st.StartDate = start.Time
		st.EndDate = end.Time
		items = append(items, st)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CountUsersInOrg(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE organization_id=$1`, organizationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
