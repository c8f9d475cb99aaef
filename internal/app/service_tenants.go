package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuvault/api/internal/authpw"
	"docuvault/api/internal/rbac"
	"docuvault/api/internal/store"
	"docuvault/api/internal/util"
)

// Trial license defaults applied at organization creation and by the
// backfill.
const (
	trialDays           = 30
	defaultMaxUsers     = 10
	defaultMaxStorageGB = 5
)

const (
	minRenewalDays = 1
	maxRenewalDays = 3650
)

type OrganizationInput struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	IsActive    *bool  `json:"isActive"`
}

type DepartmentInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	Description    string `json:"description"`
	HeadUserID     string `json:"headUserId"`
	IsActive       *bool  `json:"isActive"`
}

type UserInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	DisplayName    string `json:"displayName"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
	DepartmentID   string `json:"departmentId"`
	IsActive       *bool  `json:"isActive"`
}

func newTrialLicense(organizationID string, now time.Time) store.OrganizationLicense {
	return store.OrganizationLicense{
		ID:                 util.NewID("lic"),
		OrganizationID:     organizationID,
		SubscriptionStatus: "trial",
		StartDate:          now,
		EndDate:            now.AddDate(0, 0, trialDays),
		TrialDays:          trialDays,
		MaxUsers:           defaultMaxUsers,
		MaxStorageGB:       defaultMaxStorageGB,
	}
}

// ------------------------------------------------------------------
// Organizations

// CreateOrganization inserts the organization together with its trial
// license; the two rows commit or fail as one.
func (s *Service) CreateOrganization(ctx context.Context, session Session, in OrganizationInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageOrgs) {
		return nil, authorizationError("Forbidden")
	}
	name := strings.TrimSpace(in.Name)
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if name == "" {
		return nil, validationError("name is required")
	}
	if code == "" {
		return nil, validationError("code is required")
	}

	now := time.Now()
	org := store.Organization{
		ID:          util.NewID("org"),
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(in.Description),
		IsActive:    boolOr(in.IsActive, true),
	}
	if err := s.store.CreateOrganizationWithLicense(ctx, org, newTrialLicense(org.ID, now)); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("organization code already exists")
		}
		return nil, err
	}
	if _, err := s.store.EnsureCategories(ctx, defaultCategoriesFor(org.ID, strPtr(session.UserID))); err != nil {
		s.logger.Warn("default categories not seeded",
			zap.String("organization_id", org.ID), zap.Error(err))
	}
	s.logActivity(ctx, session, org.ID, "create", "organization", org.ID, name)

	fresh, err := s.store.GetOrganization(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	lic, err := s.store.GetLicenseByOrg(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"organization": orgJSON(fresh), "license": licenseJSON(lic, now)}, nil
}

func (s *Service) ListOrganizations(ctx context.Context, session Session) (map[string]any, error) {
	orgs, err := s.store.ListOrganizations(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(orgs))
	for _, org := range orgs {
		items = append(items, orgJSON(org))
	}
	return map[string]any{"organizations": items}, nil
}

func (s *Service) GetOrganization(ctx context.Context, session Session, organizationID string) (map[string]any, error) {
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if !session.scope().AllowsOrg(org.ID) {
		return nil, authorizationError("Forbidden")
	}
	payload := map[string]any{"organization": orgJSON(org)}
	if lic, err := s.store.GetLicenseByOrg(ctx, org.ID); err == nil {
		payload["license"] = licenseJSON(lic, time.Now())
	}
	return payload, nil
}

func (s *Service) UpdateOrganization(ctx context.Context, session Session, organizationID string, in OrganizationInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageOrgs) {
		return nil, authorizationError("Forbidden")
	}
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if name == "" {
		return nil, validationError("name is required")
	}
	if code == "" {
		return nil, validationError("code is required")
	}
	org.Name = name
	org.Code = code
	org.Description = strings.TrimSpace(in.Description)
	if in.IsActive != nil {
		org.IsActive = *in.IsActive
	}
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("organization code already exists")
		}
		return nil, err
	}
	s.logActivity(ctx, session, org.ID, "update", "organization", org.ID, name)

	fresh, err := s.store.GetOrganization(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"organization": orgJSON(fresh)}, nil
}

// DeleteOrganization refuses to cascade while departments exist unless
// force is set.
func (s *Service) DeleteOrganization(ctx context.Context, session Session, organizationID string, force bool) error {
	if !rbac.Can(session.Role, rbac.ActionManageOrgs) {
		return authorizationError("Forbidden")
	}
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	if !force {
		count, err := s.store.CountDepartmentsInOrg(ctx, organizationID)
		if err != nil {
			return err
		}
		if count > 0 {
			return domainError(http.StatusConflict, "CONFLICT",
				"organization still has departments; pass force=true to cascade",
				map[string]any{"departments": count})
		}
	}
	if err := s.store.DeleteOrganization(ctx, organizationID); err != nil {
		return err
	}
	s.logActivity(ctx, session, organizationID, "delete", "organization", organizationID, org.Name)
	return nil
}

// ------------------------------------------------------------------
// Licenses

func (s *Service) GetOrganizationLicense(ctx context.Context, session Session, organizationID string) (map[string]any, error) {
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	if !session.scope().AllowsOrg(organizationID) {
		return nil, authorizationError("Forbidden")
	}
	lic, err := s.store.GetLicenseByOrg(ctx, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("organization has no license")
		}
		return nil, err
	}
	return map[string]any{"license": licenseJSON(lic, time.Now())}, nil
}

// RenewOrganizationLicense extends the license by the given days from
// max(end_date, now) and returns the status to active.
func (s *Service) RenewOrganizationLicense(ctx context.Context, session Session, organizationID string, days int) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageLicenses) {
		return nil, authorizationError("Forbidden")
	}
	if days < minRenewalDays || days > maxRenewalDays {
		return nil, validationError(fmt.Sprintf("days must be between %d and %d", minRenewalDays, maxRenewalDays))
	}
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	lic, err := s.store.RenewLicense(ctx, organizationID, days)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("organization has no license; run the license backfill")
		}
		return nil, err
	}
	s.logActivity(ctx, session, organizationID, "renew_license", "license", lic.ID, fmt.Sprintf("%d days", days))
	return map[string]any{"license": licenseJSON(lic, time.Now())}, nil
}

// LicenseStatus surfaces the organization_license_status monitoring view,
// scoped to the caller.
func (s *Service) LicenseStatus(ctx context.Context, session Session) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionViewAnalytics) {
		return nil, authorizationError("Forbidden")
	}
	rows, err := s.store.ListLicenseStatus(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]any{
			"organizationId":   row.OrganizationID,
			"organizationName": row.OrganizationName,
			"organizationCode": row.OrganizationCode,
			"status":           row.Status,
			"startDate":        timeOrNil(row.StartDate),
			"endDate":          timeOrNil(row.EndDate),
			"daysRemaining":    row.DaysRemaining,
			"isActive":         row.IsActive,
			"currentUsers":     row.CurrentUsers,
			"maxUsers":         row.MaxUsers,
			"maxStorageGb":     row.MaxStorageGB,
			"lastChecked":      row.LastChecked,
		})
	}
	return map[string]any{"organizations": items}, nil
}

// BackfillLicenses provisions a default trial license for every
// organization that lacks one. Repeated runs converge on exactly one
// license per organization.
func (s *Service) BackfillLicenses(ctx context.Context, session Session) (map[string]any, error) {
	if session.Role != rbac.RoleSuperadmin {
		return nil, authorizationError("Forbidden")
	}
	created, err := s.backfillLicenses(ctx)
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, session, "", "backfill_licenses", "license", "", fmt.Sprintf("%d created", created))
	return map[string]any{"created": created}, nil
}

func (s *Service) backfillLicenses(ctx context.Context) (int, error) {
	missing, err := s.store.ListOrganizationsMissingLicense(ctx)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}
	now := time.Now()
	lics := make([]store.OrganizationLicense, 0, len(missing))
	for _, organizationID := range missing {
		lics = append(lics, newTrialLicense(organizationID, now))
	}
	return s.store.EnsureLicenses(ctx, lics)
}

// RunLicenseSweep expires overdue active and trial licenses and touches
// last_checked on every license. Invoked by the scheduler and the
// standalone sweeper; safe to run repeatedly.
func (s *Service) RunLicenseSweep(ctx context.Context) (expired, checked int64, err error) {
	expired, checked, err = s.store.ExpireOverdueLicenses(ctx, time.Now())
	if err != nil {
		return 0, 0, err
	}
	s.logger.Info("license sweep complete",
		zap.Int64("expired", expired),
		zap.Int64("checked", checked),
	)
	return expired, checked, nil
}

// ------------------------------------------------------------------
// Departments

func (s *Service) CreateDepartment(ctx context.Context, session Session, in DepartmentInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageDepts) {
		return nil, authorizationError("Forbidden")
	}
	organizationID := strings.TrimSpace(in.OrganizationID)
	if session.Role != rbac.RoleSuperadmin {
		organizationID = session.OrganizationID
	}
	if organizationID == "" {
		return nil, validationError("organizationId is required")
	}
	if !session.scope().AllowsOrg(organizationID) {
		return nil, authorizationError("Forbidden")
	}
	name := strings.TrimSpace(in.Name)
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if name == "" {
		return nil, validationError("name is required")
	}
	if code == "" {
		return nil, validationError("code is required")
	}
	headID, err := s.resolveDepartmentHead(ctx, in.HeadUserID, organizationID)
	if err != nil {
		return nil, err
	}

	dept := store.Department{
		ID:             util.NewID("dept"),
		OrganizationID: organizationID,
		Name:           name,
		Code:           code,
		Description:    strings.TrimSpace(in.Description),
		HeadUserID:     headID,
		IsActive:       boolOr(in.IsActive, true),
	}
	if err := s.store.InsertDepartment(ctx, dept); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("department code already exists in this organization")
		}
		if errors.Is(err, store.ErrForeignKey) {
			return nil, validationError("organizationId does not exist")
		}
		return nil, err
	}
	s.logActivity(ctx, session, organizationID, "create", "department", dept.ID, name)

	fresh, err := s.store.GetDepartment(ctx, dept.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"department": deptJSON(fresh)}, nil
}

func (s *Service) resolveDepartmentHead(ctx context.Context, headUserID, organizationID string) (*string, error) {
	id := strings.TrimSpace(headUserID)
	if id == "" {
		return nil, nil
	}
	head, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("headUserId does not exist")
		}
		return nil, err
	}
	if strVal(head.OrganizationID) != organizationID {
		return nil, integrityError("department head must belong to the same organization")
	}
	return &head.ID, nil
}

func (s *Service) ListDepartments(ctx context.Context, session Session) (map[string]any, error) {
	depts, err := s.store.ListDepartments(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(depts))
	for _, dept := range depts {
		items = append(items, deptJSON(dept))
	}
	return map[string]any{"departments": items}, nil
}

func (s *Service) GetDepartment(ctx context.Context, session Session, departmentID string) (map[string]any, error) {
	dept, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if !session.scope().AllowsDept(dept.OrganizationID, dept.ID) {
		return nil, authorizationError("Forbidden")
	}
	return map[string]any{"department": deptJSON(dept)}, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, session Session, departmentID string, in DepartmentInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageDepts) {
		return nil, authorizationError("Forbidden")
	}
	dept, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if !session.scope().AllowsOrg(dept.OrganizationID) {
		return nil, authorizationError("Forbidden")
	}
	name := strings.TrimSpace(in.Name)
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if name == "" {
		return nil, validationError("name is required")
	}
	if code == "" {
		return nil, validationError("code is required")
	}
	headID, err := s.resolveDepartmentHead(ctx, in.HeadUserID, dept.OrganizationID)
	if err != nil {
		return nil, err
	}
	dept.Name = name
	dept.Code = code
	dept.Description = strings.TrimSpace(in.Description)
	dept.HeadUserID = headID
	if in.IsActive != nil {
		dept.IsActive = *in.IsActive
	}
	if err := s.store.UpdateDepartment(ctx, dept); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("department code already exists in this organization")
		}
		return nil, err
	}
	s.logActivity(ctx, session, dept.OrganizationID, "update", "department", dept.ID, name)

	fresh, err := s.store.GetDepartment(ctx, dept.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"department": deptJSON(fresh)}, nil
}

// DeleteDepartment refuses while members or documents remain, so nothing
// cascades away silently.
func (s *Service) DeleteDepartment(ctx context.Context, session Session, departmentID string) error {
	if !rbac.Can(session.Role, rbac.ActionManageDepts) {
		return authorizationError("Forbidden")
	}
	dept, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		return err
	}
	if !session.scope().AllowsOrg(dept.OrganizationID) {
		return authorizationError("Forbidden")
	}
	members, documents, err := s.store.DepartmentCounts(ctx, departmentID)
	if err != nil {
		return err
	}
	if members > 0 || documents > 0 {
		return domainError(http.StatusConflict, "CONFLICT",
			"department still has members or documents",
			map[string]any{"members": members, "documents": documents})
	}
	if err := s.store.DeleteDepartment(ctx, departmentID); err != nil {
		return err
	}
	s.logActivity(ctx, session, dept.OrganizationID, "delete", "department", departmentID, dept.Name)
	return nil
}

// ------------------------------------------------------------------
// Users

// CreateUser enforces the role ceiling (rbac.Assignable), pins org_admin
// and dept_head creations to their own tenant, and checks the license
// max_users quota before inserting.
func (s *Service) CreateUser(ctx context.Context, session Session, in UserInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageUsers) {
		return nil, authorizationError("Forbidden")
	}
	role := rbac.Normalize(strings.TrimSpace(in.Role))
	if !rbac.Assignable(session.Role, role) {
		return nil, authorizationError("cannot assign that role")
	}

	emailAddr := strings.ToLower(strings.TrimSpace(in.Email))
	displayName := strings.TrimSpace(in.DisplayName)
	if emailAddr == "" {
		return nil, validationError("email is required")
	}
	if displayName == "" {
		return nil, validationError("displayName is required")
	}

	organizationID := strings.TrimSpace(in.OrganizationID)
	departmentID := strings.TrimSpace(in.DepartmentID)
	switch session.Role {
	case rbac.RoleOrgAdmin:
		organizationID = session.OrganizationID
	case rbac.RoleDeptHead:
		organizationID = session.OrganizationID
		departmentID = session.DepartmentID
	}
	if role == rbac.RoleSuperadmin {
		organizationID, departmentID = "", ""
	} else if organizationID == "" {
		return nil, validationError("organizationId is required")
	}
	if organizationID != "" {
		if !session.scope().AllowsOrg(organizationID) {
			return nil, authorizationError("Forbidden")
		}
		if err := s.requireDepartmentInOrg(ctx, departmentID, organizationID); err != nil {
			return nil, err
		}
		if err := s.checkUserQuota(ctx, organizationID); err != nil {
			return nil, err
		}
	}

	hash, err := authpw.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := store.User{
		ID:             util.NewID("usr"),
		Email:          emailAddr,
		PasswordHash:   hash,
		DisplayName:    displayName,
		Role:           string(role),
		OrganizationID: strPtr(organizationID),
		DepartmentID:   strPtr(departmentID),
		IsActive:       boolOr(in.IsActive, true),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("email already registered")
		}
		if errors.Is(err, store.ErrForeignKey) {
			return nil, validationError("organizationId does not exist")
		}
		return nil, err
	}
	s.logActivity(ctx, session, organizationID, "create", "user", user.ID, emailAddr)

	fresh, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": userJSON(fresh)}, nil
}

func (s *Service) requireDepartmentInOrg(ctx context.Context, departmentID, organizationID string) error {
	if departmentID == "" {
		return nil
	}
	dept, err := s.store.GetDepartment(ctx, departmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return validationError("departmentId does not exist")
		}
		return err
	}
	if dept.OrganizationID != organizationID {
		return integrityError("department belongs to a different organization")
	}
	return nil
}

func (s *Service) checkUserQuota(ctx context.Context, organizationID string) error {
	lic, err := s.store.GetLicenseByOrg(ctx, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if lic.MaxUsers <= 0 {
		return nil
	}
	count, err := s.store.CountUsersInOrg(ctx, organizationID)
	if err != nil {
		return err
	}
	if count >= lic.MaxUsers {
		return domainError(http.StatusForbidden, "QUOTA_EXCEEDED",
			fmt.Sprintf("organization has reached its licensed limit of %d users", lic.MaxUsers), nil)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, session Session) (map[string]any, error) {
	users, err := s.store.ListUsers(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userJSON(user))
	}
	return map[string]any{"users": items}, nil
}

func (s *Service) GetUser(ctx context.Context, session Session, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userID != session.UserID {
		if rbac.Normalize(user.Role) == rbac.RoleSuperadmin && session.Role != rbac.RoleSuperadmin {
			return nil, authorizationError("Forbidden")
		}
		if rbac.Normalize(user.Role) != rbac.RoleSuperadmin &&
			!session.scope().AllowsDept(strVal(user.OrganizationID), strVal(user.DepartmentID)) {
			return nil, authorizationError("Forbidden")
		}
	}
	return map[string]any{"user": userJSON(user)}, nil
}

func (s *Service) UpdateUser(ctx context.Context, session Session, userID string, in UserInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageUsers) {
		return nil, authorizationError("Forbidden")
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := rbac.Normalize(user.Role)
	if !rbac.Assignable(session.Role, current) {
		return nil, authorizationError("Forbidden")
	}
	if current != rbac.RoleSuperadmin &&
		!session.scope().AllowsDept(strVal(user.OrganizationID), strVal(user.DepartmentID)) {
		return nil, authorizationError("Forbidden")
	}

	if v := strings.ToLower(strings.TrimSpace(in.Email)); v != "" {
		user.Email = v
	}
	if v := strings.TrimSpace(in.DisplayName); v != "" {
		user.DisplayName = v
	}
	if strings.TrimSpace(in.Role) != "" {
		next := rbac.Normalize(strings.TrimSpace(in.Role))
		if !rbac.Assignable(session.Role, next) {
			return nil, authorizationError("cannot assign that role")
		}
		user.Role = string(next)
		if next == rbac.RoleSuperadmin {
			user.OrganizationID = nil
			user.DepartmentID = nil
		}
	}
	if v := strings.TrimSpace(in.OrganizationID); v != "" && v != strVal(user.OrganizationID) {
		if session.Role != rbac.RoleSuperadmin {
			return nil, authorizationError("cannot move users between organizations")
		}
		user.OrganizationID = &v
		user.DepartmentID = nil
	}
	if v := strings.TrimSpace(in.DepartmentID); v != "" {
		if err := s.requireDepartmentInOrg(ctx, v, strVal(user.OrganizationID)); err != nil {
			return nil, err
		}
		if !session.scope().AllowsDept(strVal(user.OrganizationID), v) {
			return nil, authorizationError("Forbidden")
		}
		user.DepartmentID = &v
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("email already registered")
		}
		if errors.Is(err, store.ErrForeignKey) {
			return nil, validationError("organizationId does not exist")
		}
		return nil, err
	}
	if in.Password != "" {
		hash, err := authpw.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		if err := s.store.UpdateUserPassword(ctx, user.ID, hash); err != nil {
			return nil, err
		}
	}
	s.logActivity(ctx, session, strVal(user.OrganizationID), "update", "user", user.ID, user.Email)

	fresh, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": userJSON(fresh)}, nil
}

func (s *Service) DeleteUser(ctx context.Context, session Session, userID string) error {
	if !rbac.Can(session.Role, rbac.ActionManageUsers) {
		return authorizationError("Forbidden")
	}
	if userID == session.UserID {
		return authorizationError("cannot delete your own account")
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	target := rbac.Normalize(user.Role)
	if !rbac.Assignable(session.Role, target) {
		return authorizationError("Forbidden")
	}
	if target != rbac.RoleSuperadmin &&
		!session.scope().AllowsDept(strVal(user.OrganizationID), strVal(user.DepartmentID)) {
		return authorizationError("Forbidden")
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logActivity(ctx, session, strVal(user.OrganizationID), "delete", "user", userID, user.Email)
	return nil
}

// ------------------------------------------------------------------
// Payloads

func orgJSON(org store.Organization) map[string]any {
	return map[string]any{
		"id":          org.ID,
		"name":        org.Name,
		"code":        org.Code,
		"description": org.Description,
		"isActive":    org.IsActive,
		"createdAt":   org.CreatedAt,
		"updatedAt":   org.UpdatedAt,
	}
}

func deptJSON(dept store.Department) map[string]any {
	return map[string]any{
		"id":             dept.ID,
		"organizationId": dept.OrganizationID,
		"name":           dept.Name,
		"code":           dept.Code,
		"description":    dept.Description,
		"headUserId":     strVal(dept.HeadUserID),
		"isActive":       dept.IsActive,
		"memberCount":    dept.MemberCount,
		"documentCount":  dept.DocumentCount,
		"createdAt":      dept.CreatedAt,
		"updatedAt":      dept.UpdatedAt,
	}
}

func userJSON(user store.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"email":          user.Email,
		"displayName":    user.DisplayName,
		"role":           string(rbac.Normalize(user.Role)),
		"organizationId": strVal(user.OrganizationID),
		"departmentId":   strVal(user.DepartmentID),
		"isActive":       user.IsActive,
		"createdAt":      user.CreatedAt,
		"updatedAt":      user.UpdatedAt,
	}
}

func licenseJSON(lic store.OrganizationLicense, now time.Time) map[string]any {
	return map[string]any{
		"id":                 lic.ID,
		"organizationId":     lic.OrganizationID,
		"subscriptionStatus": lic.SubscriptionStatus,
		"startDate":          lic.StartDate,
		"endDate":            lic.EndDate,
		"trialDays":          lic.TrialDays,
		"maxUsers":           lic.MaxUsers,
		"maxStorageGb":       lic.MaxStorageGB,
		"daysRemaining":      licenseDaysRemaining(lic.EndDate, now),
		"isActive":           !lic.EndDate.Before(now),
		"lastChecked":        lic.LastChecked,
		"createdAt":          lic.CreatedAt,
		"updatedAt":          lic.UpdatedAt,
	}
}

// licenseDaysRemaining mirrors the computation in the
// organization_license_status view: FLOOR of the seconds until end_date
// divided into whole days, negative once overdue.
func licenseDaysRemaining(endDate, now time.Time) int {
	return int(math.Floor(endDate.Sub(now).Seconds() / 86400))
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
