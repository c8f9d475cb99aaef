package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuvault/api/internal/auth"
	"docuvault/api/internal/authpw"
	"docuvault/api/internal/blob"
	"docuvault/api/internal/config"
	"docuvault/api/internal/email"
	"docuvault/api/internal/export"
	"docuvault/api/internal/histrepo"
	"docuvault/api/internal/rbac"
	"docuvault/api/internal/scope"
	"docuvault/api/internal/search"
	"docuvault/api/internal/store"
	"docuvault/api/internal/util"
)

// Session is the authenticated principal attached to a request. Role,
// OrganizationID and DepartmentID come from the user row, not the token,
// so deactivations and role changes take effect on the next request.
type Session struct {
	Token          string
	RefreshToken   string
	UserID         string
	UserName       string
	Role           rbac.Role
	OrganizationID string
	DepartmentID   string
	JTI            string
	ExpiresAt      time.Time
}

func (s Session) principal() scope.Principal {
	return scope.Principal{
		UserID:         s.UserID,
		DisplayName:    s.UserName,
		Role:           s.Role,
		OrganizationID: s.OrganizationID,
		DepartmentID:   s.DepartmentID,
	}
}

func (s Session) scope() scope.Scope {
	return scope.For(s.principal())
}

type dataStore interface {
	CreateOrganizationWithLicense(context.Context, store.Organization, store.OrganizationLicense) error
	GetOrganization(context.Context, string) (store.Organization, error)
	ListOrganizations(context.Context, scope.Scope) ([]store.Organization, error)
	UpdateOrganization(context.Context, store.Organization) error
	DeleteOrganization(context.Context, string) error
	CountDepartmentsInOrg(context.Context, string) (int, error)
	InsertDepartment(context.Context, store.Department) error
	GetDepartment(context.Context, string) (store.Department, error)
	ListDepartments(context.Context, scope.Scope) ([]store.Department, error)
	UpdateDepartment(context.Context, store.Department) error
	DeleteDepartment(context.Context, string) error
	DepartmentCounts(context.Context, string) (int, int, error)
	InsertUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context, scope.Scope) ([]store.User, error)
	UpdateUser(context.Context, store.User) error
	UpdateUserPassword(context.Context, string, string) error
	DeleteUser(context.Context, string) error
	InsertCategory(context.Context, store.DocumentCategory) error
	GetCategory(context.Context, string) (store.DocumentCategory, error)
	ListCategories(context.Context, scope.Scope, string) ([]store.DocumentCategory, error)
	UpdateCategory(context.Context, store.DocumentCategory) error
	DeleteCategory(context.Context, string) error
	EnsureCategories(context.Context, []store.DocumentCategory) (int, error)
	ListCategoryStats(context.Context, scope.Scope, string) ([]store.CategoryStats, error)
	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	ListDocuments(context.Context, scope.Scope, store.DocumentFilter) ([]store.Document, error)
	UpdateDocument(context.Context, store.Document) error
	DeleteDocument(context.Context, string) error
	ArchiveExpiredDocuments(context.Context, scope.Scope, time.Time) (int64, error)
	ListExpiredDocuments(context.Context, scope.Scope) ([]store.ExpiredDocument, error)
	ListExpiringDocuments(context.Context, scope.Scope, time.Time, time.Duration) ([]store.Document, error)
	SumStorageBytes(context.Context, string) (int64, error)
	InsertShare(context.Context, store.DocumentShare) error
	GetShareByToken(context.Context, string) (store.DocumentShare, error)
	ListShares(context.Context, string) ([]store.DocumentShare, error)
	DeleteShare(context.Context, string, string) error
	GetLicenseByOrg(context.Context, string) (store.OrganizationLicense, error)
	RenewLicense(context.Context, string, int) (store.OrganizationLicense, error)
	ExpireOverdueLicenses(context.Context, time.Time) (int64, int64, error)
	ListOrganizationsMissingLicense(context.Context) ([]string, error)
	EnsureLicenses(context.Context, []store.OrganizationLicense) (int, error)
	ListLicenseStatus(context.Context, scope.Scope) ([]store.LicenseStatus, error)
	CountUsersInOrg(context.Context, string) (int, error)
	SummaryCounts(context.Context, scope.Scope, time.Time) (store.SummaryCounts, error)
	StorageByOrganization(context.Context, scope.Scope) ([]store.StorageUsage, error)
	DocsByFileCategory(context.Context, scope.Scope) ([]store.FileCategoryStats, error)
	InsertActivity(context.Context, store.ActivityLog) error
	ListActivity(context.Context, scope.Scope, int, int) ([]store.ActivityLog, error)
	Ping(ctx context.Context) error
}

// SessionStore holds refresh tokens, hashed, with an expiry. Redis when
// configured, the Postgres refresh_sessions table otherwise.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type historyStore interface {
	EnsureRepo(documentID string, initial histrepo.Meta, author string) error
	Commit(documentID string, meta histrepo.Meta, author, message string) error
	History(documentID string, limit int) ([]store.RevisionInfo, error)
	MetaAt(documentID, hash string) (histrepo.Meta, store.RevisionInfo, error)
	Remove(documentID string) error
}

type documentIndex interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  SessionStore
	passwords *authpw.Service
	history   historyStore
	blobs     blob.Store
	index     documentIndex
	exporter  *export.Service
	mailer    *email.Service
	logger    *zap.Logger
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	sessions SessionStore,
	history *histrepo.Service,
	blobs blob.Store,
	index *search.Service,
	exporter *export.Service,
	mailer *email.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		passwords: authpw.NewService(dataStore),
		history:   history,
		blobs:     blobs,
		index:     index,
		exporter:  exporter,
		mailer:    mailer,
		logger:    logger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds the first superadmin when the users table is empty so a
// fresh deployment has a way in.
func (s *Service) Bootstrap(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx, scope.Scope{All: true})
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	hash, err := authpw.HashPassword(s.cfg.BootstrapPassword)
	if err != nil {
		return err
	}
	admin := store.User{
		ID:           util.NewID("usr"),
		Email:        s.cfg.BootstrapEmail,
		PasswordHash: hash,
		DisplayName:  "System Admin",
		Role:         string(rbac.RoleSuperadmin),
		IsActive:     true,
	}
	if err := s.store.InsertUser(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("seeded bootstrap superadmin", zap.String("email", admin.Email))
	return nil
}

// ------------------------------------------------------------------
// Authentication

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	s.logActivity(ctx, session, session.OrganizationID, "login", "user", user.ID, "")
	return session, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	ref, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// The session store may persist only the user id; re-read the row so
	// the rotated claims carry the current role and tenant.
	user, err := s.store.GetUserByID(ctx, ref.ID)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")
	role := rbac.Normalize(user.Role)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: string(role),
		Org:  strVal(user.OrganizationID),
		Dept: strVal(user.DepartmentID),
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:          token,
		RefreshToken:   refresh,
		UserID:         user.ID,
		UserName:       user.DisplayName,
		Role:           role,
		OrganizationID: strVal(user.OrganizationID),
		DepartmentID:   strVal(user.DepartmentID),
		JTI:            jti,
		ExpiresAt:      expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:          token,
		UserID:         user.ID,
		UserName:       user.DisplayName,
		Role:           rbac.Normalize(user.Role),
		OrganizationID: strVal(user.OrganizationID),
		DepartmentID:   strVal(user.DepartmentID),
		JTI:            claims.JTI,
		ExpiresAt:      time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Me(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payload := userJSON(user)
	if user.OrganizationID != nil {
		if org, err := s.store.GetOrganization(ctx, *user.OrganizationID); err == nil {
			payload["organizationName"] = org.Name
		}
	}
	if user.DepartmentID != nil {
		if dept, err := s.store.GetDepartment(ctx, *user.DepartmentID); err == nil {
			payload["departmentName"] = dept.Name
		}
	}
	return map[string]any{"user": payload}, nil
}

func (s *Service) ChangeMyPassword(ctx context.Context, session Session, current, next string) error {
	if err := s.passwords.ChangePassword(ctx, session.UserID, current, next); err != nil {
		return err
	}
	s.logActivity(ctx, session, session.OrganizationID, "change_password", "user", session.UserID, "")
	return nil
}

// RequestPasswordReset issues a reset token and mails it when SMTP is
// configured. Always succeeds for unknown emails so the endpoint does not
// reveal which addresses exist. The token is returned for the dev bypass.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	token, user, err := s.passwords.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", nil
	}
	if s.mailer != nil && s.mailer.IsConfigured() {
		resetURL := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/reset-password?token=" + token
		if err := s.mailer.SendPasswordResetEmail(user.Email, user.DisplayName, resetURL); err != nil {
			s.logger.Warn("password reset email failed", zap.String("email", user.Email), zap.Error(err))
		}
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.passwords.ResetPassword(ctx, token, newPassword)
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// ------------------------------------------------------------------
// License gate

// CheckLicense gates requests from licensed organizations. Superadmins and
// principals without an organization bypass it. The end date is compared
// live, so an overdue license denies before the expiry sweep has run.
func (s *Service) CheckLicense(ctx context.Context, session Session) error {
	if session.Role == rbac.RoleSuperadmin || session.OrganizationID == "" {
		return nil
	}
	lic, err := s.store.GetLicenseByOrg(ctx, session.OrganizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusForbidden, "LICENSE_REQUIRED", "Organization has no license", nil)
		}
		return err
	}
	if lic.SubscriptionStatus == "expired" || lic.EndDate.Before(time.Now()) {
		return domainError(http.StatusForbidden, "LICENSE_EXPIRED", "Organization license has expired", nil)
	}
	return nil
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

// ------------------------------------------------------------------
// Activity log

func (s *Service) logActivity(ctx context.Context, session Session, organizationID, action, entityType, entityID, detail string) {
	entry := store.ActivityLog{
		ID:         util.NewID("act"),
		UserName:   session.UserName,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	}
	if session.UserID != "" {
		entry.UserID = &session.UserID
	}
	if organizationID != "" {
		entry.OrganizationID = &organizationID
	}
	if err := s.store.InsertActivity(ctx, entry); err != nil {
		s.logger.Warn("activity insert failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) ListActivity(ctx context.Context, session Session, limit, offset int) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionViewAnalytics) {
		return nil, authorizationError("Forbidden")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.store.ListActivity(ctx, session.scope(), limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":             entry.ID,
			"userId":         strVal(entry.UserID),
			"userName":       entry.UserName,
			"organizationId": strVal(entry.OrganizationID),
			"action":         entry.Action,
			"entityType":     entry.EntityType,
			"entityId":       entry.EntityID,
			"detail":         entry.Detail,
			"createdAt":      entry.CreatedAt,
		})
	}
	return map[string]any{"activities": items, "limit": limit, "offset": offset}, nil
}

// ------------------------------------------------------------------

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
