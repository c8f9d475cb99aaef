package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuvault/api/internal/histrepo"
	"docuvault/api/internal/rbac"
	"docuvault/api/internal/scope"
	"docuvault/api/internal/search"
	"docuvault/api/internal/store"
	"docuvault/api/internal/util"
)

const (
	statusActive   = "active"
	statusArchived = "archived"
)

const (
	defaultExpiringDays = 7
	maxExpiringDays     = 90
	revisionListLimit   = 100
)

type CategoryInput struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	Description    string `json:"description"`
}

// DocumentUpload carries one multipart upload. ExpireDate is already
// parsed; the handler owns form decoding.
type DocumentUpload struct {
	FileName       string
	Title          string
	Description    string
	ContentType    string
	Data           []byte
	CategoryID     string
	OrganizationID string
	DepartmentID   string
	ExpireDate     *time.Time
}

// DocumentUpdate patches document metadata. Nil fields keep the current
// value; empty CategoryID or ExpireDate clears it. Status, archival and
// the file_owner snapshot are never writable here.
type DocumentUpdate struct {
	Name        *string `json:"name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CategoryID  *string `json:"categoryId"`
	ExpireDate  *string `json:"expireDate"`
}

type ShareInput struct {
	ExpiresAt string `json:"expiresAt"`
}

// ------------------------------------------------------------------
// Categories

// defaultCategorySet is the ten categories every organization starts
// with. Codes are stable; EnsureDefaultCategories may run any number of
// times without duplicating them.
var defaultCategorySet = []struct{ Code, Name string }{
	{"LETTER", "Letters"},
	{"REPORT", "Reports"},
	{"CONTRACT", "Contracts"},
	{"INVOICE", "Invoices"},
	{"CERT", "Certificates"},
	{"POLICY", "Policies"},
	{"PROC", "Procedures"},
	{"FORM", "Forms"},
	{"MEMO", "Memos"},
	{"OTHER", "Other"},
}

func defaultCategoriesFor(organizationID string, createdBy *string) []store.DocumentCategory {
	cats := make([]store.DocumentCategory, 0, len(defaultCategorySet))
	for _, def := range defaultCategorySet {
		cats = append(cats, store.DocumentCategory{
			ID:             util.NewID("cat"),
			OrganizationID: organizationID,
			Name:           def.Name,
			Code:           def.Code,
			CreatedBy:      createdBy,
		})
	}
	return cats
}

func (s *Service) CreateCategory(ctx context.Context, session Session, in CategoryInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageDocuments) {
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

	cat := store.DocumentCategory{
		ID:             util.NewID("cat"),
		OrganizationID: organizationID,
		Name:           name,
		Code:           code,
		Description:    strings.TrimSpace(in.Description),
		CreatedBy:      strPtr(session.UserID),
	}
	if err := s.store.InsertCategory(ctx, cat); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("category code already exists in this organization")
		}
		if errors.Is(err, store.ErrForeignKey) {
			return nil, validationError("organizationId does not exist")
		}
		return nil, err
	}
	s.logActivity(ctx, session, organizationID, "create", "category", cat.ID, name)

	fresh, err := s.store.GetCategory(ctx, cat.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"category": categoryJSON(fresh)}, nil
}

func (s *Service) ListCategories(ctx context.Context, session Session, organizationID string) (map[string]any, error) {
	cats, err := s.store.ListCategories(ctx, session.scope(), strings.TrimSpace(organizationID))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(cats))
	for _, cat := range cats {
		items = append(items, categoryJSON(cat))
	}
	return map[string]any{"categories": items}, nil
}

func (s *Service) GetCategory(ctx context.Context, session Session, categoryID string) (map[string]any, error) {
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !session.scope().AllowsOrg(cat.OrganizationID) {
		return nil, authorizationError("Forbidden")
	}
	return map[string]any{"category": categoryJSON(cat)}, nil
}

func (s *Service) UpdateCategory(ctx context.Context, session Session, categoryID string, in CategoryInput) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageDocuments) {
		return nil, authorizationError("Forbidden")
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !session.scope().AllowsOrg(cat.OrganizationID) {
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
	cat.Name = name
	cat.Code = code
	cat.Description = strings.TrimSpace(in.Description)
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError("category code already exists in this organization")
		}
		return nil, err
	}
	s.logActivity(ctx, session, cat.OrganizationID, "update", "category", cat.ID, name)

	fresh, err := s.store.GetCategory(ctx, cat.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"category": categoryJSON(fresh)}, nil
}

// DeleteCategory is safe while documents still reference the category;
// their category_id is set NULL by the schema.
func (s *Service) DeleteCategory(ctx context.Context, session Session, categoryID string) error {
	if !rbac.Can(session.Role, rbac.ActionManageDocuments) {
		return authorizationError("Forbidden")
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if !session.scope().AllowsOrg(cat.OrganizationID) {
		return authorizationError("Forbidden")
	}
	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}
	s.logActivity(ctx, session, cat.OrganizationID, "delete", "category", categoryID, cat.Name)
	return nil
}

// EnsureDefaultCategories creates any of the ten default categories the
// organization is missing and reports how many were added.
func (s *Service) EnsureDefaultCategories(ctx context.Context, session Session, organizationID string) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageDocuments) {
		return nil, authorizationError("Forbidden")
	}
	organizationID = strings.TrimSpace(organizationID)
	if session.Role != rbac.RoleSuperadmin {
		organizationID = session.OrganizationID
	}
	if organizationID == "" {
		return nil, validationError("organizationId is required")
	}
	if !session.scope().AllowsOrg(organizationID) {
		return nil, authorizationError("Forbidden")
	}
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	created, err := s.store.EnsureCategories(ctx, defaultCategoriesFor(organizationID, strPtr(session.UserID)))
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, session, organizationID, "ensure_defaults", "category", "", fmt.Sprintf("%d created", created))
	return map[string]any{"created": created}, nil
}

func (s *Service) CategoryStats(ctx context.Context, session Session, categoryID string) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionViewAnalytics) {
		return nil, authorizationError("Forbidden")
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !session.scope().AllowsOrg(cat.OrganizationID) {
		return nil, authorizationError("Forbidden")
	}
	rows, err := s.store.ListCategoryStats(ctx, session.scope(), cat.OrganizationID)
	if err != nil {
		return nil, err
	}
	stats := store.CategoryStats{CategoryID: cat.ID, CategoryName: cat.Name, CategoryCode: cat.Code}
	for _, row := range rows {
		if row.CategoryID == cat.ID {
			stats = row
			break
		}
	}
	return map[string]any{"stats": categoryStatsJSON(stats)}, nil
}

// ------------------------------------------------------------------
// Documents

// UploadDocument stores the file, inserts the register row, starts the
// revision history and indexes the metadata. The file_owner column
// snapshots the uploader's display name and never changes afterwards.
func (s *Service) UploadDocument(ctx context.Context, session Session, in DocumentUpload) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionUpload) {
		return nil, authorizationError("Forbidden")
	}
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return nil, validationError("file is required")
	}
	if len(in.Data) == 0 {
		return nil, validationError("file is empty")
	}
	if s.cfg.MaxUploadMB > 0 && int64(len(in.Data)) > int64(s.cfg.MaxUploadMB)<<20 {
		return nil, validationError(fmt.Sprintf("file exceeds the %d MB upload limit", s.cfg.MaxUploadMB))
	}

	organizationID := strings.TrimSpace(in.OrganizationID)
	departmentID := strings.TrimSpace(in.DepartmentID)
	switch session.Role {
	case rbac.RoleOrgAdmin:
		organizationID = session.OrganizationID
	case rbac.RoleDeptHead, rbac.RoleMember:
		organizationID = session.OrganizationID
		departmentID = session.DepartmentID
	}
	if organizationID == "" {
		return nil, validationError("organizationId is required")
	}
	if departmentID == "" {
		return nil, validationError("departmentId is required")
	}
	if !session.scope().AllowsOrg(organizationID) {
		return nil, authorizationError("Forbidden")
	}
	if err := s.requireDepartmentInOrg(ctx, departmentID, organizationID); err != nil {
		return nil, err
	}

	categoryID := strings.TrimSpace(in.CategoryID)
	var categoryRef *string
	categoryCode := ""
	if categoryID != "" {
		cat, err := s.store.GetCategory(ctx, categoryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, validationError("categoryId does not exist")
			}
			return nil, err
		}
		if cat.OrganizationID != organizationID {
			return nil, integrityError("category belongs to a different organization")
		}
		categoryRef = &cat.ID
		categoryCode = cat.Code
	}

	if err := s.checkStorageQuota(ctx, organizationID, int64(len(in.Data))); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fileName
	}
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc := store.Document{
		ID:             util.NewID("doc"),
		Name:           fileName,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		FileType:       contentType,
		FileCategory:   fileCategoryFor(contentType, fileName),
		SizeBytes:      int64(len(in.Data)),
		FileOwner:      session.UserName,
		CategoryID:     categoryRef,
		OrganizationID: organizationID,
		DepartmentID:   departmentID,
		CreatedBy:      strPtr(session.UserID),
		ExpireDate:     in.ExpireDate,
		Status:         statusActive,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			return nil, validationError("organizationId or departmentId does not exist")
		}
		return nil, err
	}
	if err := s.blobs.Save(ctx, doc.ID, in.Data, contentType); err != nil {
		if derr := s.store.DeleteDocument(ctx, doc.ID); derr != nil {
			s.logger.Warn("orphaned register row after blob failure",
				zap.String("document_id", doc.ID), zap.Error(derr))
		}
		return nil, fmt.Errorf("save content: %w", err)
	}
	if err := s.history.EnsureRepo(doc.ID, docMeta(doc, categoryCode), session.UserName); err != nil {
		s.logger.Warn("revision history init failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}
	s.index.IndexDocument(indexRecord(doc))
	s.logActivity(ctx, session, organizationID, "upload", "document", doc.ID, fileName)

	fresh, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": docJSON(fresh)}, nil
}

func (s *Service) ListDocuments(ctx context.Context, session Session, filter store.DocumentFilter) (map[string]any, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	docs, err := s.store.ListDocuments(ctx, session.scope(), filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, docJSON(doc))
	}
	return map[string]any{"documents": items, "limit": filter.Limit, "offset": filter.Offset}, nil
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, err := s.readableDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": docJSON(doc)}, nil
}

func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, in DocumentUpdate) (map[string]any, error) {
	doc, err := s.writableDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == statusArchived {
		return nil, conflictError("archived documents are read-only")
	}

	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		if v == "" {
			return nil, validationError("name cannot be empty")
		}
		doc.Name = v
	}
	if in.Title != nil {
		doc.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		doc.Description = strings.TrimSpace(*in.Description)
	}
	categoryCode := ""
	if in.CategoryID != nil {
		v := strings.TrimSpace(*in.CategoryID)
		if v == "" {
			doc.CategoryID = nil
		} else {
			cat, err := s.store.GetCategory(ctx, v)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, validationError("categoryId does not exist")
				}
				return nil, err
			}
			if cat.OrganizationID != doc.OrganizationID {
				return nil, integrityError("category belongs to a different organization")
			}
			doc.CategoryID = &cat.ID
			categoryCode = cat.Code
		}
	}
	if in.ExpireDate != nil {
		t, err := parseExpireDate(*in.ExpireDate)
		if err != nil {
			return nil, err
		}
		doc.ExpireDate = t
	}

	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	if categoryCode == "" && doc.CategoryID != nil {
		categoryCode = s.categoryCode(ctx, doc.CategoryID)
	}
	s.commitRevision(doc, categoryCode, session.UserName, "Update metadata")
	s.index.IndexDocument(indexRecord(doc))
	s.logActivity(ctx, session, doc.OrganizationID, "update", "document", doc.ID, doc.Name)

	fresh, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": docJSON(fresh)}, nil
}

// DownloadDocument returns the register row together with the stored
// bytes; the handler sets the download headers.
func (s *Service) DownloadDocument(ctx context.Context, session Session, documentID string) (store.Document, []byte, error) {
	doc, err := s.readableDocument(ctx, session, documentID)
	if err != nil {
		return store.Document{}, nil, err
	}
	data, err := s.blobs.Get(ctx, doc.ID)
	if err != nil {
		return store.Document{}, nil, err
	}
	s.logActivity(ctx, session, doc.OrganizationID, "download", "document", doc.ID, doc.Name)
	return doc, data, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	doc, err := s.writableDocument(ctx, session, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, documentID); err != nil {
		s.logger.Warn("blob cleanup failed", zap.String("document_id", documentID), zap.Error(err))
	}
	if err := s.history.Remove(documentID); err != nil {
		s.logger.Warn("history cleanup failed", zap.String("document_id", documentID), zap.Error(err))
	}
	s.index.DeleteDocument(documentID)
	s.logActivity(ctx, session, doc.OrganizationID, "delete", "document", documentID, doc.Name)
	return nil
}

// ListExpiredDocuments surfaces the expired_documents view: every
// document past its expire_date, archived or not, within scope.
func (s *Service) ListExpiredDocuments(ctx context.Context, session Session) (map[string]any, error) {
	rows, err := s.store.ListExpiredDocuments(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]any{
			"id":               row.ID,
			"name":             row.Name,
			"title":            row.Title,
			"organizationId":   row.OrganizationID,
			"organizationName": row.OrganizationName,
			"departmentId":     row.DepartmentID,
			"departmentName":   row.DepartmentName,
			"expireDate":       row.ExpireDate,
			"status":           row.Status,
			"archivedAt":       row.ArchivedAt,
		})
	}
	return map[string]any{"documents": items}, nil
}

func (s *Service) ListExpiringDocuments(ctx context.Context, session Session, days int) (map[string]any, error) {
	if days == 0 {
		days = defaultExpiringDays
	}
	if days < 1 || days > maxExpiringDays {
		return nil, validationError(fmt.Sprintf("days must be between 1 and %d", maxExpiringDays))
	}
	docs, err := s.store.ListExpiringDocuments(ctx, session.scope(), time.Now(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, docJSON(doc))
	}
	return map[string]any{"documents": items, "days": days}, nil
}

// ArchiveExpiredDocuments runs the archival sweep over the caller's
// scope and reports how many rows moved to archived.
func (s *Service) ArchiveExpiredDocuments(ctx context.Context, session Session) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionManageDocuments) {
		return nil, authorizationError("Forbidden")
	}
	archived, err := s.store.ArchiveExpiredDocuments(ctx, session.scope(), time.Now())
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, session, session.OrganizationID, "archive_expired", "document", "", fmt.Sprintf("%d archived", archived))
	return map[string]any{"archived": archived}, nil
}

// RunArchiveSweep archives every expired active document across all
// organizations. Invoked by the scheduler and the standalone sweeper;
// already archived rows are untouched, so reruns are no-ops.
func (s *Service) RunArchiveSweep(ctx context.Context) (int64, error) {
	archived, err := s.store.ArchiveExpiredDocuments(ctx, scope.Scope{All: true}, time.Now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("archive sweep complete", zap.Int64("archived", archived))
	return archived, nil
}

// ------------------------------------------------------------------
// Revisions

func (s *Service) ListRevisions(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	if _, err := s.readableDocument(ctx, session, documentID); err != nil {
		return nil, err
	}
	revs, err := s.history.History(documentID, revisionListLimit)
	if err != nil && !errors.Is(err, histrepo.ErrNoHistory) {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revs))
	for _, rev := range revs {
		items = append(items, revisionJSON(rev))
	}
	return map[string]any{"revisions": items}, nil
}

func (s *Service) GetRevision(ctx context.Context, session Session, documentID, hash string) (map[string]any, error) {
	if _, err := s.readableDocument(ctx, session, documentID); err != nil {
		return nil, err
	}
	meta, rev, err := s.history.MetaAt(documentID, hash)
	if err != nil {
		if errors.Is(err, histrepo.ErrNoHistory) || errors.Is(err, histrepo.ErrUnknownRevision) {
			return nil, notFoundError("revision not found")
		}
		return nil, err
	}
	return map[string]any{"revision": revisionJSON(rev), "meta": meta}, nil
}

// ------------------------------------------------------------------
// Shares

// CreateShare mints an unguessable public link for the document.
func (s *Service) CreateShare(ctx context.Context, session Session, documentID string, in ShareInput) (map[string]any, error) {
	doc, err := s.writableDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	var expiresAt *time.Time
	if v := strings.TrimSpace(in.ExpiresAt); v != "" {
		t, err := parseExpireDate(v)
		if err != nil {
			return nil, err
		}
		if t != nil && t.Before(time.Now()) {
			return nil, validationError("expiresAt is already in the past")
		}
		expiresAt = t
	}
	share := store.DocumentShare{
		ID:         util.NewID("shr"),
		DocumentID: doc.ID,
		Token:      util.NewToken(),
		CreatedBy:  session.UserID,
		ExpiresAt:  expiresAt,
	}
	if err := s.store.InsertShare(ctx, share); err != nil {
		return nil, err
	}
	s.logActivity(ctx, session, doc.OrganizationID, "share", "document", doc.ID, doc.Name)
	return map[string]any{"share": s.shareJSON(share)}, nil
}

func (s *Service) ListShares(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	if _, err := s.writableDocument(ctx, session, documentID); err != nil {
		return nil, err
	}
	shares, err := s.store.ListShares(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(shares))
	for _, share := range shares {
		items = append(items, s.shareJSON(share))
	}
	return map[string]any{"shares": items}, nil
}

func (s *Service) DeleteShare(ctx context.Context, session Session, documentID, shareID string) error {
	doc, err := s.writableDocument(ctx, session, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteShare(ctx, documentID, shareID); err != nil {
		return err
	}
	s.logActivity(ctx, session, doc.OrganizationID, "unshare", "document", doc.ID, doc.Name)
	return nil
}

// ResolveShare serves a public share link. Expired and unknown tokens
// answer identically so the endpoint cannot be probed.
func (s *Service) ResolveShare(ctx context.Context, token string) (map[string]any, error) {
	doc, err := s.sharedDocument(ctx, token)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": docJSON(doc)}, nil
}

// DownloadShared returns the shared document's bytes.
func (s *Service) DownloadShared(ctx context.Context, token string) (store.Document, []byte, error) {
	doc, err := s.sharedDocument(ctx, token)
	if err != nil {
		return store.Document{}, nil, err
	}
	data, err := s.blobs.Get(ctx, doc.ID)
	if err != nil {
		return store.Document{}, nil, err
	}
	return doc, data, nil
}

func (s *Service) sharedDocument(ctx context.Context, token string) (store.Document, error) {
	share, err := s.store.GetShareByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, notFoundError("share link not found or expired")
		}
		return store.Document{}, err
	}
	if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now()) {
		return store.Document{}, notFoundError("share link not found or expired")
	}
	doc, err := s.store.GetDocument(ctx, share.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, notFoundError("share link not found or expired")
		}
		return store.Document{}, err
	}
	return doc, nil
}

// ------------------------------------------------------------------
// Search

// SearchDocuments queries the index within the caller's scope. The
// backend never errors toward the client; a failed search reads as an
// empty result.
func (s *Service) SearchDocuments(ctx context.Context, session Session, text, status, categoryID string, limit, offset int) search.Response {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.index.Search(search.Query{
		Text:       strings.TrimSpace(text),
		Status:     strings.TrimSpace(status),
		CategoryID: strings.TrimSpace(categoryID),
		Scope:      session.scope(),
		Limit:      limit,
		Offset:     offset,
	})
}

// ------------------------------------------------------------------
// Access helpers

// readableDocument loads the row and applies read scope: unknown ids
// 404, rows outside the caller's scope 403.
func (s *Service) readableDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if !session.scope().AllowsDocumentRead(doc.OrganizationID, doc.DepartmentID) {
		return store.Document{}, authorizationError("Forbidden")
	}
	return doc, nil
}

// writableDocument additionally restricts members to documents they
// created.
func (s *Service) writableDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if !session.scope().AllowsDocumentWrite(doc.OrganizationID, doc.DepartmentID, strVal(doc.CreatedBy)) {
		return store.Document{}, authorizationError("Forbidden")
	}
	return doc, nil
}

func (s *Service) checkStorageQuota(ctx context.Context, organizationID string, incoming int64) error {
	lic, err := s.store.GetLicenseByOrg(ctx, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if lic.MaxStorageGB <= 0 {
		return nil
	}
	used, err := s.store.SumStorageBytes(ctx, organizationID)
	if err != nil {
		return err
	}
	if used+incoming > int64(lic.MaxStorageGB)<<30 {
		return domainError(http.StatusForbidden, "QUOTA_EXCEEDED",
			fmt.Sprintf("organization has reached its licensed storage limit of %d GB", lic.MaxStorageGB), nil)
	}
	return nil
}

func (s *Service) categoryCode(ctx context.Context, categoryID *string) string {
	if categoryID == nil {
		return ""
	}
	cat, err := s.store.GetCategory(ctx, *categoryID)
	if err != nil {
		return ""
	}
	return cat.Code
}

func (s *Service) commitRevision(doc store.Document, categoryCode, author, message string) {
	err := s.history.Commit(doc.ID, docMeta(doc, categoryCode), author, message)
	if errors.Is(err, histrepo.ErrNoHistory) {
		err = s.history.EnsureRepo(doc.ID, docMeta(doc, categoryCode), author)
	}
	if err != nil {
		s.logger.Warn("revision commit failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

// fileCategoryFor derives the display bucket from the mimetype, falling
// back to the file extension for generic content types.
func fileCategoryFor(contentType, name string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "Photo"
	case strings.HasPrefix(ct, "video/"):
		return "Video"
	case strings.HasPrefix(ct, "audio/"):
		return "Audio"
	case ct == "application/pdf":
		return "PDF"
	case strings.Contains(ct, "msword"), strings.Contains(ct, "wordprocessingml"):
		return "Word"
	case strings.Contains(ct, "ms-excel"), strings.Contains(ct, "spreadsheetml"):
		return "Excel"
	case strings.Contains(ct, "ms-powerpoint"), strings.Contains(ct, "presentationml"):
		return "PowerPoint"
	case strings.Contains(ct, "zip"), strings.Contains(ct, "rar"),
		strings.Contains(ct, "7z"), strings.Contains(ct, "tar"), strings.Contains(ct, "gzip"):
		return "Archive"
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return "Photo"
	case ".doc", ".docx":
		return "Word"
	case ".xls", ".xlsx", ".csv":
		return "Excel"
	case ".ppt", ".pptx":
		return "PowerPoint"
	case ".pdf":
		return "PDF"
	case ".mp4", ".mov", ".avi", ".mkv":
		return "Video"
	case ".mp3", ".wav", ".ogg", ".flac":
		return "Audio"
	case ".zip", ".rar", ".7z", ".tar", ".gz":
		return "Archive"
	}
	return "Other"
}

func parseExpireDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, validationError("expireDate must be RFC 3339 or YYYY-MM-DD")
}

func docMeta(doc store.Document, categoryCode string) histrepo.Meta {
	meta := histrepo.Meta{
		Name:         doc.Name,
		Title:        doc.Title,
		Description:  doc.Description,
		CategoryCode: categoryCode,
		Status:       doc.Status,
	}
	if doc.ExpireDate != nil {
		meta.ExpireDate = doc.ExpireDate.UTC().Format("2006-01-02")
	}
	return meta
}

func indexRecord(doc store.Document) search.DocumentRecord {
	return search.DocumentRecord{
		ID:             doc.ID,
		Name:           doc.Name,
		Title:          doc.Title,
		Description:    doc.Description,
		FileOwner:      doc.FileOwner,
		CategoryID:     strVal(doc.CategoryID),
		OrganizationID: doc.OrganizationID,
		DepartmentID:   doc.DepartmentID,
		Status:         doc.Status,
		FileCategory:   doc.FileCategory,
	}
}

// ------------------------------------------------------------------
// Payloads

func categoryJSON(cat store.DocumentCategory) map[string]any {
	return map[string]any{
		"id":             cat.ID,
		"organizationId": cat.OrganizationID,
		"name":           cat.Name,
		"code":           cat.Code,
		"description":    cat.Description,
		"createdBy":      strVal(cat.CreatedBy),
		"createdAt":      cat.CreatedAt,
		"updatedAt":      cat.UpdatedAt,
	}
}

func categoryStatsJSON(stats store.CategoryStats) map[string]any {
	return map[string]any{
		"categoryId":   stats.CategoryID,
		"categoryName": stats.CategoryName,
		"categoryCode": stats.CategoryCode,
		"documents":    stats.DocCount,
		"totalBytes":   stats.TotalBytes,
	}
}

func docJSON(doc store.Document) map[string]any {
	return map[string]any{
		"id":             doc.ID,
		"name":           doc.Name,
		"title":          doc.Title,
		"description":    doc.Description,
		"fileType":       doc.FileType,
		"fileCategory":   doc.FileCategory,
		"sizeBytes":      doc.SizeBytes,
		"fileOwner":      doc.FileOwner,
		"categoryId":     strVal(doc.CategoryID),
		"organizationId": doc.OrganizationID,
		"departmentId":   doc.DepartmentID,
		"createdBy":      strVal(doc.CreatedBy),
		"expireDate":     doc.ExpireDate,
		"status":         doc.Status,
		"archivedAt":     doc.ArchivedAt,
		"createdAt":      doc.CreatedAt,
		"updatedAt":      doc.UpdatedAt,
	}
}

func revisionJSON(rev store.RevisionInfo) map[string]any {
	return map[string]any{
		"hash":      rev.Hash,
		"message":   rev.Message,
		"author":    rev.Author,
		"createdAt": rev.CreatedAt,
	}
}

func (s *Service) shareJSON(share store.DocumentShare) map[string]any {
	return map[string]any{
		"id":         share.ID,
		"documentId": share.DocumentID,
		"token":      share.Token,
		"url":        strings.TrimRight(s.cfg.AppBaseURL, "/") + "/share/" + share.Token,
		"createdBy":  share.CreatedBy,
		"expiresAt":  share.ExpiresAt,
		"createdAt":  share.CreatedAt,
	}
}
