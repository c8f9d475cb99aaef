package app

import (
	"context"
	"time"

	"docuvault/api/internal/export"
	"docuvault/api/internal/rbac"
	"docuvault/api/internal/store"
)

const expiringSoonWindow = 30 * 24 * time.Hour

// Dashboard aggregates the caller's scope into one payload. The shape
// varies by role: superadmins additionally see the license summary and
// per-organization storage, org admins their category breakdown.
func (s *Service) Dashboard(ctx context.Context, session Session) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionViewAnalytics) {
		return nil, authorizationError("Forbidden")
	}
	sc := session.scope()
	now := time.Now()

	counts, err := s.store.SummaryCounts(ctx, sc, now)
	if err != nil {
		return nil, err
	}
	fileCats, err := s.store.DocsByFileCategory(ctx, sc)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"summary": map[string]any{
			"organizations":     counts.Organizations,
			"departments":       counts.Departments,
			"users":             counts.Users,
			"activeDocuments":   counts.ActiveDocuments,
			"archivedDocuments": counts.ArchivedDocuments,
			"expiringSoon":      counts.ExpiringSoon,
			"storageBytes":      counts.StorageBytes,
		},
		"fileCategories": fileCategoryItems(fileCats),
	}

	switch session.Role {
	case rbac.RoleSuperadmin:
		statuses, err := s.store.ListLicenseStatus(ctx, sc)
		if err != nil {
			return nil, err
		}
		payload["licenses"] = licenseSummary(statuses)
		usage, err := s.store.StorageByOrganization(ctx, sc)
		if err != nil {
			return nil, err
		}
		payload["storageByOrganization"] = storageItems(usage)
	case rbac.RoleOrgAdmin:
		stats, err := s.store.ListCategoryStats(ctx, sc, session.OrganizationID)
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, len(stats))
		for _, row := range stats {
			items = append(items, categoryStatsJSON(row))
		}
		payload["categories"] = items
	}
	return payload, nil
}

// StorageAnalytics reports active-document storage per organization
// within scope.
func (s *Service) StorageAnalytics(ctx context.Context, session Session) (map[string]any, error) {
	if !rbac.Can(session.Role, rbac.ActionViewAnalytics) {
		return nil, authorizationError("Forbidden")
	}
	usage, err := s.store.StorageByOrganization(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	return map[string]any{"organizations": storageItems(usage)}, nil
}

// ExportDocumentRegister renders every document in scope as a PDF or
// DOCX register download.
func (s *Service) ExportDocumentRegister(ctx context.Context, session Session, format export.Format) (*export.Result, error) {
	if !rbac.Can(session.Role, rbac.ActionExport) {
		return nil, authorizationError("Forbidden")
	}
	sc := session.scope()

	docs, err := s.store.ListDocuments(ctx, sc, store.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	orgNames, err := s.organizationNames(ctx, session)
	if err != nil {
		return nil, err
	}
	deptNames, err := s.departmentNames(ctx, session)
	if err != nil {
		return nil, err
	}
	catCodes, err := s.categoryCodes(ctx, session)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rows := make([]export.RegisterRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, export.RegisterRow{
			Name:             doc.Name,
			Title:            doc.Title,
			CategoryCode:     catCodes[strVal(doc.CategoryID)],
			FileOwner:        doc.FileOwner,
			OrganizationName: orgNames[doc.OrganizationID],
			DepartmentName:   deptNames[doc.DepartmentID],
			ExpireDate:       doc.ExpireDate,
			ExpireStatus:     expireStatus(doc.ExpireDate, now),
			Status:           doc.Status,
			SizeBytes:        doc.SizeBytes,
		})
	}
	result, err := s.exporter.DocumentRegister(export.RegisterData{
		Title:       "Document Register",
		GeneratedBy: session.UserName,
		GeneratedAt: now,
		Rows:        rows,
	}, format)
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, session, session.OrganizationID, "export", "document", "", string(format)+" register")
	return result, nil
}

// ExportLicenseReport renders the license monitoring view as a PDF.
func (s *Service) ExportLicenseReport(ctx context.Context, session Session) (*export.Result, error) {
	if !rbac.Can(session.Role, rbac.ActionManageLicenses) {
		return nil, authorizationError("Forbidden")
	}
	statuses, err := s.store.ListLicenseStatus(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	rows := make([]export.LicenseRow, 0, len(statuses))
	for _, row := range statuses {
		rows = append(rows, export.LicenseRow{
			OrganizationName: row.OrganizationName,
			OrganizationCode: row.OrganizationCode,
			Status:           row.Status,
			StartDate:        row.StartDate,
			EndDate:          row.EndDate,
			DaysRemaining:    row.DaysRemaining,
			CurrentUsers:     row.CurrentUsers,
			MaxUsers:         row.MaxUsers,
			MaxStorageGB:     row.MaxStorageGB,
		})
	}
	result, err := s.exporter.LicenseReport(export.LicenseReportData{
		GeneratedBy: session.UserName,
		GeneratedAt: time.Now(),
		Rows:        rows,
	})
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, session, "", "export", "license", "", "license report")
	return result, nil
}

// ------------------------------------------------------------------
// Helpers

func expireStatus(expireDate *time.Time, now time.Time) string {
	if expireDate == nil {
		return ""
	}
	switch {
	case expireDate.Before(now):
		return "Expired"
	case expireDate.Sub(now) <= expiringSoonWindow:
		return "Expiring Soon"
	default:
		return "Valid"
	}
}

func licenseSummary(statuses []store.LicenseStatus) map[string]any {
	counts := map[string]int{}
	expiringSoon := 0
	for _, row := range statuses {
		counts[row.Status]++
		if row.IsActive && row.DaysRemaining <= 30 {
			expiringSoon++
		}
	}
	return map[string]any{
		"total":        len(statuses),
		"active":       counts["active"],
		"trial":        counts["trial"],
		"expired":      counts["expired"],
		"unlicensed":   counts["none"],
		"expiringSoon": expiringSoon,
	}
}

func fileCategoryItems(stats []store.FileCategoryStats) []map[string]any {
	items := make([]map[string]any, 0, len(stats))
	for _, row := range stats {
		items = append(items, map[string]any{
			"fileCategory": row.FileCategory,
			"documents":    row.DocCount,
			"totalBytes":   row.TotalBytes,
		})
	}
	return items
}

func storageItems(usage []store.StorageUsage) []map[string]any {
	items := make([]map[string]any, 0, len(usage))
	for _, row := range usage {
		items = append(items, map[string]any{
			"organizationId":   row.OrganizationID,
			"organizationName": row.OrganizationName,
			"organizationCode": row.OrganizationCode,
			"totalBytes":       row.TotalBytes,
			"documents":        row.DocCount,
		})
	}
	return items
}

func (s *Service) organizationNames(ctx context.Context, session Session) (map[string]string, error) {
	orgs, err := s.store.ListOrganizations(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org.Name
	}
	return names, nil
}

func (s *Service) departmentNames(ctx context.Context, session Session) (map[string]string, error) {
	depts, err := s.store.ListDepartments(ctx, session.scope())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(depts))
	for _, dept := range depts {
		names[dept.ID] = dept.Name
	}
	return names, nil
}

func (s *Service) categoryCodes(ctx context.Context, session Session) (map[string]string, error) {
	cats, err := s.store.ListCategories(ctx, session.scope(), "")
	if err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(cats))
	for _, cat := range cats {
		codes[cat.ID] = cat.Code
	}
	return codes, nil
}
