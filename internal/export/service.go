package export

import (
	"fmt"
	"time"
)

// Service renders export downloads. Row assembly and scope enforcement
// happen in the caller; this package only formats.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// DocumentRegister renders the scoped document register in the requested
// format.
func (s *Service) DocumentRegister(data RegisterData, format Format) (*Result, error) {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	if data.Title == "" {
		data.Title = "Document Register"
	}

	switch format {
	case FormatPDF:
		html, err := RenderRegisterHTML(data)
		if err != nil {
			return nil, fmt.Errorf("render register template: %w", err)
		}
		return renderPDF(html, data.Title)
	case FormatDOCX:
		headers := []string{"File", "Title", "Category", "Owner", "Organization", "Department", "Size", "Expires", "Status"}
		rows := make([][]string, 0, len(data.Rows))
		for _, r := range data.Rows {
			expires := ""
			if r.ExpireDate != nil {
				expires = fmt.Sprintf("%s (%s)", r.ExpireDate.Format("2006-01-02"), r.ExpireStatus)
			}
			rows = append(rows, []string{
				r.Name, r.Title, r.CategoryCode, r.FileOwner,
				r.OrganizationName, r.DepartmentName,
				formatSize(r.SizeBytes), expires, r.Status,
			})
		}
		return renderDOCX(data.Title, headers, rows, data.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// LicenseReport renders the license report as PDF.
func (s *Service) LicenseReport(data LicenseReportData) (*Result, error) {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	html, err := RenderLicenseReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render license report template: %w", err)
	}
	return renderPDF(html, "License-Report")
}
