// Package export renders the document register and license report as PDF
// or DOCX downloads.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// RegisterRow is one document line in the register.
type RegisterRow struct {
	Name             string
	Title            string
	CategoryCode     string
	FileOwner        string
	OrganizationName string
	DepartmentName   string
	ExpireDate       *time.Time
	ExpireStatus     string
	Status           string
	SizeBytes        int64
}

// RegisterData is everything the register templates need.
type RegisterData struct {
	Title       string
	GeneratedBy string
	GeneratedAt time.Time
	Rows        []RegisterRow
}

// LicenseRow is one organization line in the license report.
type LicenseRow struct {
	OrganizationName string
	OrganizationCode string
	Status           string
	StartDate        time.Time
	EndDate          time.Time
	DaysRemaining    int
	CurrentUsers     int
	MaxUsers         int
	MaxStorageGB     int
}

// LicenseReportData is everything the license report template needs.
type LicenseReportData struct {
	GeneratedBy string
	GeneratedAt time.Time
	Rows        []LicenseRow
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
