package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},                               // Empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderRegisterHTML(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	data := RegisterData{
		Title:       "Document Register",
		GeneratedBy: "Avery Admin",
		GeneratedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Rows: []RegisterRow{
			{
				Name:             "q1-report.pdf",
				Title:            "Q1 Report",
				CategoryCode:     "REPORT",
				FileOwner:        "Kim Lee",
				OrganizationName: "Acme",
				DepartmentName:   "Finance",
				ExpireDate:       &expiry,
				ExpireStatus:     "Expiring Soon",
				Status:           "active",
				SizeBytes:        2 << 20,
			},
			{
				Name:             "old-contract.pdf",
				Title:            "Old Contract",
				CategoryCode:     "CONTRACT",
				FileOwner:        "Kim Lee",
				OrganizationName: "Acme",
				DepartmentName:   "Legal",
				Status:           "archived",
			},
		},
	}

	html, err := RenderRegisterHTML(data)
	if err != nil {
		t.Fatalf("RenderRegisterHTML() error = %v", err)
	}

	for _, want := range []string{
		"Document Register",
		"Avery Admin",
		"q1-report.pdf",
		"Q1 Report",
		"REPORT",
		"Kim Lee",
		"2026-03-01",
		"Expiring Soon",
		"expire-expiring-soon",
		"status-archived",
		"2 documents",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("register HTML missing %q", want)
		}
	}
}

func TestRenderLicenseReportHTML(t *testing.T) {
	data := LicenseReportData{
		GeneratedBy: "Root",
		GeneratedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Rows: []LicenseRow{
			{
				OrganizationName: "Acme",
				OrganizationCode: "ACME",
				Status:           "trial",
				StartDate:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:          time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
				DaysRemaining:    16,
				CurrentUsers:     4,
				MaxUsers:         10,
				MaxStorageGB:     5,
			},
		},
	}

	html, err := RenderLicenseReportHTML(data)
	if err != nil {
		t.Fatalf("RenderLicenseReportHTML() error = %v", err)
	}

	for _, want := range []string{"License Report", "Acme", "ACME", "trial", "2026-01-31", "4 / 10", "5 GB"} {
		if !strings.Contains(html, want) {
			t.Errorf("license report HTML missing %q", want)
		}
	}
}

func TestRenderDOCXProducesValidPackage(t *testing.T) {
	result, err := renderDOCX("Document Register",
		[]string{"File", "Status"},
		[][]string{{"a&b.pdf", "active"}, {"c<d>.docx", "archived"}},
		"Document Register")
	if err != nil {
		t.Fatalf("renderDOCX() error = %v", err)
	}
	if result.Filename != "Document-Register.docx" {
		t.Errorf("unexpected filename %q", result.Filename)
	}

	reader, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}

	names := map[string]bool{}
	var documentXML string
	for _, f := range reader.File {
		names[f.Name] = true
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open document.xml: %v", err)
			}
			raw, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				t.Fatalf("read document.xml: %v", err)
			}
			documentXML = string(raw)
		}
	}

	for _, want := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		if !names[want] {
			t.Errorf("docx package missing %s", want)
		}
	}

	if !strings.Contains(documentXML, "a&amp;b.pdf") {
		t.Error("cell text should be XML-escaped")
	}
	if !strings.Contains(documentXML, "c&lt;d&gt;.docx") {
		t.Error("angle brackets should be XML-escaped")
	}
	if !strings.Contains(documentXML, "<w:tbl>") {
		t.Error("document should contain a table")
	}
}

func TestDocumentRegisterUnsupportedFormat(t *testing.T) {
	svc := NewService()
	if _, err := svc.DocumentRegister(RegisterData{}, Format("csv")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestDocumentRegisterDOCX(t *testing.T) {
	svc := NewService()
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	result, err := svc.DocumentRegister(RegisterData{
		GeneratedBy: "Avery",
		Rows: []RegisterRow{
			{Name: "f.pdf", Title: "F", ExpireDate: &expiry, ExpireStatus: "Valid", Status: "active"},
		},
	}, FormatDOCX)
	if err != nil {
		t.Fatalf("DocumentRegister() error = %v", err)
	}
	if result.MimeType != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Errorf("unexpected mime type %q", result.MimeType)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty docx output")
	}
}
