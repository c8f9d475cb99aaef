package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"slug": func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), " ", "-")
	},
	"formatDate": func(v interface{}, layout string) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format(layout)
		case *time.Time:
			if t == nil {
				return ""
			}
			return t.Format(layout)
		}
		return ""
	},
	"formatSize": formatSize,
}

var (
	registerTemplate      = template.Must(template.New("register").Funcs(templateFuncs).Parse(registerHTML))
	licenseReportTemplate = template.Must(template.New("licenses").Funcs(templateFuncs).Parse(licenseReportHTML))
)

// formatSize renders a byte count for humans.
func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// RenderRegisterHTML renders the document register template.
func RenderRegisterHTML(data RegisterData) (string, error) {
	var buf bytes.Buffer
	if err := registerTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderLicenseReportHTML renders the license report template.
func RenderLicenseReportHTML(data LicenseReportData) (string, error) {
	var buf bytes.Buffer
	if err := licenseReportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const registerHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; font-size: 11px; margin: 1.5rem; }
    h1 { font-size: 18px; border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; margin-bottom: 1.5rem; }
    table { width: 100%; border-collapse: collapse; }
    th { background: #f0f0f0; text-align: left; }
    th, td { border: 1px solid #999; padding: 4px 6px; }
    tr { page-break-inside: avoid; }
    .status-archived { color: #999; }
    .expire-expired { color: #b00020; font-weight: bold; }
    .expire-expiring-soon { color: #c77700; font-weight: bold; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Generated by {{.GeneratedBy}} on {{formatDate .GeneratedAt "Jan 2, 2006 15:04"}} &middot; {{len .Rows}} documents</div>
  <table>
    <thead>
      <tr>
        <th>File</th>
        <th>Title</th>
        <th>Category</th>
        <th>Owner</th>
        <th>Organization</th>
        <th>Department</th>
        <th>Size</th>
        <th>Expires</th>
        <th>Status</th>
      </tr>
    </thead>
    <tbody>
      {{range .Rows}}
      <tr>
        <td>{{.Name}}</td>
        <td>{{.Title}}</td>
        <td>{{.CategoryCode}}</td>
        <td>{{.FileOwner}}</td>
        <td>{{.OrganizationName}}</td>
        <td>{{.DepartmentName}}</td>
        <td>{{formatSize .SizeBytes}}</td>
        <td class="expire-{{slug .ExpireStatus}}">{{if .ExpireDate}}{{formatDate .ExpireDate "2006-01-02"}} ({{.ExpireStatus}}){{else}}&mdash;{{end}}</td>
        <td class="status-{{.Status}}">{{.Status}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
</body>
</html>`

const licenseReportHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>License Report</title>
  <style>
    body { font-family: Arial, sans-serif; font-size: 11px; margin: 1.5rem; }
    h1 { font-size: 18px; border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; margin-bottom: 1.5rem; }
    table { width: 100%; border-collapse: collapse; }
    th { background: #f0f0f0; text-align: left; }
    th, td { border: 1px solid #999; padding: 4px 6px; }
    .status-expired { color: #b00020; font-weight: bold; }
    .status-trial { color: #c77700; }
  </style>
</head>
<body>
  <h1>License Report</h1>
  <div class="meta">Generated by {{.GeneratedBy}} on {{formatDate .GeneratedAt "Jan 2, 2006 15:04"}} &middot; {{len .Rows}} organizations</div>
  <table>
    <thead>
      <tr>
        <th>Organization</th>
        <th>Code</th>
        <th>Status</th>
        <th>Start</th>
        <th>End</th>
        <th>Days Left</th>
        <th>Users</th>
        <th>Storage Limit</th>
      </tr>
    </thead>
    <tbody>
      {{range .Rows}}
      <tr>
        <td>{{.OrganizationName}}</td>
        <td>{{.OrganizationCode}}</td>
        <td class="status-{{.Status}}">{{.Status}}</td>
        <td>{{formatDate .StartDate "2006-01-02"}}</td>
        <td>{{formatDate .EndDate "2006-01-02"}}</td>
        <td>{{.DaysRemaining}}</td>
        <td>{{.CurrentUsers}} / {{.MaxUsers}}</td>
        <td>{{.MaxStorageGB}} GB</td>
      </tr>
      {{end}}
    </tbody>
  </table>
</body>
</html>`
