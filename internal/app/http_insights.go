package app

import (
	"net/http"

	"docuvault/api/internal/export"
)

func (s *HTTPServer) handleAnalytics(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method != http.MethodGet || len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch parts[2] {
	case "dashboard":
		payload, err := s.service.Dashboard(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "storage":
		payload, err := s.service.StorageAnalytics(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleActivityLogs(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	payload, err := s.service.ListActivity(r.Context(), session, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method != http.MethodGet || len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch parts[2] {
	case "documents.pdf":
		result, err := s.service.ExportDocumentRegister(r.Context(), session, export.FormatPDF)
		if err != nil {
			respondError(w, err)
			return
		}
		writeExport(w, result)
	case "documents.docx":
		result, err := s.service.ExportDocumentRegister(r.Context(), session, export.FormatDOCX)
		if err != nil {
			respondError(w, err)
			return
		}
		writeExport(w, result)
	case "licenses.pdf":
		result, err := s.service.ExportLicenseReport(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeExport(w, result)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
