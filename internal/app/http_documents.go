package app

import (
	"io"
	"net/http"
	"strings"

	"docuvault/api/internal/store"
)

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		payload, err := s.service.ListCategories(r.Context(), session, r.URL.Query().Get("organizationId"))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && r.Method == http.MethodPost:
		var body CategoryInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateCategory(r.Context(), session, body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case len(parts) == 3 && parts[2] == "defaults" && r.Method == http.MethodPost:
		var body struct {
			OrganizationID string `json:"organizationId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.EnsureDefaultCategories(r.Context(), session, body.OrganizationID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 4 && parts[3] == "stats" && r.Method == http.MethodGet:
		payload, err := s.service.CategoryStats(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodGet:
		payload, err := s.service.GetCategory(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodPut:
		var body CategoryInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateCategory(r.Context(), session, parts[2], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if err := s.service.DeleteCategory(r.Context(), session, parts[2]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		query := r.URL.Query()
		payload, err := s.service.ListDocuments(r.Context(), session, store.DocumentFilter{
			Status:         strings.TrimSpace(query.Get("status")),
			CategoryID:     strings.TrimSpace(query.Get("categoryId")),
			OrganizationID: strings.TrimSpace(query.Get("organizationId")),
			DepartmentID:   strings.TrimSpace(query.Get("departmentId")),
			Limit:          queryInt(r, "limit", 0),
			Offset:         queryInt(r, "offset", 0),
		})
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && r.Method == http.MethodPost:
		s.handleDocumentUpload(w, r, session)

	case len(parts) == 3 && parts[2] == "expired" && r.Method == http.MethodGet:
		payload, err := s.service.ListExpiredDocuments(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && parts[2] == "expiring-soon" && r.Method == http.MethodGet:
		payload, err := s.service.ListExpiringDocuments(r.Context(), session, queryInt(r, "days", 0))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && parts[2] == "archive-expired" && r.Method == http.MethodPost:
		payload, err := s.service.ArchiveExpiredDocuments(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodGet:
		payload, err := s.service.GetDocument(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodPut:
		var body DocumentUpdate
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateDocument(r.Context(), session, parts[2], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if err := s.service.DeleteDocument(r.Context(), session, parts[2]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 4 && parts[3] == "download" && r.Method == http.MethodGet:
		doc, data, err := s.service.DownloadDocument(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeFile(w, doc, data)

	case len(parts) == 4 && parts[3] == "revisions" && r.Method == http.MethodGet:
		payload, err := s.service.ListRevisions(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 5 && parts[3] == "revisions" && r.Method == http.MethodGet:
		payload, err := s.service.GetRevision(r.Context(), session, parts[2], parts[4])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 4 && parts[3] == "shares" && r.Method == http.MethodGet:
		payload, err := s.service.ListShares(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 4 && parts[3] == "shares" && r.Method == http.MethodPost:
		var body ShareInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateShare(r.Context(), session, parts[2], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case len(parts) == 5 && parts[3] == "shares" && r.Method == http.MethodDelete:
		if err := s.service.DeleteShare(r.Context(), session, parts[2], parts[4]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDocumentUpload(w http.ResponseWriter, r *http.Request, session Session) {
	limit := int64(64) << 20
	if mb := s.service.cfg.MaxUploadMB; mb > 0 {
		// One extra MB covers the multipart framing.
		limit = int64(mb+1) << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file", nil)
		return
	}
	expireDate, err := parseExpireDate(r.FormValue("expireDate"))
	if err != nil {
		respondError(w, err)
		return
	}

	payload, err := s.service.UploadDocument(r.Context(), session, DocumentUpload{
		FileName:       header.Filename,
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		ContentType:    header.Header.Get("Content-Type"),
		Data:           data,
		CategoryID:     r.FormValue("categoryId"),
		OrganizationID: r.FormValue("organizationId"),
		DepartmentID:   r.FormValue("departmentId"),
		ExpireDate:     expireDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	query := r.URL.Query()
	response := s.service.SearchDocuments(
		r.Context(),
		session,
		query.Get("q"),
		query.Get("status"),
		query.Get("categoryId"),
		queryInt(r, "limit", 0),
		queryInt(r, "offset", 0),
	)
	writeJSON(w, http.StatusOK, response)
}
