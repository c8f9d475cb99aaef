package app

import (
	"net/http"
)

func (s *HTTPServer) handleOrganizations(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		payload, err := s.service.ListOrganizations(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && r.Method == http.MethodPost:
		var body OrganizationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateOrganization(r.Context(), session, body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case len(parts) == 3 && parts[2] == "license-status" && r.Method == http.MethodGet:
		payload, err := s.service.LicenseStatus(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 4 && parts[2] == "licenses" && parts[3] == "backfill" && r.Method == http.MethodPost:
		payload, err := s.service.BackfillLicenses(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodGet:
		payload, err := s.service.GetOrganization(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodPut:
		var body OrganizationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateOrganization(r.Context(), session, parts[2], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		force := r.URL.Query().Get("force") == "true"
		if err := s.service.DeleteOrganization(r.Context(), session, parts[2], force); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 4 && parts[3] == "license" && r.Method == http.MethodGet:
		payload, err := s.service.GetOrganizationLicense(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 5 && parts[3] == "license" && parts[4] == "renew" && r.Method == http.MethodPost:
		var body struct {
			Days int `json:"days"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RenewOrganizationLicense(r.Context(), session, parts[2], body.Days)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDepartments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		payload, err := s.service.ListDepartments(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && r.Method == http.MethodPost:
		var body DepartmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateDepartment(r.Context(), session, body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case len(parts) == 3 && r.Method == http.MethodGet:
		payload, err := s.service.GetDepartment(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodPut:
		var body DepartmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateDepartment(r.Context(), session, parts[2], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if err := s.service.DeleteDepartment(r.Context(), session, parts[2]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		payload, err := s.service.ListUsers(r.Context(), session)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 2 && r.Method == http.MethodPost:
		var body UserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateUser(r.Context(), session, body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case len(parts) == 3 && r.Method == http.MethodGet:
		payload, err := s.service.GetUser(r.Context(), session, parts[2])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodPut:
		var body UserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateUser(r.Context(), session, parts[2], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if err := s.service.DeleteUser(r.Context(), session, parts[2]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
