package app

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"docuvault/api/internal/store"
)

func expiredLicense(organizationID string) store.OrganizationLicense {
	now := time.Now()
	return store.OrganizationLicense{
		ID:                 "lic_1",
		OrganizationID:     organizationID,
		SubscriptionStatus: "expired",
		StartDate:          now.AddDate(0, 0, -60),
		EndDate:            now.AddDate(0, 0, -5),
		TrialDays:          30,
		MaxUsers:           10,
		MaxStorageGB:       5,
	}
}

func TestExpiredLicenseBlocksTenantRoutes(t *testing.T) {
	admin := activeUser(t, "usr_admin", "admin@acme.test", "org_admin", "org_1", "")
	fs := &fakeStore{
		getUserByIDFn: userTable(admin),
		getLicenseByOrgFn: func(_ context.Context, organizationID string) (store.OrganizationLicense, error) {
			return expiredLicense(organizationID), nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := tokenFor(t, svc, admin)

	paths := []string{
		"/api/documents",
		"/api/users",
		"/api/departments",
		"/api/search?q=budget",
		"/api/analytics/dashboard",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rr := doAuthed(t, server.Handler(), http.MethodGet, path, token, "")
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
			}
			if payload := decodePayload(t, rr); payload["code"] != "LICENSE_EXPIRED" {
				t.Errorf("expected LICENSE_EXPIRED, got %v", payload["code"])
			}
		})
	}
}

func TestMissingLicenseReturnsLicenseRequired(t *testing.T) {
	admin := activeUser(t, "usr_admin", "admin@acme.test", "org_admin", "org_1", "")
	fs := &fakeStore{
		getUserByIDFn: userTable(admin),
		getLicenseByOrgFn: func(context.Context, string) (store.OrganizationLicense, error) {
			return store.OrganizationLicense{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	rr := doAuthed(t, server.Handler(), http.MethodGet, "/api/documents", tokenFor(t, svc, admin), "")

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
	if payload := decodePayload(t, rr); payload["code"] != "LICENSE_REQUIRED" {
		t.Errorf("expected LICENSE_REQUIRED, got %v", payload["code"])
	}
}

// The organizations surface stays reachable with an expired license, so a
// locked-out tenant can still see its license and a superadmin can renew
// it. Everything else reopens once the renewal lands.
func TestExpiredTenantLicenseRenewalArc(t *testing.T) {
	root := activeUser(t, "usr_root", "root@vault.test", "superadmin", "", "")
	admin := activeUser(t, "usr_admin", "admin@acme.test", "org_admin", "org_1", "")

	expired := true
	var renewedDays int
	fs := &fakeStore{
		getUserByIDFn: userTable(root, admin),
		getOrganizationFn: func(_ context.Context, organizationID string) (store.Organization, error) {
			if organizationID != "org_1" {
				return store.Organization{}, sql.ErrNoRows
			}
			return store.Organization{ID: "org_1", Name: "Acme", Code: "ACME", IsActive: true}, nil
		},
		getLicenseByOrgFn: func(_ context.Context, organizationID string) (store.OrganizationLicense, error) {
			if expired {
				return expiredLicense(organizationID), nil
			}
			lic := expiredLicense(organizationID)
			lic.SubscriptionStatus = "active"
			lic.EndDate = time.Now().AddDate(0, 0, 90)
			return lic, nil
		},
		renewLicenseFn: func(_ context.Context, organizationID string, days int) (store.OrganizationLicense, error) {
			renewedDays = days
			expired = false
			lic := expiredLicense(organizationID)
			lic.SubscriptionStatus = "active"
			lic.EndDate = time.Now().AddDate(0, 0, days)
			return lic, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	adminToken := tokenFor(t, svc, admin)

	// Tenant routes are closed.
	rr := doAuthed(t, server.Handler(), http.MethodGet, "/api/documents", adminToken, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected documents blocked, got %d", rr.Code)
	}

	// The license itself is still visible.
	rr = doAuthed(t, server.Handler(), http.MethodGet, "/api/organizations/org_1/license", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected license visible while expired, got %d body=%s", rr.Code, rr.Body.String())
	}
	lic, ok := decodePayload(t, rr)["license"].(map[string]any)
	if !ok {
		t.Fatalf("expected license payload")
	}
	if lic["subscriptionStatus"] != "expired" {
		t.Errorf("expected expired status, got %v", lic["subscriptionStatus"])
	}
	if lic["isActive"] != false {
		t.Errorf("expected isActive false, got %v", lic["isActive"])
	}
	if days, ok := lic["daysRemaining"].(float64); !ok || days >= 0 {
		t.Errorf("expected negative daysRemaining, got %v", lic["daysRemaining"])
	}

	// Renewal is reserved for superadmins.
	rr = doAuthed(t, server.Handler(), http.MethodPost, "/api/organizations/org_1/license/renew",
		adminToken, `{"days":90}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected org admin renewal rejected, got %d", rr.Code)
	}

	rr = doAuthed(t, server.Handler(), http.MethodPost, "/api/organizations/org_1/license/renew",
		tokenFor(t, svc, root), `{"days":90}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected renewal to succeed, got %d body=%s", rr.Code, rr.Body.String())
	}
	if renewedDays != 90 {
		t.Errorf("expected 90 day renewal, got %d", renewedDays)
	}

	// The tenant is back in business.
	rr = doAuthed(t, server.Handler(), http.MethodGet, "/api/documents", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected documents reopened after renewal, got %d", rr.Code)
	}
}

func TestSuperadminSkipsLicenseGateOverHTTP(t *testing.T) {
	root := activeUser(t, "usr_root", "root@vault.test", "superadmin", "", "")
	licenseLookups := 0
	fs := &fakeStore{
		getUserByIDFn: userTable(root),
		getLicenseByOrgFn: func(context.Context, string) (store.OrganizationLicense, error) {
			licenseLookups++
			return store.OrganizationLicense{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	rr := doAuthed(t, server.Handler(), http.MethodGet, "/api/documents", tokenFor(t, svc, root), "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if licenseLookups != 0 {
		t.Errorf("expected no license lookups for superadmin, got %d", licenseLookups)
	}
}

func TestUserQuotaEnforcedOverHTTP(t *testing.T) {
	admin := activeUser(t, "usr_admin", "admin@acme.test", "org_admin", "org_1", "")
	inserts := 0
	fs := &fakeStore{
		getUserByIDFn: userTable(admin),
		getLicenseByOrgFn: func(_ context.Context, organizationID string) (store.OrganizationLicense, error) {
			lic := expiredLicense(organizationID)
			lic.SubscriptionStatus = "active"
			lic.EndDate = time.Now().AddDate(0, 0, 90)
			lic.MaxUsers = 3
			return lic, nil
		},
		countUsersInOrgFn: func(context.Context, string) (int, error) {
			return 3, nil
		},
		insertUserFn: func(context.Context, store.User) error {
			inserts++
			return nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	rr := doAuthed(t, server.Handler(), http.MethodPost, "/api/users", tokenFor(t, svc, admin),
		`{"email":"new@acme.test","password":"password123","displayName":"New User","role":"member"}`)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	if payload["code"] != "QUOTA_EXCEEDED" {
		t.Errorf("expected QUOTA_EXCEEDED, got %v", payload["code"])
	}
	if msg, _ := payload["error"].(string); !strings.Contains(msg, "3 users") {
		t.Errorf("expected limit in message, got %q", msg)
	}
	if inserts != 0 {
		t.Errorf("expected no insert past the quota, got %d", inserts)
	}
}
