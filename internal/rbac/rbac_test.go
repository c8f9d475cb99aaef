package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "member read", role: RoleMember, action: ActionRead, allow: true},
		{name: "member upload", role: RoleMember, action: ActionUpload, allow: true},
		{name: "member manage users", role: RoleMember, action: ActionManageUsers, allow: false},
		{name: "member manage orgs", role: RoleMember, action: ActionManageOrgs, allow: false},
		{name: "dept head manage users", role: RoleDeptHead, action: ActionManageUsers, allow: true},
		{name: "dept head manage departments", role: RoleDeptHead, action: ActionManageDepts, allow: false},
		{name: "dept head analytics", role: RoleDeptHead, action: ActionViewAnalytics, allow: true},
		{name: "org admin manage departments", role: RoleOrgAdmin, action: ActionManageDepts, allow: true},
		{name: "org admin manage orgs", role: RoleOrgAdmin, action: ActionManageOrgs, allow: false},
		{name: "org admin manage licenses", role: RoleOrgAdmin, action: ActionManageLicenses, allow: false},
		{name: "superadmin manage orgs", role: RoleSuperadmin, action: ActionManageOrgs, allow: true},
		{name: "superadmin manage licenses", role: RoleSuperadmin, action: ActionManageLicenses, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"superadmin", RoleSuperadmin},
		{"super_admin", RoleSuperadmin},
		{"org_admin", RoleOrgAdmin},
		{"dept_head", RoleDeptHead},
		{"member", RoleMember},
		{"user", RoleMember},
		{"", RoleMember},
		{"banana", RoleMember},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAssignable(t *testing.T) {
	cases := []struct {
		name   string
		actor  Role
		target Role
		allow  bool
	}{
		{"superadmin assigns superadmin", RoleSuperadmin, RoleSuperadmin, true},
		{"org admin assigns org admin", RoleOrgAdmin, RoleOrgAdmin, true},
		{"org admin assigns superadmin", RoleOrgAdmin, RoleSuperadmin, false},
		{"dept head assigns member", RoleDeptHead, RoleMember, true},
		{"dept head assigns dept head", RoleDeptHead, RoleDeptHead, true},
		{"dept head assigns org admin", RoleDeptHead, RoleOrgAdmin, false},
		{"member assigns member", RoleMember, RoleMember, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Assignable(tc.actor, tc.target); got != tc.allow {
				t.Fatalf("Assignable(%q, %q) = %v, want %v", tc.actor, tc.target, got, tc.allow)
			}
		})
	}
}
