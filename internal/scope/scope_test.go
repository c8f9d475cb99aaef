package scope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"docuvault/api/internal/rbac"
)

func TestForByRole(t *testing.T) {
	cases := []struct {
		name string
		p    Principal
		want Scope
	}{
		{
			name: "superadmin sees everything",
			p:    Principal{UserID: "usr_1", Role: rbac.RoleSuperadmin},
			want: Scope{All: true, UserID: "usr_1"},
		},
		{
			name: "org admin pinned to organization",
			p:    Principal{UserID: "usr_2", Role: rbac.RoleOrgAdmin, OrganizationID: "org_a", DepartmentID: "dept_x"},
			want: Scope{OrganizationID: "org_a", UserID: "usr_2"},
		},
		{
			name: "dept head pinned to organization and department",
			p:    Principal{UserID: "usr_3", Role: rbac.RoleDeptHead, OrganizationID: "org_a", DepartmentID: "dept_x"},
			want: Scope{OrganizationID: "org_a", DepartmentID: "dept_x", UserID: "usr_3"},
		},
		{
			name: "member additionally limited to own document writes",
			p:    Principal{UserID: "usr_4", Role: rbac.RoleMember, OrganizationID: "org_a", DepartmentID: "dept_x"},
			want: Scope{OrganizationID: "org_a", DepartmentID: "dept_x", UserID: "usr_4", OwnDocumentsOnly: true},
		},
		{
			name: "unknown role matches nothing",
			p:    Principal{UserID: "usr_5", Role: rbac.Role("ghost"), OrganizationID: "org_a"},
			want: Scope{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, For(tc.p))
		})
	}
}

func TestFilterPlaceholders(t *testing.T) {
	sc := For(Principal{UserID: "usr_1", Role: rbac.RoleDeptHead, OrganizationID: "org_a", DepartmentID: "dept_x"})

	conds := []string{"d.status = $1"}
	args := []any{"active"}
	conds, args = sc.Filter(conds, args, "d.organization_id", "d.department_id")

	require.Equal(t, []string{"d.status = $1", "d.organization_id = $2", "d.department_id = $3"}, conds)
	require.Equal(t, []any{"active", "org_a", "dept_x"}, args)
}

func TestFilterSuperadminAddsNothing(t *testing.T) {
	sc := Scope{All: true}
	conds, args := sc.Filter(nil, nil, "o.id", "")
	require.Empty(t, conds)
	require.Empty(t, args)
}

func TestFilterEmptyScopeMatchesNothing(t *testing.T) {
	sc := Scope{}
	conds, args := sc.Filter(nil, nil, "d.organization_id", "d.department_id")
	require.Equal(t, []string{"FALSE"}, conds)
	require.Empty(t, args)
	require.True(t, strings.Contains(strings.Join(conds, " AND "), "FALSE"))
}

func TestFilterSkipsDeptWhenColumnAbsent(t *testing.T) {
	sc := For(Principal{UserID: "usr_1", Role: rbac.RoleDeptHead, OrganizationID: "org_a", DepartmentID: "dept_x"})
	conds, args := sc.Filter(nil, nil, "o.id", "")
	require.Equal(t, []string{"o.id = $1"}, conds)
	require.Equal(t, []any{"org_a"}, args)
}

func TestAllowsDept(t *testing.T) {
	orgAdmin := For(Principal{UserID: "usr_1", Role: rbac.RoleOrgAdmin, OrganizationID: "org_a"})
	deptHead := For(Principal{UserID: "usr_2", Role: rbac.RoleDeptHead, OrganizationID: "org_a", DepartmentID: "dept_x"})

	require.True(t, orgAdmin.AllowsDept("org_a", "dept_x"))
	require.True(t, orgAdmin.AllowsDept("org_a", "dept_y"))
	require.False(t, orgAdmin.AllowsDept("org_b", "dept_x"))

	require.True(t, deptHead.AllowsDept("org_a", "dept_x"))
	require.False(t, deptHead.AllowsDept("org_a", "dept_y"))
	require.False(t, deptHead.AllowsDept("org_b", "dept_x"))
}

func TestAllowsDocumentWrite(t *testing.T) {
	member := For(Principal{UserID: "usr_9", Role: rbac.RoleMember, OrganizationID: "org_a", DepartmentID: "dept_x"})
	deptHead := For(Principal{UserID: "usr_2", Role: rbac.RoleDeptHead, OrganizationID: "org_a", DepartmentID: "dept_x"})

	// Members mutate only what they created.
	require.True(t, member.AllowsDocumentWrite("org_a", "dept_x", "usr_9"))
	require.False(t, member.AllowsDocumentWrite("org_a", "dept_x", "usr_2"))
	require.False(t, member.AllowsDocumentWrite("org_a", "dept_x", ""))

	// Department heads mutate anything in their department.
	require.True(t, deptHead.AllowsDocumentWrite("org_a", "dept_x", "usr_9"))
	require.False(t, deptHead.AllowsDocumentWrite("org_a", "dept_y", "usr_9"))

	// Reads are not restricted to own rows for members.
	require.True(t, member.AllowsDocumentRead("org_a", "dept_x"))
	require.False(t, member.AllowsDocumentRead("org_a", "dept_y"))
}
