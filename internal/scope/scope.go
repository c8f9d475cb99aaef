// Package scope resolves a principal into the single row-scope predicate
// applied to every tenant-scoped query and mutation. Handlers never build
// their own organization/department filters; they resolve a Scope once and
// pass it down to the store.
package scope

import (
	"fmt"

	"docuvault/api/internal/rbac"
)

// Principal is the authenticated actor attached to a request.
type Principal struct {
	UserID         string
	DisplayName    string
	Role           rbac.Role
	OrganizationID string
	DepartmentID   string
}

// Scope is the resolved row predicate. A zero Scope matches nothing.
type Scope struct {
	// All short-circuits every filter (superadmin).
	All bool
	// OrganizationID restricts rows to one tenant when set.
	OrganizationID string
	// DepartmentID further restricts rows to one department when set.
	DepartmentID string
	// UserID is the principal behind the scope.
	UserID string
	// OwnDocumentsOnly restricts document mutations to rows the principal
	// created. Reads are unaffected.
	OwnDocumentsOnly bool
}

// For maps a principal to its scope:
//
//	superadmin -> all rows
//	org_admin  -> organization_id = principal org
//	dept_head  -> organization_id = principal org AND department_id = principal dept
//	member     -> same read scope as dept_head, document writes limited to own rows
func For(p Principal) Scope {
	switch p.Role {
	case rbac.RoleSuperadmin:
		return Scope{All: true, UserID: p.UserID}
	case rbac.RoleOrgAdmin:
		return Scope{OrganizationID: p.OrganizationID, UserID: p.UserID}
	case rbac.RoleDeptHead:
		return Scope{OrganizationID: p.OrganizationID, DepartmentID: p.DepartmentID, UserID: p.UserID}
	case rbac.RoleMember:
		return Scope{
			OrganizationID:   p.OrganizationID,
			DepartmentID:     p.DepartmentID,
			UserID:           p.UserID,
			OwnDocumentsOnly: true,
		}
	default:
		return Scope{}
	}
}

// Filter appends the scope's SQL conditions to conds and args. Placeholders
// continue the numbering of args, so every argument in the final query must
// flow through the same slice. deptCol may be empty for tables that are not
// department-scoped (or where a dept_head may see the whole row, such as
// their own organization).
func (s Scope) Filter(conds []string, args []any, orgCol, deptCol string) ([]string, []any) {
	if s.All {
		return conds, args
	}
	if s.OrganizationID == "" {
		// A scope with no tenant matches nothing. Keeps a forged or
		// half-built principal from widening into a full-table read.
		conds = append(conds, "FALSE")
		return conds, args
	}
	args = append(args, s.OrganizationID)
	conds = append(conds, fmt.Sprintf("%s = $%d", orgCol, len(args)))
	if deptCol != "" && s.DepartmentID != "" {
		args = append(args, s.DepartmentID)
		conds = append(conds, fmt.Sprintf("%s = $%d", deptCol, len(args)))
	}
	return conds, args
}

// AllowsOrg reports whether rows of the given organization are in scope.
func (s Scope) AllowsOrg(organizationID string) bool {
	if s.All {
		return true
	}
	return s.OrganizationID != "" && s.OrganizationID == organizationID
}

// AllowsDept reports whether rows of the given organization/department pair
// are in scope. An empty departmentID on the row only passes for scopes
// without a department restriction.
func (s Scope) AllowsDept(organizationID, departmentID string) bool {
	if s.All {
		return true
	}
	if !s.AllowsOrg(organizationID) {
		return false
	}
	if s.DepartmentID == "" {
		return true
	}
	return s.DepartmentID == departmentID
}

// AllowsDocumentRead reports whether a document row is visible.
func (s Scope) AllowsDocumentRead(organizationID, departmentID string) bool {
	return s.AllowsDept(organizationID, departmentID)
}

// AllowsDocumentWrite reports whether a document row may be mutated. For
// member scopes the row must also have been created by the principal.
func (s Scope) AllowsDocumentWrite(organizationID, departmentID, createdBy string) bool {
	if !s.AllowsDept(organizationID, departmentID) {
		return false
	}
	if s.OwnDocumentsOnly {
		return createdBy != "" && createdBy == s.UserID
	}
	return true
}
