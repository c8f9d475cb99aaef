// Package rbac defines the tenant role hierarchy and the coarse action
// gates checked before any storage access.
package rbac

type Role string
type Action string

const (
	RoleSuperadmin Role = "superadmin"
	RoleOrgAdmin   Role = "org_admin"
	RoleDeptHead   Role = "dept_head"
	RoleMember     Role = "member"
)

const (
	ActionRead            Action = "read"
	ActionUpload          Action = "upload"
	ActionManageDocuments Action = "manage_documents"
	ActionManageUsers     Action = "manage_users"
	ActionManageDepts     Action = "manage_departments"
	ActionManageOrgs      Action = "manage_organizations"
	ActionManageLicenses  Action = "manage_licenses"
	ActionViewAnalytics   Action = "view_analytics"
	ActionExport          Action = "export"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleSuperadmin:
		return true
	case RoleOrgAdmin:
		return action == ActionRead || action == ActionUpload || action == ActionManageDocuments ||
			action == ActionManageUsers || action == ActionManageDepts ||
			action == ActionViewAnalytics || action == ActionExport
	case RoleDeptHead:
		return action == ActionRead || action == ActionUpload || action == ActionManageDocuments ||
			action == ActionManageUsers || action == ActionViewAnalytics || action == ActionExport
	case RoleMember:
		return action == ActionRead || action == ActionUpload || action == ActionExport
	default:
		return false
	}
}

// Normalize maps stored role strings to the canonical set. Legacy rows
// imported from the previous system used "super_admin" and "user".
func Normalize(role string) Role {
	switch role {
	case "super_admin":
		return RoleSuperadmin
	case "user":
		return RoleMember
	}
	switch Role(role) {
	case RoleSuperadmin, RoleOrgAdmin, RoleDeptHead, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}

// Assignable reports whether actor may create or modify a user holding
// target. org_admin manages everything below superadmin; dept_head manages
// members and fellow department heads only.
func Assignable(actor, target Role) bool {
	switch actor {
	case RoleSuperadmin:
		return true
	case RoleOrgAdmin:
		return target != RoleSuperadmin
	case RoleDeptHead:
		return target == RoleMember || target == RoleDeptHead
	default:
		return false
	}
}
