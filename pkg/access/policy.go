package access

import (
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

// allowedVisibilities is the role → allowed-visibility matrix. Files
// may be created or relabeled only to a visibility in the actor's set.
var allowedVisibilities = map[models.Role][]models.Visibility{
	models.RoleSystemAdmin: {
		models.VisibilityPrivate, models.VisibilityDepartment, models.VisibilityCompany,
		models.VisibilityOrganization, models.VisibilitySystem,
	},
	models.RoleOrgAdmin: {
		models.VisibilityPrivate, models.VisibilityDepartment, models.VisibilityCompany,
		models.VisibilityOrganization,
	},
	models.RoleCompanyAdmin: {
		models.VisibilityPrivate, models.VisibilityDepartment, models.VisibilityCompany,
	},
	models.RoleUser: {
		models.VisibilityPrivate,
	},
}

// AllowedVisibilities returns the visibilities an actor role may assign.
func AllowedVisibilities(role models.Role) []models.Visibility {
	return allowedVisibilities[role]
}

// VisibilityAllowed reports whether a role may assign a visibility.
func VisibilityAllowed(role models.Role, v models.Visibility) bool {
	for _, allowed := range allowedVisibilities[role] {
		if allowed == v {
			return true
		}
	}
	return false
}

// CanAccessFile is the access predicate applied to every file read.
func CanAccessFile(file *models.FileRecord, actor *models.User) bool {
	if file == nil || actor == nil {
		return false
	}
	if file.UserID == actor.UserID {
		return true
	}
	if actor.Role == models.RoleSystemAdmin {
		return true
	}
	switch file.Visibility {
	case models.VisibilitySystem:
		return true
	case models.VisibilityOrganization:
		return file.OrganizationID != "" && file.OrganizationID == actor.OrganizationID
	case models.VisibilityCompany:
		return file.CompanyID != "" && file.CompanyID == actor.CompanyID
	case models.VisibilityDepartment:
		return file.CompanyID != "" && file.CompanyID == actor.CompanyID &&
			file.DepartmentID != "" && file.DepartmentID == actor.DepartmentID
	}
	return false
}

// CanManageFile reports whether the actor may update or delete a file
// record (owner or system admin).
func CanManageFile(file *models.FileRecord, actor *models.User) bool {
	if file == nil || actor == nil {
		return false
	}
	return file.UserID == actor.UserID || actor.Role == models.RoleSystemAdmin
}

// CanCreateUser reports whether the actor may create a user with the
// given role and scope.
func CanCreateUser(actor *models.User, role models.Role, scope models.Scope) bool {
	if actor == nil || !role.Valid() {
		return false
	}
	switch actor.Role {
	case models.RoleSystemAdmin:
		return true
	case models.RoleOrgAdmin:
		if role != models.RoleCompanyAdmin && role != models.RoleUser {
			return false
		}
		return scope.OrganizationID != "" && scope.OrganizationID == actor.OrganizationID
	case models.RoleCompanyAdmin:
		if role != models.RoleUser {
			return false
		}
		return scope.CompanyID != "" && scope.CompanyID == actor.CompanyID
	}
	return false
}

// CanSeeUser reports whether an admin's user listing may include the
// given user, mirroring the forced scope filters of /admin/users.
func CanSeeUser(actor, user *models.User) bool {
	if actor == nil || user == nil {
		return false
	}
	switch actor.Role {
	case models.RoleSystemAdmin:
		return true
	case models.RoleOrgAdmin:
		return user.OrganizationID != "" && user.OrganizationID == actor.OrganizationID
	case models.RoleCompanyAdmin:
		return user.CompanyID != "" && user.CompanyID == actor.CompanyID
	}
	return false
}
