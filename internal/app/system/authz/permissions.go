// internal/app/system/authz/permissions.go
package authz

import (
	"github.com/dalemusser/crmhub/internal/domain/models"
)

// Capability is a named permission whose truth value depends only on role.
type Capability string

const (
	ManageCompany   Capability = "manageCompany"
	ManageEmployees Capability = "manageEmployees"
	ManageLeads     Capability = "manageLeads"
	ManageOrders    Capability = "manageOrders"
	ManageProjects  Capability = "manageProjects"
	ManageTasks     Capability = "manageTasks"
	ManageRoles     Capability = "manageRoles"
	ViewReports     Capability = "viewReports"
	DeleteData      Capability = "deleteData"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{
	ManageCompany, ManageEmployees, ManageLeads, ManageOrders, ManageProjects,
	ManageTasks, ManageRoles, ViewReports, DeleteData,
}

// Permissions is the capability set of one role. Every capability is a
// field, so a table entry cannot omit one.
type Permissions struct {
	ManageCompany   bool `json:"manageCompany"`
	ManageEmployees bool `json:"manageEmployees"`
	ManageLeads     bool `json:"manageLeads"`
	ManageOrders    bool `json:"manageOrders"`
	ManageProjects  bool `json:"manageProjects"`
	ManageTasks     bool `json:"manageTasks"`
	ManageRoles     bool `json:"manageRoles"`
	ViewReports     bool `json:"viewReports"`
	DeleteData      bool `json:"deleteData"`
}

// Allows reports whether c is granted. Unknown capabilities are denied.
func (p Permissions) Allows(c Capability) bool {
	switch c {
	case ManageCompany:
		return p.ManageCompany
	case ManageEmployees:
		return p.ManageEmployees
	case ManageLeads:
		return p.ManageLeads
	case ManageOrders:
		return p.ManageOrders
	case ManageProjects:
		return p.ManageProjects
	case ManageTasks:
		return p.ManageTasks
	case ManageRoles:
		return p.ManageRoles
	case ViewReports:
		return p.ViewReports
	case DeleteData:
		return p.DeleteData
	}
	return false
}

// RoleInfo describes a role for admins.
type RoleInfo struct {
	Role        models.Role `json:"role"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Permissions Permissions `json:"permissions"`
}

// roleTable is edited at deploy time only. Entries for employee cover records
// assigned to the employee; that scoping is applied by the data layer.
var roleTable = map[models.Role]RoleInfo{
	models.RoleCompanyAdmin: {
		Role:        models.RoleCompanyAdmin,
		Name:        "Company Admin",
		Description: "Full control over the company, its members, roles and data.",
		Permissions: Permissions{
			ManageCompany:   true,
			ManageEmployees: true,
			ManageLeads:     true,
			ManageOrders:    true,
			ManageProjects:  true,
			ManageTasks:     true,
			ManageRoles:     true,
			ViewReports:     true,
			DeleteData:      true,
		},
	},
	models.RoleManager: {
		Role:        models.RoleManager,
		Name:        "Manager",
		Description: "Runs day-to-day work: employees, leads, orders, projects, tasks and reports.",
		Permissions: Permissions{
			ManageCompany:   false,
			ManageEmployees: true,
			ManageLeads:     true,
			ManageOrders:    true,
			ManageProjects:  true,
			ManageTasks:     true,
			ManageRoles:     false,
			ViewReports:     true,
			DeleteData:      false,
		},
	},
	models.RoleEmployee: {
		Role:        models.RoleEmployee,
		Name:        "Employee",
		Description: "Works the leads, orders and tasks assigned to them.",
		Permissions: Permissions{
			ManageCompany:   false,
			ManageEmployees: false,
			ManageLeads:     true,
			ManageOrders:    true,
			ManageProjects:  false,
			ManageTasks:     true,
			ManageRoles:     false,
			ViewReports:     false,
			DeleteData:      false,
		},
	},
	models.RoleClient: {
		Role:        models.RoleClient,
		Name:        "Client",
		Description: "External customer; uses the client portal only.",
		Permissions: Permissions{
			ManageCompany:   false,
			ManageEmployees: false,
			ManageLeads:     false,
			ManageOrders:    false,
			ManageProjects:  false,
			ManageTasks:     false,
			ManageRoles:     false,
			ViewReports:     false,
			DeleteData:      false,
		},
	},
}

// Lookup returns the table entry for role.
func Lookup(role models.Role) (RoleInfo, bool) {
	info, ok := roleTable[role]
	return info, ok
}

// PermissionsFor returns the capability set of role; unknown roles get nothing.
func PermissionsFor(role models.Role) Permissions {
	return roleTable[role].Permissions
}

// Describe returns every role with its capabilities, in models.AllRoles order.
func Describe() []RoleInfo {
	out := make([]RoleInfo, 0, len(models.AllRoles))
	for _, r := range models.AllRoles {
		out = append(out, roleTable[r])
	}
	return out
}
