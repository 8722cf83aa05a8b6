package domain

import "strings"

// Role is the contact type the CRM records for a person; it drives every authorization decision.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleEmployee  Role = "employee"
	RoleWarehouse Role = "warehouse"
	RoleInstaller Role = "installer"
	RoleCustomer  Role = "customer"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleAdmin, RoleEmployee, RoleWarehouse, RoleInstaller, RoleCustomer}

// ParseRole maps a CRM contact type onto a known role.
func ParseRole(raw string) (Role, bool) {
	candidate := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, role := range Roles {
		if role == candidate {
			return role, true
		}
	}
	return "", false
}

func (r Role) String() string {
	return string(r)
}
