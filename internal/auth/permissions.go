package auth

import "strings"

type StaffPermission string

const (
	PermIssueBills    StaffPermission = "issue_bills"
	PermIssueKOT      StaffPermission = "issue_kot"
	PermReadCounters  StaffPermission = "read_counters"
	PermKitchenFeed   StaffPermission = "kitchen_feed"
	PermResetCounters StaffPermission = "reset_counters"
	PermReports       StaffPermission = "reports"
)

var rolePermissions = map[UserRole][]StaffPermission{
	RoleBranchManager: {PermIssueBills, PermIssueKOT, PermReadCounters, PermKitchenFeed, PermReports},
	RoleCashier:       {PermIssueBills, PermIssueKOT, PermReadCounters},
	RoleKitchen:       {PermIssueKOT, PermKitchenFeed},
}

// HasPermission reports whether role grants perm. Super admins hold every
// permission.
func HasPermission(role UserRole, perm StaffPermission) bool {
	if role == RoleSuperAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CanAccessBranch reports whether the claims are scoped to branchID.
func (c *Claims) CanAccessBranch(branchID string) bool {
	if c.Role == RoleSuperAdmin {
		return true
	}
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return false
	}
	for _, id := range c.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}
