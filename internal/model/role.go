package model

// Role is a project-level role supplied by the identity collaborator.
// Config-level membership roles (Member.Role) map onto the same ladder.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleEditor     Role = "editor"
	RoleMaintainer Role = "maintainer"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleMaintainer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// roleRank orders roles by increasing privilege. Unknown roles rank below
// viewer so a garbled role never grants access.
func roleRank(r Role) int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleMaintainer:
		return 3
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 5
	}
	return 0
}

// Satisfies reports whether the role meets or exceeds the required role.
func (r Role) Satisfies(required Role) bool {
	return roleRank(r) >= roleRank(required)
}

// MaxRole returns the higher-privileged of two roles.
func MaxRole(a, b Role) Role {
	if roleRank(b) > roleRank(a) {
		return b
	}
	return a
}

// ChangeSet records which permission-relevant aspects of a config or
// variant a mutation touches. Both the direct-patch path and the
// proposal-approval path derive the required role from the same table so
// the two gates cannot drift.
type ChangeSet struct {
	Value       bool // value or overrides
	Description bool
	Schema      bool // schema set, replaced, or removed
	Members     bool
	Delete      bool
}

// RequiredRole returns the minimum role allowed to apply the change set.
// Schema, membership, and deletion changes need a maintainer; value and
// description changes need an editor.
func (c ChangeSet) RequiredRole() Role {
	if c.Schema || c.Members || c.Delete {
		return RoleMaintainer
	}
	return RoleEditor
}

// Empty reports whether the change set touches nothing.
func (c ChangeSet) Empty() bool {
	return !c.Value && !c.Description && !c.Schema && !c.Members && !c.Delete
}
