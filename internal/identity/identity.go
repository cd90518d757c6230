// Package identity resolves project-level roles and governance flags for
// actors. The server combines the project role with any per-config member
// role before authorizing a mutation.
package identity

import (
	"context"

	"github.com/groblegark/kconfig/internal/model"
)

// Flags are the governance switches a project can set.
type Flags struct {
	// RequireProposals forces all config and variant mutations below
	// owner through the proposal workflow.
	RequireProposals bool `json:"require_proposals"`
	// AllowSelfApprovals lets a proposer approve their own proposal.
	AllowSelfApprovals bool `json:"allow_self_approvals"`
}

// Provider answers role and flag lookups for a project.
type Provider interface {
	// RoleFor returns the actor's project-level role. Unknown actors get
	// the zero Role, which satisfies nothing.
	RoleFor(ctx context.Context, projectID, email string) (model.Role, error)
	// ProjectFlags returns the governance flags for a project.
	ProjectFlags(ctx context.Context, projectID string) (Flags, error)
}

// StaticProvider serves roles and flags from in-memory tables. Used in tests
// and single-tenant deployments configured from the environment.
type StaticProvider struct {
	// Roles maps projectID -> email -> role. Emails must be normalized.
	Roles map[string]map[string]model.Role
	// ProjectConfig maps projectID -> flags. Missing projects get DefaultFlags.
	ProjectConfig map[string]Flags
	// DefaultRole applies to actors with no entry, e.g. model.RoleViewer
	// for an open deployment.
	DefaultRole model.Role
	// DefaultFlags applies to projects with no ProjectConfig entry.
	DefaultFlags Flags
}

func (p *StaticProvider) RoleFor(ctx context.Context, projectID, email string) (model.Role, error) {
	if roles, ok := p.Roles[projectID]; ok {
		if role, ok := roles[model.NormalizeEmail(email)]; ok {
			return role, nil
		}
	}
	return p.DefaultRole, nil
}

func (p *StaticProvider) ProjectFlags(ctx context.Context, projectID string) (Flags, error) {
	if flags, ok := p.ProjectConfig[projectID]; ok {
		return flags, nil
	}
	return p.DefaultFlags, nil
}
