package store

import (
	"context"
	"errors"

	"github.com/groblegark/kconfig/internal/model"
)

// Sentinel errors returned by Store implementations. Callers use errors.Is
// to map them onto the typed error surface (NotFound, DuplicateName,
// VersionConflict).
var (
	// ErrNotFound indicates the addressed config, variant, or proposal
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates a (project, name) or (config, environment)
	// uniqueness violation on create.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrVersionConflict indicates the caller's expected version no longer
	// matches the stored row; the caller must reload and retry.
	ErrVersionConflict = errors.New("version conflict")
)

// Store defines the persistence interface for the governance engine.
// Every mutation of a config or variant row is conditional on the caller
// supplying the version it read (optimistic concurrency).
type Store interface {
	// Configs
	CreateConfig(ctx context.Context, c *model.Config) error
	GetConfig(ctx context.Context, id string) (*model.Config, error)
	GetConfigByName(ctx context.Context, projectID, name string) (*model.Config, error)
	ListConfigs(ctx context.Context, filter model.ConfigFilter) ([]*model.Config, int, error) // returns configs, total count, error
	UpdateConfig(ctx context.Context, c *model.Config, expectedVersion int64) error
	DeleteConfig(ctx context.Context, id string) error

	// Variants
	CreateVariant(ctx context.Context, v *model.Variant) error
	GetVariant(ctx context.Context, id string) (*model.Variant, error)
	GetVariantByEnvironment(ctx context.Context, configID, environmentID string) (*model.Variant, error)
	ListVariants(ctx context.Context, configID string) ([]*model.Variant, error)
	UpdateVariant(ctx context.Context, v *model.Variant, expectedVersion int64) error
	DeleteVariant(ctx context.Context, id string) error

	// Proposals
	CreateProposal(ctx context.Context, p *model.Proposal) error
	GetProposal(ctx context.Context, id string) (*model.Proposal, error)
	ListProposals(ctx context.Context, filter model.ProposalFilter) ([]*model.Proposal, error)
	// ListPendingProposals returns the still-pending proposals for a config,
	// optionally narrowed to one scope and variant. Used by the cascade paths.
	ListPendingProposals(ctx context.Context, configID string, scope model.ProposalScope, variantID string) ([]*model.Proposal, error)
	// ResolveProposal writes the terminal fields of a pending proposal.
	// Returns ErrNotFound when the proposal does not exist and
	// ErrVersionConflict when it is already terminal.
	ResolveProposal(ctx context.Context, id string, res model.Resolution) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
