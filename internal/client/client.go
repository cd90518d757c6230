// Package client provides a transport-agnostic interface for the kconfig
// service and an HTTP/JSON implementation that talks to the kconfig REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/groblegark/kconfig/internal/model"
)

// ConfigClient is the interface that all kfg CLI commands use to communicate
// with the governance server. It is implemented by HTTPClient and can be
// backed by any transport.
type ConfigClient interface {
	// Config CRUD
	CreateConfig(ctx context.Context, projectID string, req *CreateConfigRequest) (*model.Config, error)
	GetConfig(ctx context.Context, projectID, name string) (*model.Config, error)
	ListConfigs(ctx context.Context, projectID string, req *ListConfigsRequest) (*ListConfigsResponse, error)
	UpdateConfig(ctx context.Context, projectID, name string, req *UpdateConfigRequest) (*model.Config, error)
	DeleteConfig(ctx context.Context, projectID, name string) error

	// Value evaluation
	EvaluateValue(ctx context.Context, projectID, name, environmentID string, evalCtx map[string]any) (*EvaluatedValue, error)

	// Variants
	CreateVariant(ctx context.Context, projectID, name string, req *CreateVariantRequest) (*model.Variant, error)
	GetVariant(ctx context.Context, projectID, name, environmentID string) (*model.Variant, error)
	ListVariants(ctx context.Context, projectID, name string) ([]*model.Variant, error)
	UpdateVariant(ctx context.Context, projectID, name, environmentID string, req *UpdateVariantRequest) (*model.Variant, error)
	DeleteVariant(ctx context.Context, projectID, name, environmentID string) error

	// Proposals
	CreateProposal(ctx context.Context, req *CreateProposalRequest) (*model.Proposal, error)
	GetProposal(ctx context.Context, id string) (*model.Proposal, error)
	ListProposals(ctx context.Context, req *ListProposalsRequest) ([]*model.Proposal, error)
	ApproveProposal(ctx context.Context, id string) (*model.Proposal, error)
	RejectProposal(ctx context.Context, id string) (*model.Proposal, error)

	// Replication
	Watch(ctx context.Context, projectID string) (<-chan StreamEvent, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateConfigRequest holds parameters for creating a config.
type CreateConfigRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Value       json.RawMessage  `json:"value"`
	Schema      json.RawMessage  `json:"schema,omitempty"`
	Overrides   []model.Override `json:"overrides,omitempty"`
	Members     []model.Member   `json:"members,omitempty"`
}

// UpdateConfigRequest holds optional parameters for directly patching a
// config. Nil fields mean "don't change"; ExpectedVersion is required.
type UpdateConfigRequest struct {
	ExpectedVersion int64            `json:"expected_version"`
	Description     *string          `json:"description,omitempty"`
	Value           json.RawMessage  `json:"value,omitempty"`
	Schema          json.RawMessage  `json:"schema,omitempty"`
	RemoveSchema    bool             `json:"remove_schema,omitempty"`
	Overrides       []model.Override `json:"overrides,omitempty"`
	Members         []model.Member   `json:"members,omitempty"`
}

// ListConfigsRequest holds parameters for listing configs.
type ListConfigsRequest struct {
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ListConfigsResponse is the response from ListConfigs.
type ListConfigsResponse struct {
	Configs []*model.Config `json:"configs"`
	Total   int             `json:"total"`
}

// EvaluatedValue is the effective value of a config after override
// evaluation, plus which environment and rule produced it.
type EvaluatedValue struct {
	Value         json.RawMessage `json:"value"`
	Version       int64           `json:"version"`
	EnvironmentID string          `json:"environment_id,omitempty"`
	Override      string          `json:"override,omitempty"`
}

// CreateVariantRequest holds parameters for creating an environment variant.
type CreateVariantRequest struct {
	EnvironmentID string           `json:"environment_id"`
	Value         json.RawMessage  `json:"value"`
	Schema        json.RawMessage  `json:"schema,omitempty"`
	UseBaseSchema bool             `json:"use_base_schema,omitempty"`
	Overrides     []model.Override `json:"overrides,omitempty"`
}

// UpdateVariantRequest holds optional parameters for directly patching a
// variant. Nil fields mean "don't change".
type UpdateVariantRequest struct {
	ExpectedVersion int64            `json:"expected_version"`
	Value           json.RawMessage  `json:"value,omitempty"`
	Schema          json.RawMessage  `json:"schema,omitempty"`
	RemoveSchema    bool             `json:"remove_schema,omitempty"`
	UseBaseSchema   *bool            `json:"use_base_schema,omitempty"`
	Overrides       []model.Override `json:"overrides,omitempty"`
}

// CreateProposalRequest holds parameters for creating a proposal.
type CreateProposalRequest struct {
	Scope         model.ProposalScope `json:"scope"`
	ConfigID      string              `json:"config_id"`
	EnvironmentID string              `json:"environment_id,omitempty"`
	Message       string              `json:"message,omitempty"`
	BaseVersion   int64               `json:"base_version"`

	ProposedDelete      bool             `json:"proposed_delete,omitempty"`
	ProposedDescription *string          `json:"proposed_description,omitempty"`
	ProposedMembers     []model.Member   `json:"proposed_members,omitempty"`
	ProposedValue       json.RawMessage  `json:"proposed_value,omitempty"`
	ProposedSchema      json.RawMessage  `json:"proposed_schema,omitempty"`
	RemoveSchema        bool             `json:"remove_schema,omitempty"`
	ProposedOverrides   []model.Override `json:"proposed_overrides,omitempty"`
}

// ListProposalsRequest holds parameters for listing proposals.
type ListProposalsRequest struct {
	ConfigID  string               `json:"config_id,omitempty"`
	ProjectID string               `json:"project,omitempty"`
	VariantID string               `json:"variant_id,omitempty"`
	Scope     model.ProposalScope  `json:"scope,omitempty"`
	Status    model.ProposalStatus `json:"status,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
	Offset    int                  `json:"offset,omitempty"`
}

// StreamEvent is one event received on a replication stream. The first event
// after connecting carries topic "snapshot" with the full project state.
type StreamEvent struct {
	Topic string
	Data  json.RawMessage
}
