package events

import (
	"context"

	"github.com/groblegark/kconfig/internal/model"
)

// Event topic constants
const (
	TopicConfigCreated = "kconfig.config.created"
	TopicConfigUpdated = "kconfig.config.updated"
	TopicConfigDeleted = "kconfig.config.deleted"

	TopicVariantCreated = "kconfig.variant.created"
	TopicVariantUpdated = "kconfig.variant.updated"
	TopicVariantDeleted = "kconfig.variant.deleted"

	TopicProposalCreated  = "kconfig.proposal.created"
	TopicProposalApproved = "kconfig.proposal.approved"
	TopicProposalRejected = "kconfig.proposal.rejected"
)

// Event types

type ConfigCreated struct {
	Config *model.Config `json:"config"`
}

type ConfigUpdated struct {
	Config  *model.Config  `json:"config"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type ConfigDeleted struct {
	ConfigID  string `json:"config_id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type VariantCreated struct {
	Variant *model.Variant `json:"variant"`
}

type VariantUpdated struct {
	Variant *model.Variant `json:"variant"`
	Changes map[string]any `json:"changes"`
}

type VariantDeleted struct {
	VariantID     string `json:"variant_id"`
	ConfigID      string `json:"config_id"`
	EnvironmentID string `json:"environment_id"`
}

type ProposalCreated struct {
	Proposal *model.Proposal `json:"proposal"`
}

type ProposalApproved struct {
	Proposal *model.Proposal `json:"proposal"`
	// NewVersion is the config or variant version produced by applying the proposal.
	NewVersion int64 `json:"new_version,omitempty"`
}

type ProposalRejected struct {
	Proposal          *model.Proposal       `json:"proposal"`
	Reason            model.RejectionReason `json:"reason"`
	RejectedInFavorOf string                `json:"rejected_in_favor_of,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
