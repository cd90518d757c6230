package model

import (
	"encoding/json"
	"time"
)

// ProposalScope distinguishes config-level proposals (description, members,
// delete) from variant-level proposals (value, schema, overrides).
type ProposalScope string

const (
	ScopeConfig  ProposalScope = "config"
	ScopeVariant ProposalScope = "variant"
)

// String returns the string representation of the scope.
func (s ProposalScope) String() string {
	return string(s)
}

// IsValid checks whether the scope is a known value.
func (s ProposalScope) IsValid() bool {
	switch s {
	case ScopeConfig, ScopeVariant:
		return true
	}
	return false
}

// RejectionReason records why a proposal left the pending state without
// being approved.
type RejectionReason string

const (
	RejectedExplicitly       RejectionReason = "rejected_explicitly"
	RejectedSiblingApproved  RejectionReason = "another_proposal_approved"
	RejectedConfigEdited     RejectionReason = "config_edited"
	RejectedConfigDeleted    RejectionReason = "config_deleted"
)

// ProposalStatus is a derived view of a proposal's lifecycle state.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a pending, reviewable change to a config or one of its
// variants. Proposals are created pending and terminate exactly once; a
// terminal proposal is never mutated again and stays around for history.
//
// Config-scope proposals use ProposedDelete, ProposedDescription, and
// ProposedMembers; variant-scope proposals use VariantID (empty for the
// config's default variant), ProposedValue, ProposedSchema, RemoveSchema,
// and ProposedOverrides. Nil pointer/slice payload fields mean "unchanged".
type Proposal struct {
	ID        string        `json:"id"`
	Scope     ProposalScope `json:"scope"`
	ConfigID  string        `json:"config_id"`
	ProjectID string        `json:"project_id"`
	VariantID string        `json:"variant_id,omitempty"`
	Proposer  string        `json:"proposer"`
	Message   string        `json:"message,omitempty"`

	// BaseVersion is the config (or variant) version the proposer read.
	// Re-checked at approval time; drift fails the approval.
	BaseVersion int64 `json:"base_version"`

	ProposedDelete      bool            `json:"proposed_delete,omitempty"`
	ProposedDescription *string         `json:"proposed_description,omitempty"`
	ProposedMembers     []Member        `json:"proposed_members,omitempty"`
	ProposedValue       json.RawMessage `json:"proposed_value,omitempty"`
	ProposedSchema      json.RawMessage `json:"proposed_schema,omitempty"`
	RemoveSchema        bool            `json:"remove_schema,omitempty"`
	ProposedOverrides   []Override      `json:"proposed_overrides,omitempty"`

	CreatedAt         time.Time       `json:"created_at"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	RejectedAt        *time.Time      `json:"rejected_at,omitempty"`
	Reviewer          string          `json:"reviewer,omitempty"`
	RejectedInFavorOf string          `json:"rejected_in_favor_of,omitempty"`
	RejectionReason   RejectionReason `json:"rejection_reason,omitempty"`
}

// Terminal reports whether the proposal has been approved or rejected.
func (p *Proposal) Terminal() bool {
	return p.ApprovedAt != nil || p.RejectedAt != nil
}

// Status derives the lifecycle state from the terminal timestamps.
func (p *Proposal) Status() ProposalStatus {
	switch {
	case p.ApprovedAt != nil:
		return ProposalApproved
	case p.RejectedAt != nil:
		return ProposalRejected
	default:
		return ProposalPending
	}
}

// ChangesValue reports whether a variant-scope proposal touches the stored
// value.
func (p *Proposal) ChangesValue() bool {
	return p.ProposedValue != nil
}

// ChangesSchema reports whether the proposal adds, replaces, or removes a
// schema.
func (p *Proposal) ChangesSchema() bool {
	return p.ProposedSchema != nil || p.RemoveSchema
}

// ChangeSet summarizes which permission-relevant fields a change touches.
func (p *Proposal) ChangeSet() ChangeSet {
	return ChangeSet{
		Value:       p.ProposedValue != nil || p.ProposedOverrides != nil,
		Description: p.ProposedDescription != nil,
		Schema:      p.ChangesSchema(),
		Members:     p.ProposedMembers != nil,
		Delete:      p.ProposedDelete,
	}
}

// Resolution carries the terminal fields written when a proposal leaves the
// pending state.
type Resolution struct {
	Approved          bool
	Reviewer          string
	Reason            RejectionReason
	RejectedInFavorOf string
	At                time.Time
}

// ProposalFilter narrows ListProposals results.
type ProposalFilter struct {
	ConfigID  string
	ProjectID string
	VariantID string
	Scope     ProposalScope
	Status    ProposalStatus
	Limit     int
	Offset    int
}
