// Package audit records who changed what, for every mutation that goes
// through the governance engine. Records are emitted best-effort after the
// mutation commits; a failed emit never rolls back the change.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/groblegark/kconfig/internal/events"
)

// Record types
const (
	TypeConfigCreated    = "config.created"
	TypeConfigUpdated    = "config.updated"
	TypeConfigDeleted    = "config.deleted"
	TypeVariantCreated   = "variant.created"
	TypeVariantUpdated   = "variant.updated"
	TypeVariantDeleted   = "variant.deleted"
	TypeProposalCreated  = "proposal.created"
	TypeProposalApproved = "proposal.approved"
	TypeProposalRejected = "proposal.rejected"
)

// Record is a single audit trail entry.
type Record struct {
	Type       string          `json:"type"`
	Actor      string          `json:"actor"`
	ProjectID  string          `json:"project_id"`
	ConfigID   string          `json:"config_id,omitempty"`
	VariantID  string          `json:"variant_id,omitempty"`
	ProposalID string          `json:"proposal_id,omitempty"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Emitter writes audit records to a destination.
type Emitter interface {
	Emit(ctx context.Context, rec Record) error
}

// NoopEmitter discards all records.
type NoopEmitter struct{}

func (NoopEmitter) Emit(ctx context.Context, rec Record) error { return nil }

// LogEmitter writes audit records to a structured logger.
type LogEmitter struct {
	Logger *slog.Logger
}

func (e *LogEmitter) Emit(ctx context.Context, rec Record) error {
	e.Logger.InfoContext(ctx, "audit",
		"type", rec.Type,
		"actor", rec.Actor,
		"project_id", rec.ProjectID,
		"config_id", rec.ConfigID,
		"variant_id", rec.VariantID,
		"proposal_id", rec.ProposalID,
	)
	return nil
}

// NATSEmitter publishes audit records on the event bus under a fixed subject.
type NATSEmitter struct {
	Publisher events.Publisher
}

// Subject is the bus topic audit records are published on.
const Subject = "kconfig.audit"

func (e *NATSEmitter) Emit(ctx context.Context, rec Record) error {
	return e.Publisher.Publish(ctx, Subject, rec)
}

// Multi fans a record out to several emitters. The first error is returned
// after all emitters have been tried.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, rec Record) error {
	var first error
	for _, e := range m {
		if err := e.Emit(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
