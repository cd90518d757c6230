package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/groblegark/kconfig/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanConfig scans a single row into a model.Config.
// The row must contain columns in the order defined by configColumns.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	var (
		description sql.NullString
		createdBy   sql.NullString
		value       []byte
		schema      []byte
		overrides   []byte
		members     []byte
	)

	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.Name,
		&description,
		&c.Version,
		&value,
		&schema,
		&overrides,
		&members,
		&c.CreatedAt,
		&createdBy,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Description = description.String
	c.CreatedBy = createdBy.String
	if len(value) > 0 {
		c.Value = json.RawMessage(value)
	}
	if len(schema) > 0 {
		c.Schema = json.RawMessage(schema)
	}
	if c.Overrides, err = decodeOverrides(overrides); err != nil {
		return nil, fmt.Errorf("config %s overrides: %w", c.ID, err)
	}
	if c.Members, err = decodeMembers(members); err != nil {
		return nil, fmt.Errorf("config %s members: %w", c.ID, err)
	}

	return &c, nil
}

// scanConfigWithTotal scans a row that has a leading total_count column
// followed by the standard config columns. Used by queryListConfigs with
// COUNT(*) OVER().
func scanConfigWithTotal(row scannable) (*model.Config, int, error) {
	var total int
	var c model.Config
	var (
		description sql.NullString
		createdBy   sql.NullString
		value       []byte
		schema      []byte
		overrides   []byte
		members     []byte
	)

	err := row.Scan(
		&total,
		&c.ID,
		&c.ProjectID,
		&c.Name,
		&description,
		&c.Version,
		&value,
		&schema,
		&overrides,
		&members,
		&c.CreatedAt,
		&createdBy,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, 0, err
	}

	c.Description = description.String
	c.CreatedBy = createdBy.String
	if len(value) > 0 {
		c.Value = json.RawMessage(value)
	}
	if len(schema) > 0 {
		c.Schema = json.RawMessage(schema)
	}
	if c.Overrides, err = decodeOverrides(overrides); err != nil {
		return nil, 0, fmt.Errorf("config %s overrides: %w", c.ID, err)
	}
	if c.Members, err = decodeMembers(members); err != nil {
		return nil, 0, fmt.Errorf("config %s members: %w", c.ID, err)
	}

	return &c, total, nil
}

// scanVariant scans a single row into a model.Variant.
func scanVariant(row scannable) (*model.Variant, error) {
	var v model.Variant
	var (
		value     []byte
		schema    []byte
		overrides []byte
	)

	err := row.Scan(
		&v.ID,
		&v.ConfigID,
		&v.EnvironmentID,
		&v.Version,
		&value,
		&schema,
		&v.UseBaseSchema,
		&overrides,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(value) > 0 {
		v.Value = json.RawMessage(value)
	}
	if len(schema) > 0 {
		v.Schema = json.RawMessage(schema)
	}
	if v.Overrides, err = decodeOverrides(overrides); err != nil {
		return nil, fmt.Errorf("variant %s overrides: %w", v.ID, err)
	}

	return &v, nil
}

// scanVariants scans multiple rows into a slice of model.Variant pointers.
func scanVariants(rows *sql.Rows) ([]*model.Variant, error) {
	var variants []*model.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return variants, nil
}

// scanProposal scans a single row into a model.Proposal.
func scanProposal(row scannable) (*model.Proposal, error) {
	var p model.Proposal
	var (
		scope             string
		variantID         sql.NullString
		message           sql.NullString
		description       sql.NullString
		members           []byte
		value             []byte
		schema            []byte
		overrides         []byte
		approvedAt        sql.NullTime
		rejectedAt        sql.NullTime
		reviewer          sql.NullString
		rejectedInFavorOf sql.NullString
		rejectionReason   sql.NullString
	)

	err := row.Scan(
		&p.ID,
		&scope,
		&p.ConfigID,
		&p.ProjectID,
		&variantID,
		&p.Proposer,
		&message,
		&p.BaseVersion,
		&p.ProposedDelete,
		&description,
		&members,
		&value,
		&schema,
		&p.RemoveSchema,
		&overrides,
		&p.CreatedAt,
		&approvedAt,
		&rejectedAt,
		&reviewer,
		&rejectedInFavorOf,
		&rejectionReason,
	)
	if err != nil {
		return nil, err
	}

	p.Scope = model.ProposalScope(scope)
	p.VariantID = variantID.String
	p.Message = message.String
	p.Reviewer = reviewer.String
	p.RejectedInFavorOf = rejectedInFavorOf.String
	p.RejectionReason = model.RejectionReason(rejectionReason.String)

	if description.Valid {
		s := description.String
		p.ProposedDescription = &s
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		p.RejectedAt = &t
	}
	if len(value) > 0 {
		p.ProposedValue = json.RawMessage(value)
	}
	if len(schema) > 0 {
		p.ProposedSchema = json.RawMessage(schema)
	}
	if p.ProposedOverrides, err = decodeOverrides(overrides); err != nil {
		return nil, fmt.Errorf("proposal %s overrides: %w", p.ID, err)
	}
	if p.ProposedMembers, err = decodeMembers(members); err != nil {
		return nil, fmt.Errorf("proposal %s members: %w", p.ID, err)
	}

	return &p, nil
}

// scanProposals scans multiple rows into a slice of model.Proposal pointers.
func scanProposals(rows *sql.Rows) ([]*model.Proposal, error) {
	var proposals []*model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return proposals, nil
}

// overridesJSON encodes an override list for a JSONB column; empty is null.
func overridesJSON(overrides []model.Override) ([]byte, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	return json.Marshal(overrides)
}

// decodeOverrides decodes a JSONB override column; null stays nil.
func decodeOverrides(raw []byte) ([]model.Override, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var overrides []model.Override
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// membersJSON encodes a member list for a JSONB column; empty is null.
func membersJSON(members []model.Member) ([]byte, error) {
	if len(members) == 0 {
		return nil, nil
	}
	return json.Marshal(members)
}

// decodeMembers decodes a JSONB member column; null stays nil.
func decodeMembers(raw []byte) ([]model.Member, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var members []model.Member
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringPtr converts a *string to sql.NullString; nil is null.
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
