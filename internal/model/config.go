package model

import (
	"encoding/json"
	"time"
)

// MemberRole is the per-config role granted to a member.
type MemberRole string

const (
	MemberEditor     MemberRole = "editor"
	MemberMaintainer MemberRole = "maintainer"
)

// String returns the string representation of the member role.
func (r MemberRole) String() string {
	return string(r)
}

// IsValid checks whether the member role is a known value.
func (r MemberRole) IsValid() bool {
	switch r {
	case MemberEditor, MemberMaintainer:
		return true
	}
	return false
}

// Member grants a user a role on a single config. Emails are stored
// normalized to lower case; a user appears at most once across roles.
type Member struct {
	Email string     `json:"email"`
	Role  MemberRole `json:"role"`
}

// Config is a named, versioned JSON value scoped to a project. The value,
// schema, and overrides on the config itself describe the default variant;
// environment-specific variants live in ConfigVariant rows.
type Config struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Version     int64           `json:"version"`
	Value       json.RawMessage `json:"value"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Overrides   []Override      `json:"overrides,omitempty"`
	Members     []Member        `json:"members,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MemberRoleFor returns the config-level role for the given email, or ""
// when the user is not a member. Lookup is case-insensitive via the
// normalized storage form.
func (c *Config) MemberRoleFor(email string) MemberRole {
	email = NormalizeEmail(email)
	for _, m := range c.Members {
		if m.Email == email {
			return m.Role
		}
	}
	return ""
}

// Variant is an environment-specific override of a config's value, schema,
// and override rules. One variant exists per (config, environment) pair and
// carries its own version counter.
type Variant struct {
	ID            string          `json:"id"`
	ConfigID      string          `json:"config_id"`
	EnvironmentID string          `json:"environment_id"`
	Version       int64           `json:"version"`
	Value         json.RawMessage `json:"value"`
	Schema        json.RawMessage `json:"schema,omitempty"`
	UseBaseSchema bool            `json:"use_base_schema"`
	Overrides     []Override      `json:"overrides,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ConfigFilter narrows ListConfigs results.
type ConfigFilter struct {
	ProjectID string
	Search    string // substring match on name or description
	Limit     int
	Offset    int
}
