package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// NormalizeEmail lowercases and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateConfig checks a Config for constraint violations. It returns a
// *ValidationError if any rules fail, or nil if the config is valid.
// Reference locality is checked separately by ValidateOverrideReferences so
// violations across all overrides can be reported together.
func ValidateConfig(c *Config) error {
	var ve ValidationError

	name := strings.TrimSpace(c.Name)
	if name == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	} else if len([]rune(name)) > 256 {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "must be 256 characters or fewer"})
	}

	if strings.TrimSpace(c.ProjectID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "is required"})
	}

	if len(c.Value) == 0 || !json.Valid(c.Value) {
		ve.Errors = append(ve.Errors, FieldError{Field: "value", Message: "must be valid JSON"})
	}
	if len(c.Schema) > 0 && !json.Valid(c.Schema) {
		ve.Errors = append(ve.Errors, FieldError{Field: "schema", Message: "contains invalid JSON"})
	}

	validateMembers(c.Members, &ve)
	validateOverrides(c.Overrides, &ve)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateVariant checks a Variant for constraint violations.
func ValidateVariant(v *Variant) error {
	var ve ValidationError

	if strings.TrimSpace(v.ConfigID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "config_id", Message: "is required"})
	}
	if strings.TrimSpace(v.EnvironmentID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "environment_id", Message: "is required"})
	}
	if len(v.Value) == 0 || !json.Valid(v.Value) {
		ve.Errors = append(ve.Errors, FieldError{Field: "value", Message: "must be valid JSON"})
	}
	if len(v.Schema) > 0 && !json.Valid(v.Schema) {
		ve.Errors = append(ve.Errors, FieldError{Field: "schema", Message: "contains invalid JSON"})
	}
	if v.UseBaseSchema && len(v.Schema) > 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "schema", Message: "must be empty when use_base_schema is set"})
	}

	validateOverrides(v.Overrides, &ve)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateMembers checks the membership list on its own (used when a
// proposal carries a membership change).
func ValidateMembers(members []Member) error {
	var ve ValidationError
	validateMembers(members, &ve)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// validateMembers enforces that every member has a valid role and that a
// user appears at most once across editor/maintainer roles
// (case-insensitive by email).
func validateMembers(members []Member, ve *ValidationError) {
	seen := make(map[string]struct{}, len(members))
	for i, m := range members {
		field := fmt.Sprintf("members[%d]", i)
		email := NormalizeEmail(m.Email)
		if email == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".email", Message: "is required"})
			continue
		}
		if !m.Role.IsValid() {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   field + ".role",
				Message: fmt.Sprintf("invalid value %q", m.Role),
			})
		}
		if _, dup := seen[email]; dup {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   field + ".email",
				Message: fmt.Sprintf("%s has more than one role", email),
			})
		}
		seen[email] = struct{}{}
	}
}

// validateOverrides checks the structural validity of override rules and
// their condition trees. Structural problems are caught here, at write
// time, because read-time evaluation fails closed and would silently
// disable the rule.
func validateOverrides(overrides []Override, ve *ValidationError) {
	names := make(map[string]struct{}, len(overrides))
	for i, o := range overrides {
		field := fmt.Sprintf("overrides[%d]", i)
		if strings.TrimSpace(o.Name) == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".name", Message: "is required"})
		} else {
			if _, dup := names[o.Name]; dup {
				ve.Errors = append(ve.Errors, FieldError{
					Field:   field + ".name",
					Message: fmt.Sprintf("duplicate override name %q", o.Name),
				})
			}
			names[o.Name] = struct{}{}
		}
		if len(o.Value) == 0 || !json.Valid(o.Value) {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".value", Message: "must be valid JSON"})
		}
		if o.Conditions == nil {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".conditions", Message: "is required"})
			continue
		}
		validateCondition(o.Conditions, field+".conditions", ve)
	}
}

func validateCondition(c *Condition, field string, ve *ValidationError) {
	if !c.Kind.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("invalid value %q", c.Kind),
		})
		return
	}

	switch c.Kind {
	case CondAnd, CondOr:
		if len(c.Children) == 0 {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".children", Message: "must not be empty"})
		}
		for i, child := range c.Children {
			validateCondition(child, fmt.Sprintf("%s.children[%d]", field, i), ve)
		}
	case CondEquals, CondIn:
		if strings.TrimSpace(c.Attribute) == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".attribute", Message: "is required"})
		}
		if c.Operand == nil {
			ve.Errors = append(ve.Errors, FieldError{Field: field + ".operand", Message: "is required"})
			return
		}
		switch c.Operand.Type {
		case OperandLiteral:
			if len(c.Operand.Value) == 0 || !json.Valid(c.Operand.Value) {
				ve.Errors = append(ve.Errors, FieldError{Field: field + ".operand.value", Message: "must be valid JSON"})
			}
		case OperandReference:
			if strings.TrimSpace(c.Operand.ConfigName) == "" {
				ve.Errors = append(ve.Errors, FieldError{Field: field + ".operand.config_name", Message: "is required"})
			}
			if strings.TrimSpace(c.Operand.ProjectID) == "" {
				ve.Errors = append(ve.Errors, FieldError{Field: field + ".operand.project_id", Message: "is required"})
			}
		default:
			ve.Errors = append(ve.Errors, FieldError{
				Field:   field + ".operand.type",
				Message: fmt.Sprintf("invalid value %q", c.Operand.Type),
			})
		}
	}
}

// ValidateOverrideReferences asserts that every reference operand in the
// override list points at the evaluating config's own project. Violations
// are collected across ALL overrides and reported together, so an editor
// gets every offending rule name in one round trip.
func ValidateOverrideReferences(projectID string, overrides []Override) error {
	var offending []string
	for _, o := range overrides {
		if o.Conditions != nil && hasForeignReference(o.Conditions, projectID) {
			offending = append(offending, o.Name)
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return fmt.Errorf(
		"overrides %s contain references that must use the same project ID as the config (%s)",
		strings.Join(offending, ", "), projectID,
	)
}

func hasForeignReference(c *Condition, projectID string) bool {
	if c.Operand != nil && c.Operand.Type == OperandReference && c.Operand.ProjectID != projectID {
		return true
	}
	for _, child := range c.Children {
		if hasForeignReference(child, projectID) {
			return true
		}
	}
	return false
}
