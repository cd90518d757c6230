package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ID:        "c1",
		ProjectID: "proj-a",
		Name:      "rate-limits",
		Version:   1,
		Value:     json.RawMessage(`{"count":1}`),
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfig_MissingName(t *testing.T) {
	c := validConfig()
	c.Name = "  "
	err := ValidateConfig(c)
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name: is required") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidateConfig_InvalidValue(t *testing.T) {
	c := validConfig()
	c.Value = json.RawMessage(`{"count":`)
	if err := ValidateConfig(c); err == nil {
		t.Fatal("expected error for invalid JSON value")
	}
}

func TestValidateConfig_DuplicateMember(t *testing.T) {
	c := validConfig()
	c.Members = []Member{
		{Email: "alice@example.com", Role: MemberEditor},
		{Email: "ALICE@example.com", Role: MemberMaintainer},
	}
	err := ValidateConfig(c)
	if err == nil {
		t.Fatal("expected error for duplicate member")
	}
	if !strings.Contains(err.Error(), "more than one role") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidateConfig_InvalidMemberRole(t *testing.T) {
	c := validConfig()
	c.Members = []Member{{Email: "bob@example.com", Role: "viewer"}}
	if err := ValidateConfig(c); err == nil {
		t.Fatal("expected error for invalid member role")
	}
}

func TestValidateConfig_OverrideStructure(t *testing.T) {
	c := validConfig()
	c.Overrides = []Override{
		{Name: "", Conditions: nil, Value: json.RawMessage(`1`)},
	}
	err := ValidateConfig(c)
	if err == nil {
		t.Fatal("expected error for malformed override")
	}
	msg := err.Error()
	if !strings.Contains(msg, "overrides[0].name") || !strings.Contains(msg, "overrides[0].conditions") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidateConfig_UnknownConditionKind(t *testing.T) {
	c := validConfig()
	c.Overrides = []Override{{
		Name: "r1",
		Conditions: &Condition{
			Kind:      "regex",
			Attribute: "tier",
			Operand:   &Operand{Type: OperandLiteral, Value: json.RawMessage(`"free"`)},
		},
		Value: json.RawMessage(`1`),
	}}
	if err := ValidateConfig(c); err == nil {
		t.Fatal("expected error for unknown condition kind")
	}
}

func TestValidateVariant_UseBaseSchemaConflict(t *testing.T) {
	v := &Variant{
		ConfigID:      "c1",
		EnvironmentID: "env-1",
		Value:         json.RawMessage(`true`),
		Schema:        json.RawMessage(`{"type":"boolean"}`),
		UseBaseSchema: true,
	}
	if err := ValidateVariant(v); err == nil {
		t.Fatal("expected error when schema set with use_base_schema")
	}
}

func refCondition(projectID string) *Condition {
	return &Condition{
		Kind:      CondEquals,
		Attribute: "plan",
		Operand: &Operand{
			Type:       OperandReference,
			ProjectID:  projectID,
			ConfigName: "plans",
			Path:       "default",
		},
	}
}

func TestValidateOverrideReferences_SameProject(t *testing.T) {
	overrides := []Override{
		{Name: "r1", Conditions: refCondition("proj-a"), Value: json.RawMessage(`1`)},
	}
	if err := ValidateOverrideReferences("proj-a", overrides); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateOverrideReferences_CollectsAllViolations(t *testing.T) {
	overrides := []Override{
		{Name: "r1", Conditions: refCondition("proj-b"), Value: json.RawMessage(`1`)},
		{Name: "r2", Conditions: refCondition("proj-a"), Value: json.RawMessage(`2`)},
		{Name: "r3", Conditions: &Condition{
			Kind: CondAnd,
			Children: []*Condition{
				refCondition("proj-a"),
				refCondition("proj-c"),
			},
		}, Value: json.RawMessage(`3`)},
	}
	err := ValidateOverrideReferences("proj-a", overrides)
	if err == nil {
		t.Fatal("expected error for cross-project references")
	}
	msg := err.Error()
	if !strings.Contains(msg, "same project ID") {
		t.Errorf("message should mention same project ID: %v", err)
	}
	if !strings.Contains(msg, "r1") || !strings.Contains(msg, "r3") {
		t.Errorf("message should name every offending override: %v", err)
	}
	if strings.Contains(msg, "r2") {
		t.Errorf("message should not name compliant overrides: %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
