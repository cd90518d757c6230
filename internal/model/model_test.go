package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoleSatisfies(t *testing.T) {
	for _, tc := range []struct {
		actor    Role
		required Role
		want     bool
	}{
		{RoleViewer, RoleEditor, false},
		{RoleEditor, RoleEditor, true},
		{RoleEditor, RoleMaintainer, false},
		{RoleMaintainer, RoleMaintainer, true},
		{RoleOwner, RoleMaintainer, true},
		{RoleAdmin, RoleMaintainer, true},
		{Role("bogus"), RoleViewer, false},
	} {
		if got := tc.actor.Satisfies(tc.required); got != tc.want {
			t.Errorf("%s.Satisfies(%s) = %v, want %v", tc.actor, tc.required, got, tc.want)
		}
	}
}

func TestMaxRole(t *testing.T) {
	if got := MaxRole(RoleEditor, RoleMaintainer); got != RoleMaintainer {
		t.Errorf("MaxRole = %s", got)
	}
	if got := MaxRole(RoleOwner, ""); got != RoleOwner {
		t.Errorf("MaxRole = %s", got)
	}
}

func TestChangeSetRequiredRole(t *testing.T) {
	for _, tc := range []struct {
		name string
		cs   ChangeSet
		want Role
	}{
		{"value only", ChangeSet{Value: true}, RoleEditor},
		{"description only", ChangeSet{Description: true}, RoleEditor},
		{"schema", ChangeSet{Schema: true}, RoleMaintainer},
		{"members", ChangeSet{Members: true}, RoleMaintainer},
		{"delete", ChangeSet{Delete: true}, RoleMaintainer},
		{"value and schema", ChangeSet{Value: true, Schema: true}, RoleMaintainer},
	} {
		if got := tc.cs.RequiredRole(); got != tc.want {
			t.Errorf("%s: RequiredRole = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestProposalTerminal(t *testing.T) {
	p := &Proposal{ID: "pr-1"}
	if p.Terminal() {
		t.Error("new proposal should not be terminal")
	}
	if p.Status() != ProposalPending {
		t.Errorf("Status = %s, want pending", p.Status())
	}

	now := time.Now().UTC()
	p.ApprovedAt = &now
	if !p.Terminal() || p.Status() != ProposalApproved {
		t.Errorf("approved proposal: Terminal=%v Status=%s", p.Terminal(), p.Status())
	}

	p = &Proposal{ID: "pr-2", RejectedAt: &now}
	if !p.Terminal() || p.Status() != ProposalRejected {
		t.Errorf("rejected proposal: Terminal=%v Status=%s", p.Terminal(), p.Status())
	}
}

func TestProposalChangeSet(t *testing.T) {
	desc := "updated"
	p := &Proposal{
		Scope:               ScopeConfig,
		ProposedDescription: &desc,
	}
	cs := p.ChangeSet()
	if !cs.Description || cs.Value || cs.Schema || cs.Members || cs.Delete {
		t.Errorf("unexpected change set %+v", cs)
	}

	p = &Proposal{Scope: ScopeVariant, RemoveSchema: true, ProposedValue: json.RawMessage(`1`)}
	cs = p.ChangeSet()
	if !cs.Schema || !cs.Value {
		t.Errorf("unexpected change set %+v", cs)
	}
	if cs.RequiredRole() != RoleMaintainer {
		t.Errorf("schema removal should require maintainer")
	}
}

func TestMemberRoleFor(t *testing.T) {
	c := &Config{Members: []Member{
		{Email: "alice@example.com", Role: MemberMaintainer},
		{Email: "bob@example.com", Role: MemberEditor},
	}}
	if got := c.MemberRoleFor("Alice@Example.com"); got != MemberMaintainer {
		t.Errorf("MemberRoleFor = %q", got)
	}
	if got := c.MemberRoleFor("carol@example.com"); got != "" {
		t.Errorf("MemberRoleFor = %q, want empty", got)
	}
}

func TestConditionJSONRoundTrip(t *testing.T) {
	in := &Condition{
		Kind: CondOr,
		Children: []*Condition{
			{Kind: CondEquals, Attribute: "tier", Operand: &Operand{Type: OperandLiteral, Value: json.RawMessage(`"free"`)}},
			{Kind: CondIn, Attribute: "region", Operand: &Operand{
				Type: OperandReference, ProjectID: "proj-a", ConfigName: "regions", Path: "eu",
			}},
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Condition
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != CondOr || len(out.Children) != 2 {
		t.Fatalf("round trip lost structure: %+v", out)
	}
	if out.Children[1].Operand.ConfigName != "regions" {
		t.Errorf("round trip lost reference operand: %+v", out.Children[1].Operand)
	}
}
