package model

import "encoding/json"

// ConditionKind discriminates the condition tree variants.
type ConditionKind string

const (
	CondAnd    ConditionKind = "and"
	CondOr     ConditionKind = "or"
	CondEquals ConditionKind = "equals"
	CondIn     ConditionKind = "in"
)

// String returns the string representation of the condition kind.
func (k ConditionKind) String() string {
	return string(k)
}

// IsValid checks whether the condition kind is a known value.
func (k ConditionKind) IsValid() bool {
	switch k {
	case CondAnd, CondOr, CondEquals, CondIn:
		return true
	}
	return false
}

// OperandType discriminates a leaf condition's right-hand operand.
type OperandType string

const (
	OperandLiteral   OperandType = "literal"
	OperandReference OperandType = "reference"
)

// Operand is the right-hand side of a leaf comparison: either an inline
// JSON literal or a reference to another config's stored value in the same
// project, navigated by a dotted path.
type Operand struct {
	Type       OperandType     `json:"type"`
	Value      json.RawMessage `json:"value,omitempty"`
	ProjectID  string          `json:"project_id,omitempty"`
	ConfigName string          `json:"config_name,omitempty"`
	Path       string          `json:"path,omitempty"`
}

// Condition is a node in the override condition tree. Kind "and"/"or" nodes
// carry Children; "equals"/"in" leaves carry Attribute (the evaluation
// context key) and Operand.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Children  []*Condition  `json:"children,omitempty"`
	Attribute string        `json:"attribute,omitempty"`
	Operand   *Operand      `json:"operand,omitempty"`
}

// Override is a named conditional rule. During evaluation, overrides are
// checked in array order and the first whose condition tree matches
// determines the effective value.
type Override struct {
	Name       string          `json:"name"`
	Conditions *Condition      `json:"conditions"`
	Value      json.RawMessage `json:"value"`
}
