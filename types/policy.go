package types

import (
	"fmt"
	"time"
)

// Policy is a governance policy definition.
// Immutable once registered except through an explicit update,
// which bumps UpdatedAt.
type Policy struct {
	PolicyID             string           `json:"policy_id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	ApplicableDBTypes    []DBType         `json:"applicable_db_types"`
	EnforcementLevel     EnforcementLevel `json:"enforcement_level"`
	ValidationRules      map[string]any   `json:"validation_rules,omitempty"`
	ComplianceFrameworks []string         `json:"compliance_frameworks,omitempty"`
	RemediationActions   []string         `json:"remediation_actions,omitempty"`
	// RegoModule optionally carries a custom rule module evaluated by the
	// OPA-backed evaluator in addition to the builtin rule flags.
	RegoModule string    `json:"rego_module,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate gates policy construction before anything is persisted
func (p *Policy) Validate() error {
	if p.PolicyID == "" {
		return fmt.Errorf("policy_id cannot be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("policy %s: name cannot be empty", p.PolicyID)
	}
	if p.Description == "" {
		return fmt.Errorf("policy %s: description cannot be empty", p.PolicyID)
	}
	if len(p.ApplicableDBTypes) == 0 {
		return fmt.Errorf("policy %s: applicable_db_types cannot be empty", p.PolicyID)
	}
	for _, t := range p.ApplicableDBTypes {
		if !t.Valid() {
			return fmt.Errorf("policy %s: unknown db type %q", p.PolicyID, t)
		}
	}
	if !p.EnforcementLevel.Valid() {
		return fmt.Errorf("policy %s: unknown enforcement level %q", p.PolicyID, p.EnforcementLevel)
	}
	return nil
}

// AppliesTo reports whether the policy covers the given db type
func (p *Policy) AppliesTo(t DBType) bool {
	for _, applicable := range p.ApplicableDBTypes {
		if applicable == t {
			return true
		}
	}
	return false
}

// RuleFlag returns the boolean value of a named validation rule flag.
// Missing flags and non-boolean values read as false.
func (p *Policy) RuleFlag(name string) bool {
	v, ok := p.ValidationRules[name]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
