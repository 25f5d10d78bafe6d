package types

// Finding is a single rule-check result produced by an evaluator.
// Findings are transient; the ledger persists the ones that clear a
// policy's enforcement threshold as violations.
type Finding struct {
	Rule        string         `json:"rule"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Remediation []string       `json:"remediation,omitempty"`
}

// ClearsThreshold reports whether the finding breaches the policy's
// enforcement floor: blocking policies flag everything, error policies
// flag medium and up, warning policies flag everything from low up.
func (f Finding) ClearsThreshold(level EnforcementLevel) bool {
	switch level {
	case EnforcementBlocking:
		return true
	case EnforcementError:
		return f.Severity.AtLeast(SeverityMedium)
	case EnforcementWarning:
		return f.Severity.AtLeast(SeverityLow)
	}
	return false
}
