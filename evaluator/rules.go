package evaluator

import (
	"fmt"
	"strings"

	"github.com/yairfalse/vahti/types"
)

// ruleClass determines how a validation rule behaves when the data it
// needs is not present in the snapshot.
type ruleClass int

const (
	// requireClass rules treat absent data as a violation: the target
	// cannot demonstrate compliance, so it is non-compliant.
	requireClass ruleClass = iota
	// checkClass rules treat absent data as not applicable and skip.
	checkClass
)

// classOf maps a rule flag name to its class by prefix. require_* and
// enforce_* demand proof; check_*, validate_*, monitor_* and detect_*
// are best-effort observations.
func classOf(flag string) ruleClass {
	if strings.HasPrefix(flag, "require_") || strings.HasPrefix(flag, "enforce_") {
		return requireClass
	}
	return checkClass
}

// absentDataFinding is raised when a require-class rule has no data to
// inspect at all.
func absentDataFinding(flag string, p types.Policy) types.Finding {
	return types.Finding{
		Rule:        flag,
		Severity:    types.SeverityHigh,
		Description: fmt.Sprintf("cannot verify %s: no inspection data available", flag),
		Remediation: remediationFor(p, strings.Split(flag, "_")...),
	}
}

// remediationFor picks the policy's remediation actions relevant to a
// rule, matched by shared keywords. Nil when nothing matches.
func remediationFor(p types.Policy, keywords ...string) []string {
	var matched []string
	for _, action := range p.RemediationActions {
		lower := strings.ToLower(action)
		for _, kw := range keywords {
			if len(kw) < 3 {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, action)
				break
			}
		}
	}
	return matched
}
