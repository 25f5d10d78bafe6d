package evaluator

import (
	"context"
	"fmt"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/types"
)

// wideColumnEvaluator applies policies to wide-column snapshots.
// Understood rules: require_indexing_policy, check_index_coverage,
// validate_ttl_policies.
type wideColumnEvaluator struct{}

func (wideColumnEvaluator) Evaluate(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	var findings []types.Finding

	if snap.WideColumn == nil {
		if p.RuleFlag("require_indexing_policy") {
			findings = append(findings, absentDataFinding("require_indexing_policy", p))
		}
		return findings, nil
	}

	for _, c := range snap.WideColumn.Containers {
		missingIndexing := !c.HasIndexingPolicy
		if missingIndexing && (p.RuleFlag("require_indexing_policy") || p.RuleFlag("check_index_coverage")) {
			rule := "check_index_coverage"
			severity := types.SeverityMedium
			if p.RuleFlag("require_indexing_policy") {
				rule = "require_indexing_policy"
				severity = types.SeverityHigh
			}
			findings = append(findings, types.Finding{
				Rule:        rule,
				Severity:    severity,
				Description: fmt.Sprintf("container %q has no indexing policy", c.Name),
				Data:        map[string]any{"container": c.Name},
				Remediation: remediationFor(p, "index", "indexes"),
			})
		}

		if p.RuleFlag("validate_ttl_policies") && !c.HasDefaultTTL {
			findings = append(findings, types.Finding{
				Rule:        "validate_ttl_policies",
				Severity:    types.SeverityLow,
				Description: fmt.Sprintf("container %q has no default TTL", c.Name),
				Data:        map[string]any{"container": c.Name},
				Remediation: remediationFor(p, "ttl"),
			})
		}
	}

	return findings, nil
}
