package evaluator

import (
	"context"
	"fmt"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/types"
)

// relationalEvaluator applies policies to relational snapshots.
// Understood rules: require_foreign_keys, enforce_not_null,
// check_data_completeness.
type relationalEvaluator struct{}

func (relationalEvaluator) Evaluate(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	var findings []types.Finding

	if snap.Relational == nil {
		for _, flag := range []string{"require_foreign_keys", "enforce_not_null"} {
			if p.RuleFlag(flag) && classOf(flag) == requireClass {
				findings = append(findings, absentDataFinding(flag, p))
			}
		}
		return findings, nil
	}

	for _, table := range snap.Relational.Tables {
		if p.RuleFlag("require_foreign_keys") && table.ForeignKeyCount == 0 {
			findings = append(findings, types.Finding{
				Rule:        "require_foreign_keys",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("table %q declares no foreign key constraints", table.Name),
				Data:        map[string]any{"table": table.Name},
				Remediation: remediationFor(p, "foreign"),
			})
		}

		if p.RuleFlag("enforce_not_null") && table.NullsSampled && table.NullsInNotNull > 0 {
			findings = append(findings, types.Finding{
				Rule:     "enforce_not_null",
				Severity: types.SeverityCritical,
				Description: fmt.Sprintf("table %q holds %d NULL values in NOT NULL columns",
					table.Name, table.NullsInNotNull),
				Data: map[string]any{
					"table":      table.Name,
					"null_count": table.NullsInNotNull,
				},
				Remediation: remediationFor(p, "null"),
			})
		}
	}

	if p.RuleFlag("check_data_completeness") && len(snap.Relational.Tables) == 0 {
		findings = append(findings, types.Finding{
			Rule:        "check_data_completeness",
			Severity:    types.SeverityLow,
			Description: "database contains no tables",
			Remediation: remediationFor(p, "data"),
		})
	}

	return findings, nil
}
