package evaluator

import (
	"context"
	"fmt"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/types"
)

// documentEvaluator applies policies to document-store snapshots.
// Understood rules: require_schema, enforce_required_fields,
// check_index_coverage, check_data_completeness.
type documentEvaluator struct{}

func (documentEvaluator) Evaluate(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	var findings []types.Finding

	if snap.Document == nil {
		// no document data at all: require-class rules fail closed
		for _, flag := range []string{"require_schema", "enforce_required_fields"} {
			if p.RuleFlag(flag) && classOf(flag) == requireClass {
				findings = append(findings, absentDataFinding(flag, p))
			}
		}
		return findings, nil
	}

	for _, coll := range snap.Document.Collections {
		if p.RuleFlag("require_schema") && !coll.HasValidator {
			findings = append(findings, types.Finding{
				Rule:        "require_schema",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("collection %q has no schema validator", coll.Name),
				Data:        map[string]any{"collection": coll.Name},
				Remediation: remediationFor(p, "schema", "validation"),
			})
			continue
		}

		// required fields cannot be enforced without a validator, but
		// only flag separately when schema presence itself is not
		// already being required
		if p.RuleFlag("enforce_required_fields") && !p.RuleFlag("require_schema") && !coll.HasValidator {
			findings = append(findings, types.Finding{
				Rule:        "enforce_required_fields",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("collection %q cannot enforce required fields without a validator", coll.Name),
				Data:        map[string]any{"collection": coll.Name},
				Remediation: remediationFor(p, "schema", "validation"),
			})
		}
	}

	if p.RuleFlag("check_index_coverage") {
		for _, coll := range snap.Document.Collections {
			// a bare collection carries only the default _id index
			if coll.DocumentCount > 0 && coll.IndexCount <= 1 {
				findings = append(findings, types.Finding{
					Rule:     "check_index_coverage",
					Severity: types.SeverityMedium,
					Description: fmt.Sprintf("collection %q has %d documents but only the default index",
						coll.Name, coll.DocumentCount),
					Data: map[string]any{
						"collection":     coll.Name,
						"document_count": coll.DocumentCount,
						"index_count":    coll.IndexCount,
					},
					Remediation: remediationFor(p, "index", "indexes"),
				})
			}
		}
	}

	if p.RuleFlag("check_data_completeness") {
		for _, coll := range snap.Document.Collections {
			if coll.DocumentCount == 0 {
				findings = append(findings, types.Finding{
					Rule:        "check_data_completeness",
					Severity:    types.SeverityLow,
					Description: fmt.Sprintf("collection %q is empty", coll.Name),
					Data:        map[string]any{"collection": coll.Name},
					Remediation: remediationFor(p, "data", "stale"),
				})
			}
		}
	}

	return findings, nil
}
