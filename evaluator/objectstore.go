package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/types"
)

// staleDataAge is how old the newest object may be before
// check_data_freshness considers the bucket stale
const staleDataAge = 30 * 24 * time.Hour

// objectStoreEvaluator applies policies to object-storage snapshots.
// Understood rules: require_versioning, check_data_completeness,
// check_data_freshness.
type objectStoreEvaluator struct{}

func (objectStoreEvaluator) Evaluate(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	var findings []types.Finding

	if snap.ObjectStore == nil {
		if p.RuleFlag("require_versioning") {
			findings = append(findings, absentDataFinding("require_versioning", p))
		}
		return findings, nil
	}

	store := snap.ObjectStore

	if p.RuleFlag("require_versioning") && !store.VersioningEnabled {
		findings = append(findings, types.Finding{
			Rule:        "require_versioning",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("bucket %q has versioning disabled", store.Bucket),
			Data:        map[string]any{"bucket": store.Bucket},
			Remediation: remediationFor(p, "versioning"),
		})
	}

	if p.RuleFlag("check_data_completeness") && store.EmptyObjects > 0 {
		findings = append(findings, types.Finding{
			Rule:     "check_data_completeness",
			Severity: types.SeverityLow,
			Description: fmt.Sprintf("bucket %q holds %d zero-byte objects in a sample of %d",
				store.Bucket, store.EmptyObjects, store.SampledObjects),
			Data: map[string]any{
				"bucket":          store.Bucket,
				"empty_objects":   store.EmptyObjects,
				"sampled_objects": store.SampledObjects,
			},
			Remediation: remediationFor(p, "data", "stale"),
		})
	}

	if p.RuleFlag("check_data_freshness") && store.SampledObjects > 0 && !store.NewestModification.IsZero() {
		age := snap.TakenAt.Sub(store.NewestModification)
		if age > staleDataAge {
			findings = append(findings, types.Finding{
				Rule:     "check_data_freshness",
				Severity: types.SeverityMedium,
				Description: fmt.Sprintf("bucket %q has had no writes for %d days",
					store.Bucket, int(age.Hours()/24)),
				Data: map[string]any{
					"bucket":              store.Bucket,
					"newest_modification": store.NewestModification,
				},
				Remediation: remediationFor(p, "stale", "update"),
			})
		}
	}

	return findings, nil
}
