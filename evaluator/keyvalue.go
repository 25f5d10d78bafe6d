package evaluator

import (
	"context"
	"fmt"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/types"
)

const (
	// memoryPressureBytes is the used-memory level above which
	// check_memory_usage raises a finding
	memoryPressureBytes = 1 << 30
	// ttlMissingRatio is the fraction of sampled keys allowed to live
	// without a TTL before validate_ttl_policies raises a finding
	ttlMissingRatio = 0.5
)

// keyValueEvaluator applies policies to key-value snapshots.
// Understood rules: check_memory_usage, validate_ttl_policies. Both are
// check-class: when the snapshot lacks the relevant data they skip
// rather than flag.
type keyValueEvaluator struct{}

func (keyValueEvaluator) Evaluate(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}
	if snap.KeyValue == nil {
		return nil, nil
	}

	kv := snap.KeyValue
	var findings []types.Finding

	if p.RuleFlag("check_memory_usage") && kv.HasMemoryInfo && kv.UsedMemoryBytes > memoryPressureBytes {
		findings = append(findings, types.Finding{
			Rule:     "check_memory_usage",
			Severity: types.SeverityMedium,
			Description: fmt.Sprintf("memory usage %d bytes exceeds the %d byte watermark",
				kv.UsedMemoryBytes, int64(memoryPressureBytes)),
			Data: map[string]any{
				"used_memory_bytes": kv.UsedMemoryBytes,
				"key_count":         kv.KeyCount,
			},
			Remediation: remediationFor(p, "unused", "structures"),
		})
	}

	if p.RuleFlag("validate_ttl_policies") && kv.SampledKeys > 0 {
		ratio := float64(kv.KeysWithoutTTL) / float64(kv.SampledKeys)
		if ratio > ttlMissingRatio {
			findings = append(findings, types.Finding{
				Rule:     "validate_ttl_policies",
				Severity: types.SeverityMedium,
				Description: fmt.Sprintf("%d of %d sampled keys have no TTL",
					kv.KeysWithoutTTL, kv.SampledKeys),
				Data: map[string]any{
					"sampled_keys":     kv.SampledKeys,
					"keys_without_ttl": kv.KeysWithoutTTL,
				},
				Remediation: remediationFor(p, "ttl"),
			})
		}
	}

	return findings, nil
}
