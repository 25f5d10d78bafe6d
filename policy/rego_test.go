package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/vahti/types"
)

const ttlModule = `package vahti

findings contains f if {
	input.snapshot.keys_without_ttl > 10
	f := {
		"rule": "custom_ttl_coverage",
		"severity": "medium",
		"description": "too many keys without TTL",
		"data": {"keys_without_ttl": input.snapshot.keys_without_ttl},
	}
}
`

func TestRegoEvaluator_CustomRule(t *testing.T) {
	re := NewRegoEvaluator()
	ctx := context.Background()

	p := mkPolicy("custom_ttl", types.EnforcementWarning, types.DBTypeRedis)
	p.RegoModule = ttlModule
	require.NoError(t, re.Load(ctx, p))

	findings, err := re.Evaluate(ctx, p, map[string]any{
		"snapshot": map[string]any{"keys_without_ttl": 25},
	})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "custom_ttl_coverage", findings[0].Rule)
	assert.Equal(t, types.SeverityMedium, findings[0].Severity)

	// Below threshold: no findings
	findings, err = re.Evaluate(ctx, p, map[string]any{
		"snapshot": map[string]any{"keys_without_ttl": 3},
	})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRegoEvaluator_NoModuleLoaded(t *testing.T) {
	re := NewRegoEvaluator()
	ctx := context.Background()

	p := mkPolicy("plain", types.EnforcementWarning, types.DBTypeRedis)
	require.NoError(t, re.Load(ctx, p))

	findings, err := re.Evaluate(ctx, p, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, findings)
}

func TestRegoEvaluator_BadModule(t *testing.T) {
	re := NewRegoEvaluator()
	ctx := context.Background()

	p := mkPolicy("broken", types.EnforcementWarning, types.DBTypeRedis)
	p.RegoModule = "package vahti\nfindings contains f if {"

	err := re.Load(ctx, p)
	assert.ErrorIs(t, err, types.ErrEvaluation)
}
