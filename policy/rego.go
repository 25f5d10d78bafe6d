package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/yairfalse/vahti/types"
)

// RegoEvaluator runs a policy's optional custom rule module. Builtin
// rule flags cover the known checks; arbitrary custom policies attach a
// rego module instead, evaluated here against the connection snapshot.
type RegoEvaluator struct {
	mu      sync.RWMutex
	queries map[string]rego.PreparedEvalQuery
}

// NewRegoEvaluator creates an evaluator with no modules loaded
func NewRegoEvaluator() *RegoEvaluator {
	return &RegoEvaluator{
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// Load compiles and caches the rego module attached to a policy.
// Policies without a module are a no-op.
func (re *RegoEvaluator) Load(ctx context.Context, p types.Policy) error {
	if p.RegoModule == "" {
		return nil
	}

	query := rego.New(
		rego.Query("data.vahti.findings"),
		rego.Module(p.PolicyID, p.RegoModule),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("%w: compile rego for policy %s: %v", types.ErrEvaluation, p.PolicyID, err)
	}

	re.mu.Lock()
	re.queries[p.PolicyID] = prepared
	re.mu.Unlock()
	return nil
}

// Ensure compiles the policy's module unless it is already cached
func (re *RegoEvaluator) Ensure(ctx context.Context, p types.Policy) error {
	re.mu.RLock()
	_, ok := re.queries[p.PolicyID]
	re.mu.RUnlock()
	if ok {
		return nil
	}
	return re.Load(ctx, p)
}

// Evaluate runs the policy's module against the given input and maps
// rule results to findings. Policies with no loaded module produce none.
func (re *RegoEvaluator) Evaluate(ctx context.Context, p types.Policy, input map[string]any) ([]types.Finding, error) {
	re.mu.RLock()
	query, ok := re.queries[p.PolicyID]
	re.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("%w: rego eval for policy %s: %v", types.ErrEvaluation, p.PolicyID, err)
	}

	var findings []types.Finding
	for _, res := range results {
		for _, expr := range res.Expressions {
			findings = append(findings, parseFindingValues(expr.Value)...)
		}
	}
	return findings, nil
}

// parseFindingValues converts the rego result set into findings.
// The module is expected to produce a set or array of objects with
// rule, severity, description, and optional data fields.
func parseFindingValues(value any) []types.Finding {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	var findings []types.Finding
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		f := types.Finding{
			Rule:        stringField(obj, "rule"),
			Severity:    types.Severity(stringField(obj, "severity")),
			Description: stringField(obj, "description"),
		}
		if data, ok := obj["data"].(map[string]any); ok {
			f.Data = data
		}
		if f.Rule == "" {
			continue
		}
		if !f.Severity.Valid() {
			f.Severity = types.SeverityMedium
		}
		findings = append(findings, f)
	}
	return findings
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
