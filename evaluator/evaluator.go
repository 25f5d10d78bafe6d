// Package evaluator holds the per-database-type governance rule
// evaluators. Each evaluator is a pure function over a connector
// snapshot: it never touches the live database, which keeps evaluation
// deterministic and the evaluators testable with canned snapshots.
package evaluator

import (
	"context"
	"fmt"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/types"
)

// Evaluator applies one policy's validation rules to a snapshot
type Evaluator interface {
	Evaluate(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error)
}

// ForType returns the evaluator for a db type
func ForType(dbType types.DBType) (Evaluator, error) {
	switch dbType {
	case types.DBTypeMongoDB:
		return documentEvaluator{}, nil
	case types.DBTypePostgreSQL:
		return relationalEvaluator{}, nil
	case types.DBTypeRedis:
		return keyValueEvaluator{}, nil
	case types.DBTypeCosmosDB:
		return wideColumnEvaluator{}, nil
	case types.DBTypeBlobStorage:
		return objectStoreEvaluator{}, nil
	}
	return nil, fmt.Errorf("%w: no evaluator for db type %q", types.ErrEvaluation, dbType)
}

func checkSnapshot(snap *connector.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", types.ErrEvaluation)
	}
	return nil
}
