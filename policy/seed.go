package policy

import (
	"context"
	"errors"
	"time"

	"github.com/yairfalse/vahti/types"
)

// DefaultPolicies returns the built-in governance policies that every
// deployment starts with.
func DefaultPolicies() []types.Policy {
	now := time.Now()

	return []types.Policy{
		{
			PolicyID:          "mongodb_schema_validation",
			Name:              "MongoDB Schema Validation",
			Description:       "Enforce JSON schema validation for MongoDB collections",
			ApplicableDBTypes: []types.DBType{types.DBTypeMongoDB},
			EnforcementLevel:  types.EnforcementError,
			ValidationRules: map[string]any{
				"require_schema":          true,
				"validate_data_types":     true,
				"enforce_required_fields": true,
				"check_index_coverage":    true,
			},
			ComplianceFrameworks: []string{"SOX", "GDPR"},
			RemediationActions: []string{
				"Add JSON schema validation to collections",
				"Create missing indexes",
				"Validate data consistency",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			PolicyID:          "postgresql_referential_integrity",
			Name:              "PostgreSQL Referential Integrity",
			Description:       "Enforce foreign key constraints and referential integrity",
			ApplicableDBTypes: []types.DBType{types.DBTypePostgreSQL},
			EnforcementLevel:  types.EnforcementBlocking,
			ValidationRules: map[string]any{
				"require_foreign_keys":  true,
				"validate_constraints":  true,
				"check_orphaned_records": true,
				"enforce_not_null":      true,
			},
			ComplianceFrameworks: []string{"SOX", "HIPAA"},
			RemediationActions: []string{
				"Add missing foreign key constraints",
				"Clean up orphaned records",
				"Add NOT NULL constraints",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			PolicyID:          "redis_memory_optimization",
			Name:              "Redis Memory Optimization",
			Description:       "Optimize Redis memory usage and TTL policies",
			ApplicableDBTypes: []types.DBType{types.DBTypeRedis},
			EnforcementLevel:  types.EnforcementWarning,
			ValidationRules: map[string]any{
				"check_memory_usage":    true,
				"validate_ttl_policies": true,
				"monitor_key_patterns":  true,
				"check_data_structures": true,
			},
			ComplianceFrameworks: []string{"Performance"},
			RemediationActions: []string{
				"Set appropriate TTL values",
				"Optimize data structures",
				"Clean up unused keys",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			PolicyID:          "data_quality_standards",
			Name:              "Data Quality Standards",
			Description:       "Ensure data quality across all database types",
			ApplicableDBTypes: types.AllDBTypes,
			EnforcementLevel:  types.EnforcementError,
			ValidationRules: map[string]any{
				"check_data_completeness": true,
				"validate_data_formats":   true,
				"detect_duplicates":       true,
				"check_data_freshness":    true,
			},
			ComplianceFrameworks: []string{"SOX", "GDPR", "HIPAA"},
			RemediationActions: []string{
				"Clean duplicate records",
				"Standardize data formats",
				"Update stale data",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Seed registers the default policies. Safe to run on every start:
// already-registered policies are left untouched and never surface
// DuplicateIdentifier to the caller. Returns how many were inserted.
func Seed(ctx context.Context, store *Store) (int, error) {
	inserted := 0
	for _, p := range DefaultPolicies() {
		err := store.Register(ctx, p)
		if err == nil {
			inserted++
			continue
		}
		if errors.Is(err, types.ErrDuplicateIdentifier) {
			continue
		}
		return inserted, err
	}
	return inserted, nil
}
