package policy

import (
	"context"
	"sort"
	"time"

	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

// Store holds governance policy definitions. Persistence is delegated
// to the bbolt store; lookups by db type are served from there and
// ordered deterministically for the engine.
type Store struct {
	storage *storage.Store
	logger  *telemetry.Logger
}

// NewStore creates a policy store on top of the persistence layer
func NewStore(s *storage.Store) *Store {
	return &Store{
		storage: s,
		logger:  telemetry.NewLogger("policy-store"),
	}
}

// Register adds a new policy. Fails with DuplicateIdentifier when the
// policy id is already taken.
func (ps *Store) Register(ctx context.Context, p types.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	if err := ps.storage.CreatePolicy(p); err != nil {
		return err
	}

	ps.logger.WithContext(ctx).Info().
		Str("policy_id", p.PolicyID).
		Str("enforcement_level", string(p.EnforcementLevel)).
		Msg("policy registered")
	return nil
}

// Update replaces an existing policy and bumps updated_at
func (ps *Store) Update(ctx context.Context, p types.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()

	if err := ps.storage.UpdatePolicy(p); err != nil {
		return err
	}

	ps.logger.WithContext(ctx).Info().
		Str("policy_id", p.PolicyID).
		Msg("policy updated")
	return nil
}

// Get loads a policy by id, failing with NotFound when absent
func (ps *Store) Get(policyID string) (types.Policy, error) {
	return ps.storage.GetPolicy(policyID)
}

// List returns every registered policy
func (ps *Store) List() ([]types.Policy, error) {
	return ps.storage.ListPolicies()
}

// FindApplicable returns the policies covering dbType, ordered by
// enforcement level descending (blocking > error > warning), ties
// broken by policy id ascending so evaluation order is deterministic.
func (ps *Store) FindApplicable(dbType types.DBType) ([]types.Policy, error) {
	all, err := ps.storage.ListPolicies()
	if err != nil {
		return nil, err
	}

	var applicable []types.Policy
	for _, p := range all {
		if p.AppliesTo(dbType) {
			applicable = append(applicable, p)
		}
	}

	sort.Slice(applicable, func(i, j int) bool {
		ri, rj := applicable[i].EnforcementLevel.Rank(), applicable[j].EnforcementLevel.Rank()
		if ri != rj {
			return ri > rj
		}
		return applicable[i].PolicyID < applicable[j].PolicyID
	})

	return applicable, nil
}
