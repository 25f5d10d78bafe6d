package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yairfalse/vahti/types"
	"go.etcd.io/bbolt"
)

// Policies

// CreatePolicy inserts a policy, failing on duplicate policy_id
func (s *Store) CreatePolicy(p types.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(bucketPolicies, p.PolicyID, p)
}

// UpdatePolicy overwrites an existing policy
func (s *Store) UpdatePolicy(p types.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing types.Policy
	if err := s.get(bucketPolicies, p.PolicyID, &existing); err != nil {
		return err
	}
	return s.put(bucketPolicies, p.PolicyID, p)
}

// GetPolicy loads a policy by id
func (s *Store) GetPolicy(policyID string) (types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p types.Policy
	err := s.get(bucketPolicies, policyID, &p)
	return p, err
}

// ListPolicies returns every stored policy
func (s *Store) ListPolicies() ([]types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var policies []types.Policy
	err := s.scan(bucketPolicies, func(raw []byte) error {
		var p types.Policy
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		policies = append(policies, p)
		return nil
	})
	return policies, err
}

// Connections

// CreateConnection inserts a connection, failing on duplicate name
func (s *Store) CreateConnection(c types.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(bucketConnections, c.Name, c)
}

// UpdateConnection overwrites an existing connection
func (s *Store) UpdateConnection(c types.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing types.Connection
	if err := s.get(bucketConnections, c.Name, &existing); err != nil {
		return err
	}
	return s.put(bucketConnections, c.Name, c)
}

// GetConnection loads a connection by name
func (s *Store) GetConnection(name string) (types.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c types.Connection
	err := s.get(bucketConnections, name, &c)
	return c, err
}

// ListConnections returns connections, optionally filtered by status
func (s *Store) ListConnections(status types.ConnectionStatus) ([]types.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var connections []types.Connection
	err := s.scan(bucketConnections, func(raw []byte) error {
		var c types.Connection
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		if status == "" || c.Status == status {
			connections = append(connections, c)
		}
		return nil
	})
	return connections, err
}

// Violations

// CreateViolation inserts a violation and indexes its fingerprint
func (s *Store) CreateViolation(v types.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal violation %s: %v", types.ErrPersistence, v.ViolationID, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketViolations)
		if b.Get([]byte(v.ViolationID)) != nil {
			return fmt.Errorf("%w: violation %q", types.ErrDuplicateIdentifier, v.ViolationID)
		}
		if err := b.Put([]byte(v.ViolationID), value); err != nil {
			return err
		}
		return tx.Bucket(bucketFingerprints).Put([]byte(v.Fingerprint), []byte(v.ViolationID))
	})
	if err != nil {
		if isTaxonomy(err) {
			return err
		}
		return fmt.Errorf("%w: create violation %s: %v", types.ErrPersistence, v.ViolationID, err)
	}

	s.index.ReplaceOrInsert(&violationRef{Fingerprint: v.Fingerprint, ViolationID: v.ViolationID})
	return nil
}

// UpdateViolation overwrites an existing violation
func (s *Store) UpdateViolation(v types.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing types.Violation
	if err := s.get(bucketViolations, v.ViolationID, &existing); err != nil {
		return err
	}
	return s.put(bucketViolations, v.ViolationID, v)
}

// GetViolation loads a violation by id
func (s *Store) GetViolation(violationID string) (types.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v types.Violation
	err := s.get(bucketViolations, violationID, &v)
	return v, err
}

// GetViolationByFingerprint looks a violation up through the
// fingerprint index, failing with NotFound when absent
func (s *Store) GetViolationByFingerprint(fingerprint string) (types.Violation, error) {
	s.mu.RLock()
	ref, found := s.index.Get(&violationRef{Fingerprint: fingerprint})
	s.mu.RUnlock()

	if !found {
		return types.Violation{}, fmt.Errorf("%w: fingerprint %q", types.ErrNotFound, fingerprint)
	}
	return s.GetViolation(ref.ViolationID)
}

// ViolationFilter narrows ListViolations results
type ViolationFilter struct {
	DatabaseName string
	PolicyID     string
	Status       types.ViolationStatus
	Severity     types.Severity
	Since        time.Time
}

func (f ViolationFilter) matches(v types.Violation) bool {
	if f.DatabaseName != "" && v.DatabaseName != f.DatabaseName {
		return false
	}
	if f.PolicyID != "" && v.PolicyID != f.PolicyID {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Severity != "" && v.Severity != f.Severity {
		return false
	}
	if !f.Since.IsZero() && v.DetectedAt.Before(f.Since) {
		return false
	}
	return true
}

// ListViolations returns violations matching the filter
func (s *Store) ListViolations(filter ViolationFilter) ([]types.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var violations []types.Violation
	err := s.scan(bucketViolations, func(raw []byte) error {
		var v types.Violation
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if filter.matches(v) {
			violations = append(violations, v)
		}
		return nil
	})
	return violations, err
}

// Audit events

// AppendAuditEvent appends an event, failing on duplicate event_id.
// Nothing ever updates or deletes entries in this bucket.
func (s *Store) AppendAuditEvent(e types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(bucketAuditEvents, e.EventID, e)
}

// AuditFilter narrows ListAuditEvents results
type AuditFilter struct {
	EventType string
	Source    string
	Action    string
	Since     time.Time
}

func (f AuditFilter) matches(e types.AuditEvent) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// ListAuditEvents returns audit events matching the filter
func (s *Store) ListAuditEvents(filter AuditFilter) ([]types.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []types.AuditEvent
	err := s.scan(bucketAuditEvents, func(raw []byte) error {
		var e types.AuditEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		if filter.matches(e) {
			events = append(events, e)
		}
		return nil
	})
	return events, err
}

// scan iterates every value in a bucket
func (s *Store) scan(bucket []byte, fn func(raw []byte) error) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			return fn(v)
		})
	})
	if err != nil {
		return fmt.Errorf("%w: scan %s: %v", types.ErrPersistence, bucket, err)
	}
	return nil
}
