package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"github.com/yairfalse/vahti/types"
	"go.etcd.io/bbolt"
)

// Bucket names in bbolt, one per governance collection
var (
	bucketPolicies     = []byte("governance_policies")
	bucketConnections  = []byte("database_connections")
	bucketViolations   = []byte("governance_violations")
	bucketFingerprints = []byte("violation_fingerprints")
	bucketAuditEvents  = []byte("audit_events")
)

// violationRef links a fingerprint to its stored violation id
type violationRef struct {
	Fingerprint string
	ViolationID string
}

// Store is the bbolt-backed persistence layer for all governance
// collections. Uniqueness on id fields is enforced on create; the
// fingerprint index supports the ledger's upsert-by-fingerprint.
type Store struct {
	mu sync.RWMutex

	// In-memory fingerprint index for fast upsert lookups
	index *btree.BTreeG[*violationRef]

	db  *bbolt.DB
	dir string
}

// NewStore opens or creates the store in the given directory.
// Bucket provisioning here is the moral equivalent of the collection
// and index setup a bootstrap script would do.
func NewStore(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "vahti.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", types.ErrPersistence, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			bucketPolicies, bucketConnections, bucketViolations,
			bucketFingerprints, bucketAuditEvents,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create buckets: %v", types.ErrPersistence, err)
	}

	s := &Store{
		index: btree.NewG[*violationRef](32, func(a, b *violationRef) bool {
			return a.Fingerprint < b.Fingerprint
		}),
		db:  db,
		dir: dir,
	}

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// rebuildIndex loads the fingerprint index from disk
func (s *Store) rebuildIndex() error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFingerprints).ForEach(func(k, v []byte) error {
			s.index.ReplaceOrInsert(&violationRef{
				Fingerprint: string(k),
				ViolationID: string(v),
			})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%w: rebuild fingerprint index: %v", types.ErrPersistence, err)
	}
	return nil
}

// create inserts a record if the key is not already present
func (s *Store) create(bucket []byte, key string, record any) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", types.ErrPersistence, key, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(key)) != nil {
			return fmt.Errorf("%w: %s %q", types.ErrDuplicateIdentifier, bucket, key)
		}
		return b.Put([]byte(key), value)
	})
	if err == nil {
		return nil
	}
	if isTaxonomy(err) {
		return err
	}
	return fmt.Errorf("%w: create %s %q: %v", types.ErrPersistence, bucket, key, err)
}

// put overwrites a record unconditionally
func (s *Store) put(bucket []byte, key string, record any) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", types.ErrPersistence, key, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: put %s %q: %v", types.ErrPersistence, bucket, key, err)
	}
	return nil
}

// get loads a record by key, failing with NotFound when absent
func (s *Store) get(bucket []byte, key string, out any) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %s %q", types.ErrNotFound, bucket, key)
		}
		return json.Unmarshal(raw, out)
	})
	if err == nil || isTaxonomy(err) {
		return err
	}
	return fmt.Errorf("%w: get %s %q: %v", types.ErrPersistence, bucket, key, err)
}

// isTaxonomy reports whether err already carries a taxonomy sentinel
func isTaxonomy(err error) bool {
	for _, sentinel := range []error{
		types.ErrDuplicateIdentifier, types.ErrNotFound,
		types.ErrInvalidTransition, types.ErrInvalidEvent,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
