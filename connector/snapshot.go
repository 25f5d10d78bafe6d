package connector

import (
	"time"

	"github.com/yairfalse/vahti/types"
)

// Snapshot is a read-only capture of a target database's governance
// relevant state. Exactly one of the per-family sections is set,
// matching the connection's db type. Evaluators consume snapshots
// only, never live handles.
type Snapshot struct {
	Connection  string                 `json:"connection"`
	DBType      types.DBType           `json:"db_type"`
	TakenAt     time.Time              `json:"taken_at"`
	Document    *DocumentStoreSnapshot `json:"document,omitempty"`
	Relational  *RelationalSnapshot    `json:"relational,omitempty"`
	KeyValue    *KeyValueSnapshot      `json:"key_value,omitempty"`
	WideColumn  *WideColumnSnapshot    `json:"wide_column,omitempty"`
	ObjectStore *ObjectStoreSnapshot   `json:"object_store,omitempty"`
}

// CollectionInfo describes one document-store collection
type CollectionInfo struct {
	Name          string  `json:"name"`
	HasValidator  bool    `json:"has_validator"`
	IndexCount    int     `json:"index_count"`
	DocumentCount int64   `json:"document_count"`
	AvgFieldCount float64 `json:"avg_field_count"`
	Sampled       bool    `json:"sampled"`
}

// DocumentStoreSnapshot covers mongodb-family targets
type DocumentStoreSnapshot struct {
	Collections []CollectionInfo `json:"collections"`
}

// TableInfo describes one relational table
type TableInfo struct {
	Name            string `json:"name"`
	ForeignKeyCount int    `json:"foreign_key_count"`
	// NullsInNotNull counts NULL values found in NOT NULL columns,
	// sampled across a bounded set of columns
	NullsInNotNull int64 `json:"nulls_in_not_null"`
	NullsSampled   bool  `json:"nulls_sampled"`
}

// RelationalSnapshot covers postgresql-family targets
type RelationalSnapshot struct {
	Tables []TableInfo `json:"tables"`
}

// KeyValueSnapshot covers redis-family targets
type KeyValueSnapshot struct {
	UsedMemoryBytes int64 `json:"used_memory_bytes"`
	HasMemoryInfo   bool  `json:"has_memory_info"`
	KeyCount        int64 `json:"key_count"`
	SampledKeys     int   `json:"sampled_keys"`
	KeysWithoutTTL  int   `json:"keys_without_ttl"`
}

// ContainerInfo describes one wide-column container
type ContainerInfo struct {
	Name              string `json:"name"`
	HasIndexingPolicy bool   `json:"has_indexing_policy"`
	HasDefaultTTL     bool   `json:"has_default_ttl"`
	DefaultTTLSeconds int32  `json:"default_ttl_seconds,omitempty"`
}

// WideColumnSnapshot covers cosmos-family targets
type WideColumnSnapshot struct {
	Containers []ContainerInfo `json:"containers"`
}

// ObjectStoreSnapshot covers blob/object-storage targets
type ObjectStoreSnapshot struct {
	Bucket             string    `json:"bucket"`
	VersioningEnabled  bool      `json:"versioning_enabled"`
	SampledObjects     int       `json:"sampled_objects"`
	EmptyObjects       int       `json:"empty_objects"`
	NewestModification time.Time `json:"newest_modification,omitempty"`
}
