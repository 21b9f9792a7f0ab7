package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Reserved metadata keys. The engine treats metadata as opaque except for these.
const (
	MetaIsSummary      = "is_summary"
	MetaSummarizedFrom = "summarized_from"
	MetaClusterSize    = "cluster_size"
	MetaSource         = "source"
	MetaRestoredFrom   = "restored_from"
)

// Memory is the cloud representation of a single memory record.
// The row is keyed by ContentHash; upsert by hash is the only write path,
// so repeated delivery of the same record is idempotent. Rows are never
// hard-deleted: local deletion is expressed via the LocalDeleted flag plus
// a DeletionLogEntry.
type Memory struct {
	// ContentHash is the stable content-derived identifier, unique across
	// both the local and the cloud store. Immutable once created.
	ContentHash string `json:"content_hash" gorm:"primaryKey;column:content_hash"`

	// Content is the text body.
	Content string `json:"content" gorm:"not null"`

	// Tags is a comma-joined list of labels.
	Tags string `json:"tags"`

	// MemoryType is a free-form category tag (e.g. "note", "pattern").
	MemoryType string `json:"memory_type" gorm:"column:memory_type"`

	// Metadata is an open key/value map, opaque except for the Meta* keys.
	Metadata map[string]interface{} `json:"metadata" gorm:"type:jsonb;serializer:json"`

	// CreatedAt and UpdatedAt are epoch seconds from the originating device
	// clock. UpdatedAt may be absent; CreatedAt substitutes for change
	// detection (see ChangedAt).
	CreatedAt *float64 `json:"created_at" gorm:"column:created_at"`
	UpdatedAt *float64 `json:"updated_at" gorm:"column:updated_at"`

	// SourceDevice is the device that last wrote this row.
	SourceDevice string `json:"source_device" gorm:"column:source_device"`

	// SyncedAt is when the row was last written by a sync cycle.
	SyncedAt time.Time `json:"synced_at" gorm:"column:synced_at"`

	// LocalDeleted marks the row as deleted on the originating device.
	// The cloud row itself is retained forever.
	LocalDeleted bool `json:"local_deleted" gorm:"column:local_deleted"`

	// IsSummary marks machine-generated summary records.
	IsSummary bool `json:"is_summary" gorm:"column:is_summary"`

	// SummarizedFrom lists the source content hashes of a summary record.
	// Empty on ordinary records.
	SummarizedFrom []string `json:"summarized_from,omitempty" gorm:"type:jsonb;serializer:json;column:summarized_from"`

	// Embedding is the optional fixed-length vector for this record.
	Embedding *pgvector.Vector `json:"-" gorm:"type:vector;column:embedding"`
}

// TableName implements gorm.Tabler.
func (Memory) TableName() string { return "memories" }

// ChangedAt returns the change-detection timestamp: UpdatedAt when present,
// otherwise CreatedAt, otherwise 0.
func (m *Memory) ChangedAt() float64 {
	if m.UpdatedAt != nil {
		return *m.UpdatedAt
	}
	if m.CreatedAt != nil {
		return *m.CreatedAt
	}
	return 0
}

// LocalMemory is one row of the local store's memories table, plus the
// decoded embedding when the side table has one.
type LocalMemory struct {
	ContentHash string                 `gorm:"column:content_hash"`
	Content     string                 `gorm:"column:content"`
	Tags        string                 `gorm:"column:tags"`
	MemoryType  string                 `gorm:"column:memory_type"`
	Metadata    map[string]interface{} `gorm:"-"`
	CreatedAt   *float64               `gorm:"column:created_at"`
	UpdatedAt   *float64               `gorm:"column:updated_at"`

	// DeletedAt is the local tombstone timestamp. A non-nil value routes the
	// record to tombstone propagation instead of upsert.
	DeletedAt *float64 `gorm:"column:deleted_at"`

	// Embedding is populated from the sqlite-vec side table, when present.
	Embedding []float32 `gorm:"-"`
}

// ChangedAt returns UpdatedAt when present, otherwise CreatedAt, otherwise 0.
func (m *LocalMemory) ChangedAt() float64 {
	if m.UpdatedAt != nil {
		return *m.UpdatedAt
	}
	if m.CreatedAt != nil {
		return *m.CreatedAt
	}
	return 0
}

// Deleted reports whether the record carries a local tombstone.
func (m *LocalMemory) Deleted() bool { return m.DeletedAt != nil }
