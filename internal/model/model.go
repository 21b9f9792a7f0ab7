package model

import (
	"time"

	"github.com/google/uuid"
)

// DeletionLogEntry is one append-only audit row, written exactly once per
// tombstoning event before the memories row is flagged LocalDeleted. Entries
// are never updated or deleted, which is what makes locally-deleted records
// recoverable forever.
type DeletionLogEntry struct {
	ID               uuid.UUID              `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ContentHash      string                 `json:"content_hash" gorm:"not null;column:content_hash"`
	OriginalContent  string                 `json:"original_content" gorm:"column:original_content"`
	OriginalTags     string                 `json:"original_tags" gorm:"column:original_tags"`
	OriginalType     string                 `json:"original_type" gorm:"column:original_type"`
	OriginalMetadata map[string]interface{} `json:"original_metadata" gorm:"type:jsonb;serializer:json;column:original_metadata"`
	Reason           string                 `json:"reason"`
	DeviceName       string                 `json:"device_name" gorm:"column:device_name"`
	CreatedAt        time.Time              `json:"created_at" gorm:"not null;default:now();column:created_at"`
}

// TableName implements gorm.Tabler.
func (DeletionLogEntry) TableName() string { return "deletion_log" }

// GraphEdge is one directed association between two memories, unique per
// (source, target) pair.
type GraphEdge struct {
	SourceHash       string                 `json:"source_hash" gorm:"primaryKey;column:source_hash"`
	TargetHash       string                 `json:"target_hash" gorm:"primaryKey;column:target_hash"`
	Similarity       float64                `json:"similarity"`
	RelationshipType string                 `json:"relationship_type" gorm:"column:relationship_type"`
	Metadata         map[string]interface{} `json:"metadata" gorm:"type:jsonb;serializer:json"`
}

// TableName implements gorm.Tabler.
func (GraphEdge) TableName() string { return "memory_graph" }

// Sync status values. Error states use StatusError + ": <message>".
const (
	StatusNeverSynced = "never_synced"
	StatusSyncing     = "syncing"
	StatusIdle        = "idle"
	StatusError       = "error"
)

// SyncState is the per-device sync bookkeeping row.
type SyncState struct {
	// DeviceName is the primary key.
	DeviceName string `json:"device_name" gorm:"primaryKey;column:device_name"`

	// LastSyncAt is the wall-clock time of the last completed cycle.
	LastSyncAt time.Time `json:"last_sync_at" gorm:"column:last_sync_at"`

	// LastSyncUpdatedAt is the watermark: the maximum change timestamp among
	// records prepared for upsert in any completed cycle. Only moves forward.
	LastSyncUpdatedAt float64 `json:"last_sync_updated_at" gorm:"column:last_sync_updated_at"`

	// MemoriesSynced is the cumulative count of records propagated by this device.
	MemoriesSynced int64 `json:"memories_synced" gorm:"column:memories_synced"`

	// Status is one of the Status* values, or "error: <msg>".
	Status string `json:"status"`
}

// TableName implements gorm.Tabler.
func (SyncState) TableName() string { return "sync_state" }

// CycleStats reports the outcome of one sync cycle.
type CycleStats struct {
	NewMemories   int    `json:"new_memories"`
	DeletedMarked int    `json:"deleted_marked"`
	GraphEdges    int    `json:"graph_edges"`
	Errors        int    `json:"errors"`
	DurationMS    int64  `json:"duration_ms"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// RemoteStats is the aggregate view of the cloud store.
type RemoteStats struct {
	TotalMemories     int64 `json:"total_memories"`
	ActiveMemories    int64 `json:"active_memories"`
	LocallyDeleted    int64 `json:"locally_deleted"`
	Summaries         int64 `json:"summaries"`
	GraphEdges        int64 `json:"graph_edges"`
	DeletionLogEntries int64 `json:"deletion_log_entries"`
}

// SummarizeStats reports the outcome of one summarization run.
type SummarizeStats struct {
	TotalMemories    int  `json:"total_memories"`
	ClustersFound    int  `json:"clusters_found"`
	SummariesCreated int  `json:"summaries_created"`
	MemoriesCovered  int  `json:"memories_covered"`
	DryRun           bool `json:"dry_run"`
}

// RestoreStats reports the outcome of one restore batch.
type RestoreStats struct {
	Total    int `json:"total"`
	Found    int `json:"found,omitempty"`
	Restored int `json:"restored"`
	NotFound int `json:"not_found,omitempty"`
	Failed   int `json:"failed"`
}
