// Package localstore reads the local memory store's SQLite database.
// The database is always opened read-only: the sync engine observes local
// state but never writes it. Writes flow the other way, through the external
// ingestion tool used by restore.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/charmbracelet/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chirino/memory-cloud/internal/model"
)

var vecOnce sync.Once

// Store is a read-only handle on the local SQLite database. A Store is
// opened per sync cycle and closed before the cycle returns.
type Store struct {
	db *gorm.DB
}

// Open opens the local database in read-only mode. The sqlite-vec extension
// is auto-registered once per process so the memory_embeddings virtual table
// is readable.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("local database not found: %s", path)
	}
	vecOnce.Do(sqlite_vec.Auto)

	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MemoriesChangedSince returns all records whose change timestamp is strictly
// greater than the watermark, ordered ascending by change timestamp. The
// ascending order is what keeps watermark advancement safe under a crash
// mid-cycle: any un-propagated tail is re-read next cycle.
func (s *Store) MemoriesChangedSince(ctx context.Context, since float64) ([]model.LocalMemory, error) {
	rows, err := s.db.WithContext(ctx).Raw(`
		SELECT content_hash, content, tags, memory_type, metadata,
		       created_at, updated_at, deleted_at
		FROM memories
		WHERE updated_at > ? OR (updated_at IS NULL AND created_at > ?)
		ORDER BY COALESCE(updated_at, created_at) ASC`,
		since, since,
	).Rows()
	if err != nil {
		return nil, fmt.Errorf("query changed memories: %w", err)
	}
	defer rows.Close()

	var memories []model.LocalMemory
	for rows.Next() {
		var m model.LocalMemory
		var tags, memoryType, metadata *string
		if err := rows.Scan(&m.ContentHash, &m.Content, &tags, &memoryType,
			&metadata, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if tags != nil {
			m.Tags = *tags
		}
		if memoryType != nil {
			m.MemoryType = *memoryType
		}
		m.Metadata = parseMetadata(metadata)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// EmbeddingsByHash fetches decoded embeddings for the given hashes from the
// sqlite-vec virtual table. Hashes without an embedding are simply absent
// from the result; per-hash failures are tolerated because the side table
// may not exist or may have a different schema.
func (s *Store) EmbeddingsByHash(ctx context.Context, hashes []string) map[string][]float32 {
	embeddings := make(map[string][]float32, len(hashes))
	for _, hash := range hashes {
		var rowid int64
		err := s.db.WithContext(ctx).
			Raw("SELECT rowid FROM memories WHERE content_hash = ?", hash).
			Scan(&rowid).Error
		if err != nil {
			log.Debug("No rowid for memory", "hash", shortHash(hash), "err", err)
			continue
		}

		var blob []byte
		err = s.db.WithContext(ctx).
			Raw("SELECT embedding FROM memory_embeddings WHERE rowid = ?", rowid).
			Scan(&blob).Error
		if err != nil {
			log.Debug("Could not read embedding", "hash", shortHash(hash), "err", err)
			continue
		}
		if vec := DecodeEmbedding(blob); vec != nil {
			embeddings[hash] = vec
		}
	}
	return embeddings
}

// DeletedHashes returns the content hashes of all locally-tombstoned records.
// Errors yield an empty result; an older local schema may lack the column.
func (s *Store) DeletedHashes(ctx context.Context) []string {
	var hashes []string
	err := s.db.WithContext(ctx).
		Raw("SELECT content_hash FROM memories WHERE deleted_at IS NOT NULL").
		Scan(&hashes).Error
	if err != nil {
		log.Debug("Deleted hash scan skipped", "err", err)
		return nil
	}
	return hashes
}

// GraphEdges reads the full local association table. The table is optional;
// absence yields an empty result.
func (s *Store) GraphEdges(ctx context.Context) []model.GraphEdge {
	rows, err := s.db.WithContext(ctx).Raw(`
		SELECT source_hash, target_hash, similarity, relationship_type, metadata
		FROM memory_graph`).Rows()
	if err != nil {
		log.Debug("Graph read skipped", "err", err)
		return nil
	}
	defer rows.Close()

	var edges []model.GraphEdge
	for rows.Next() {
		var e model.GraphEdge
		var similarity *float64
		var relType, metadata *string
		if err := rows.Scan(&e.SourceHash, &e.TargetHash, &similarity, &relType, &metadata); err != nil {
			log.Debug("Graph row scan skipped", "err", err)
			continue
		}
		if similarity != nil {
			e.Similarity = *similarity
		}
		e.RelationshipType = "semantic"
		if relType != nil && *relType != "" {
			e.RelationshipType = *relType
		}
		e.Metadata = parseMetadata(metadata)
		edges = append(edges, e)
	}
	return edges
}

// ActiveCount returns the number of non-tombstoned local records.
func (s *Store) ActiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL").
		Scan(&count).Error
	return count, err
}

// parseMetadata decodes a metadata JSON column leniently: NULL, empty, or
// malformed JSON all become an empty map.
func parseMetadata(raw *string) map[string]interface{} {
	if raw == nil || *raw == "" {
		return map[string]interface{}{}
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(*raw), &meta); err != nil || meta == nil {
		return map[string]interface{}{}
	}
	return meta
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
