package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/model"
	registrymigrate "github.com/chirino/memory-cloud/internal/registry/migrate"
	registryremote "github.com/chirino/memory-cloud/internal/registry/remote"
)

//go:embed db/schema.sql
var schemaSQL string

func init() {
	registryremote.Register(registryremote.Plugin{
		Name:   "postgres",
		Loader: load,
	})
	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &postgresMigrator{}})
}

type postgresMigrator struct{}

func (m *postgresMigrator) Name() string { return "postgres-schema" }
func (m *postgresMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.IsConfigured() || cfg.RemoteType != "postgres" {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	defer closeDB(db)
	return db.WithContext(ctx).Exec(schemaSQL).Error
}

func load(ctx context.Context) (registryremote.Gateway, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("postgres: missing config in context")
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &PostgresGateway{db: db, device: cfg.DeviceName}, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	dsn, err := cfg.RemoteDSN()
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SchemaMissing reports whether the error is Postgres "undefined table",
// meaning the schema has not been installed yet.
func SchemaMissing(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// PostgresGateway implements the cloud Gateway on Postgres + pgvector.
type PostgresGateway struct {
	db     *gorm.DB
	device string
}

// Close releases the connection pool.
func (g *PostgresGateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// stamp fills the cloud-only write fields. Every upsert records this device
// as the last writer and clears the deletion flag: re-adding a record on any
// device revives it.
func (g *PostgresGateway) stamp(m model.Memory) model.Memory {
	m.SourceDevice = g.device
	m.SyncedAt = time.Now().UTC()
	m.LocalDeleted = false
	return m
}

func (g *PostgresGateway) upsertRows(ctx context.Context, rows []model.Memory) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func (g *PostgresGateway) Upsert(ctx context.Context, m model.Memory) bool {
	if err := g.upsertRows(ctx, []model.Memory{g.stamp(m)}); err != nil {
		log.Error("Failed to upsert memory", "hash", shortHash(m.ContentHash), "err", err)
		return false
	}
	return true
}

func (g *PostgresGateway) UpsertBatch(ctx context.Context, memories []model.Memory) (int, int) {
	rows := make([]model.Memory, len(memories))
	for i, m := range memories {
		rows[i] = g.stamp(m)
	}
	return registryremote.UpsertInChunks(ctx, rows, registryremote.BatchChunkSize,
		func(ctx context.Context, chunk []model.Memory) error {
			if err := g.upsertRows(ctx, chunk); err != nil {
				log.Error("Batch upsert failed, retrying rows individually", "rows", len(chunk), "err", err)
				return err
			}
			return nil
		},
		func(ctx context.Context, m model.Memory) error {
			if err := g.upsertRows(ctx, []model.Memory{m}); err != nil {
				log.Error("Individual upsert failed", "hash", shortHash(m.ContentHash), "err", err)
				return err
			}
			return nil
		},
	)
}

func (g *PostgresGateway) MarkDeleted(ctx context.Context, contentHash, reason string) bool {
	var original model.Memory
	err := g.db.WithContext(ctx).
		Where("content_hash = ?", contentHash).
		First(&original).Error
	switch {
	case err == nil:
		// Preserve the pre-deletion payload before flagging the row.
		entry := model.DeletionLogEntry{
			ID:               uuid.New(),
			ContentHash:      contentHash,
			OriginalContent:  original.Content,
			OriginalTags:     original.Tags,
			OriginalType:     original.MemoryType,
			OriginalMetadata: original.Metadata,
			Reason:           reason,
			DeviceName:       g.device,
			CreatedAt:        time.Now().UTC(),
		}
		if err := g.db.WithContext(ctx).Create(&entry).Error; err != nil {
			log.Error("Failed to append deletion log entry", "hash", shortHash(contentHash), "err", err)
			return false
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Row never reached the cloud; nothing to preserve.
	default:
		log.Error("Failed to read memory before deletion mark", "hash", shortHash(contentHash), "err", err)
		return false
	}

	err = g.db.WithContext(ctx).Model(&model.Memory{}).
		Where("content_hash = ?", contentHash).
		Update("local_deleted", true).Error
	if err != nil {
		log.Error("Failed to mark memory deleted", "hash", shortHash(contentHash), "err", err)
		return false
	}
	return true
}

func (g *PostgresGateway) SearchByVector(ctx context.Context, embedding []float32, limit int, includeDeleted bool) []model.Memory {
	return registryremote.RankedSearch(
		func() ([]model.Memory, error) {
			var results []model.Memory
			err := g.db.WithContext(ctx).
				Raw("SELECT * FROM search_memories(?::vector, ?, ?)",
					pgvector.NewVector(embedding), limit, includeDeleted).
				Scan(&results).Error
			return results, err
		},
		func(err error) []model.Memory {
			log.Error("Vector search failed, falling back to text search", "err", err)
			return g.SearchByText(ctx, vectorPreview(embedding), limit, includeDeleted)
		})
}

func (g *PostgresGateway) SearchByText(ctx context.Context, query string, limit int, includeDeleted bool) []model.Memory {
	q := g.db.WithContext(ctx).Where("content ILIKE ?", "%"+query+"%")
	if !includeDeleted {
		q = q.Where("local_deleted = ?", false)
	}
	var results []model.Memory
	if err := q.Order("created_at DESC").Limit(limit).Find(&results).Error; err != nil {
		log.Error("Text search failed", "err", err)
		return nil
	}
	return results
}

func (g *PostgresGateway) GetAll(ctx context.Context, includeDeleted bool) []model.Memory {
	return registryremote.ScanPages(ctx, registryremote.PageSize,
		func(ctx context.Context, offset, limit int) ([]model.Memory, error) {
			q := g.db.WithContext(ctx).Model(&model.Memory{})
			if !includeDeleted {
				q = q.Where("local_deleted = ?", false)
			}
			var page []model.Memory
			err := q.Order("created_at ASC").
				Offset(offset).Limit(limit).
				Find(&page).Error
			if err != nil {
				log.Error("Failed to fetch memories", "offset", offset, "err", err)
			}
			return page, err
		})
}

func (g *PostgresGateway) GetByHashes(ctx context.Context, hashes []string) []model.Memory {
	var results []model.Memory
	err := g.db.WithContext(ctx).
		Where("content_hash IN ?", hashes).
		Find(&results).Error
	if err != nil {
		log.Error("Failed to fetch memories by hash", "err", err)
		return nil
	}
	return results
}

func (g *PostgresGateway) GetDeleted(ctx context.Context) []model.Memory {
	var results []model.Memory
	err := g.db.WithContext(ctx).
		Where("local_deleted = ?", true).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		log.Error("Failed to fetch deleted memories", "err", err)
		return nil
	}
	return results
}

func (g *PostgresGateway) UpsertEdge(ctx context.Context, e model.GraphEdge) bool {
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_hash"}, {Name: "target_hash"}},
		UpdateAll: true,
	}).Create(&e).Error
	if err != nil {
		log.Error("Failed to upsert graph edge", "source", shortHash(e.SourceHash), "err", err)
		return false
	}
	return true
}

func (g *PostgresGateway) GetSyncState(ctx context.Context, deviceName string) model.SyncState {
	var state model.SyncState
	err := g.db.WithContext(ctx).
		Where("device_name = ?", deviceName).
		First(&state).Error
	switch {
	case err == nil:
		return state
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.SyncState{DeviceName: deviceName, Status: model.StatusNeverSynced}
	default:
		log.Error("Failed to get sync state", "device", deviceName, "err", err)
		return model.SyncState{DeviceName: deviceName, Status: model.StatusError}
	}
}

func (g *PostgresGateway) SetSyncState(ctx context.Context, state model.SyncState) bool {
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_name"}},
		UpdateAll: true,
	}).Create(&state).Error
	if err != nil {
		log.Error("Failed to update sync state", "device", state.DeviceName, "err", err)
		return false
	}
	return true
}

func (g *PostgresGateway) GetStats(ctx context.Context) (model.RemoteStats, error) {
	var stats model.RemoteStats
	db := g.db.WithContext(ctx)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalMemories, db.Model(&model.Memory{})},
		{&stats.ActiveMemories, db.Model(&model.Memory{}).Where("local_deleted = ?", false)},
		{&stats.LocallyDeleted, db.Model(&model.Memory{}).Where("local_deleted = ?", true)},
		{&stats.Summaries, db.Model(&model.Memory{}).Where("is_summary = ?", true)},
		{&stats.GraphEdges, db.Model(&model.GraphEdge{})},
		{&stats.DeletionLogEntries, db.Model(&model.DeletionLogEntry{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return model.RemoteStats{}, err
		}
	}
	return stats, nil
}

// vectorPreview renders the leading components of an embedding as a text
// query for the fallback search path.
func vectorPreview(embedding []float32) string {
	n := min(5, len(embedding))
	return fmt.Sprintf("%v", embedding[:n])
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
