// Package labelcache keeps the last known propagatable labels of every
// Project on disk, so that Namespaces can still be reconciled while the
// upstream cluster is unreachable.
package labelcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cybozu-go/project-propagator/internal/constants"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sqlite limits the number of bound variables of a single statement.
const insertBatchSize = 500

// Cache is a sqlite backed store of Project labels.
// It is safe for concurrent use; conflicting writes are serialized by sqlite
// transactions.
type Cache struct {
	db *gorm.DB
}

// Open opens the cache stored in dataPath, creating the directory, the
// database file and the schema when needed.
func Open(dataPath string) (*Cache, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, &Error{Op: "create data directory", Err: err}
	}

	dsn := filepath.Join(dataPath, constants.CacheFileName) + "?_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, &Error{Op: "open database", Err: err}
	}
	if err := db.AutoMigrate(&ProjectRecord{}, &LabelRecord{}); err != nil {
		return nil, &Error{Op: "schema migration", Err: err}
	}
	return &Cache{db: db}, nil
}

// Close releases the database connections.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return &Error{Op: "close", Err: err}
	}
	if err := sqlDB.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

// Upsert makes the cached labels of project equal to labels.
// Rows that are missing from labels or whose value changed are deleted, then
// the missing ones are inserted; rows that already match are left untouched.
// The whole operation is a single transaction.
func (c *Cache) Upsert(ctx context.Context, project string, labels map[string]string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := ProjectRecord{}
		if err := tx.Where(&ProjectRecord{Name: project}).FirstOrCreate(&rec).Error; err != nil {
			return fmt.Errorf("failed to find or create project: %w", err)
		}

		var current []LabelRecord
		if err := tx.Where("project_id = ?", rec.ID).Find(&current).Error; err != nil {
			return fmt.Errorf("failed to read labels: %w", err)
		}

		var stale []uint
		upToDate := make(map[string]struct{}, len(current))
		for _, l := range current {
			if v, ok := labels[l.Key]; ok && v == l.Value {
				upToDate[l.Key] = struct{}{}
				continue
			}
			stale = append(stale, l.ID)
		}
		if len(stale) != 0 {
			if err := tx.Delete(&LabelRecord{}, stale).Error; err != nil {
				return fmt.Errorf("failed to delete old labels: %w", err)
			}
		}

		var inserts []LabelRecord
		for k, v := range labels {
			if _, ok := upToDate[k]; ok {
				continue
			}
			inserts = append(inserts, LabelRecord{ProjectID: rec.ID, Key: k, Value: v})
		}
		if len(inserts) != 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(inserts, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert labels: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return &Error{Op: "upsert", Project: project, Err: err}
	}
	return nil
}

// Get returns the cached labels of project.
// The boolean is false when the project has never been cached; a cached
// project without labels yields an empty, non-nil map.
func (c *Cache) Get(ctx context.Context, project string) (map[string]string, bool, error) {
	var labels map[string]string
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := ProjectRecord{}
		if err := tx.Where("name = ?", project).First(&rec).Error; err != nil {
			return err
		}

		var records []LabelRecord
		if err := tx.Where("project_id = ?", rec.ID).Find(&records).Error; err != nil {
			return fmt.Errorf("failed to read labels: %w", err)
		}
		labels = make(map[string]string, len(records))
		for _, r := range records {
			labels[r.Key] = r.Value
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &Error{Op: "get", Project: project, Err: err}
	}
	return labels, true, nil
}

// Delete removes project and its labels. Deleting an unknown project is not an error.
func (c *Cache) Delete(ctx context.Context, project string) error {
	if err := c.db.WithContext(ctx).Where("name = ?", project).Delete(&ProjectRecord{}).Error; err != nil {
		return &Error{Op: "delete", Project: project, Err: err}
	}
	return nil
}
