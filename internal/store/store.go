package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	lock.Repository

	ListLocks(ctx context.Context) ([]model.Lock, error)
	RecordNotification(ctx context.Context, rec *model.NotificationRecord) error
	ListHistory(ctx context.Context, lockID string, limit int) ([]model.NotificationRecord, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription, lockIDs []string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForLock(ctx context.Context, lockID string) ([]model.PushSubscription, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// UpsertLock creates the lock row or renames it. An empty name keeps the stored one.
func (s *gormStore) UpsertLock(ctx context.Context, lockID, name string) error {
	row := model.Lock{ID: lockID, Name: name}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}
	if name == "" {
		row.Name = lockID
		onConflict = clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	}
	if err := s.db.WithContext(ctx).Clauses(onConflict).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert lock %s failed: %w", lockID, err)
	}
	return nil
}

// DeleteLock removes the lock, its cached state and its subscription mappings. History is kept.
func (s *gormStore) DeleteLock(ctx context.Context, lockID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lock_id = ?", lockID).Delete(&model.LockSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to delete cached state for lock %s: %w", lockID, err)
		}
		if err := tx.Exec("DELETE FROM subscription_lock_mapping WHERE lock_id = ?", lockID).Error; err != nil {
			return fmt.Errorf("failed to delete subscriptions for lock %s: %w", lockID, err)
		}
		if err := tx.Delete(&model.Lock{ID: lockID}).Error; err != nil {
			return fmt.Errorf("failed to delete lock %s: %w", lockID, err)
		}
		return nil
	})
}

// SaveState writes the snapshot and ledger of a lock, replacing the previous row.
func (s *gormStore) SaveState(ctx context.Context, lockID string, snap lock.Snapshot, l lock.Ledger) error {
	row := snapshotRow(lockID, snap, l)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// LoadState reads the cached snapshot and ledger. found is false when nothing was cached yet.
func (s *gormStore) LoadState(ctx context.Context, lockID string) (lock.Snapshot, lock.Ledger, bool, error) {
	var row model.LockSnapshot
	err := s.db.WithContext(ctx).Where("lock_id = ?", lockID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lock.Snapshot{}, nil, false, nil
	}
	if err != nil {
		return lock.Snapshot{}, nil, false, fmt.Errorf("failed to load state for lock %s: %w", lockID, err)
	}
	snap, ledger := SnapshotFromRow(row)
	return snap, ledger, true, nil
}

// ListLocks returns all managed locks with their cached state.
func (s *gormStore) ListLocks(ctx context.Context) ([]model.Lock, error) {
	var locks []model.Lock
	if err := s.db.WithContext(ctx).Preload("Snapshot").Order("id").Find(&locks).Error; err != nil {
		return nil, err
	}
	return locks, nil
}

// RecordNotification appends a history entry, assigning an id when missing.
func (s *gormStore) RecordNotification(ctx context.Context, rec *model.NotificationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// ListHistory returns the newest notifications of a lock first.
func (s *gormStore) ListHistory(ctx context.Context, lockID string, limit int) ([]model.NotificationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var records []model.NotificationRecord
	err := s.db.WithContext(ctx).
		Where("lock_id = ?", lockID).
		Order("emitted_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveSubscription creates or replaces a subscription and the set of locks it follows.
// Unknown lock ids are ignored.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription, lockIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var locks []*model.Lock
		if len(lockIDs) > 0 {
			if err := tx.Where("id IN ?", lockIDs).Find(&locks).Error; err != nil {
				return err
			}
		}

		return tx.Model(sub).Association("Locks").Replace(&locks)
	})
}

// GetSubscription returns a subscription with the locks it follows.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Locks").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription and its mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Select(clause.Associations).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

// SubscriptionsForLock returns every subscription following the lock.
func (s *gormStore) SubscriptionsForLock(ctx context.Context, lockID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_lock_mapping slm ON slm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("slm.lock_id = ?", lockID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}
