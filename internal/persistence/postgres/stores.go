package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/persistence"
	"gorm.io/gorm"
)

// EventStore is a GORM-backed persistence.EventStore.
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore { return &EventStore{db: db} }

// Migrate creates the event_store table if it does not exist.
func (s *EventStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&EventRow{})
}

func (s *EventStore) Append(ctx context.Context, ev domain.Event) error {
	row, err := toEventRow(ev)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *EventStore) LoadByKey(ctx context.Context, key domain.PositionKey) ([]domain.Event, error) {
	var rows []EventRow
	err := s.db.WithContext(ctx).
		Where("position_key = ?", string(key)).
		Order("effective_date asc, event_version asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *EventStore) LatestVersion(ctx context.Context, key domain.PositionKey) (int64, error) {
	var max int64
	err := s.db.WithContext(ctx).Model(&EventRow{}).
		Where("position_key = ?", string(key)).
		Select("COALESCE(MAX(event_version), 0)").
		Scan(&max).Error
	return max, err
}

// SnapshotStore is a GORM-backed persistence.SnapshotStore using
// optimistic locking on opt_lock_version (spec.md §5, §6).
type SnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore { return &SnapshotStore{db: db} }

func (s *SnapshotStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&SnapshotRow{})
}

func (s *SnapshotStore) Load(ctx context.Context, key domain.PositionKey) (*domain.Snapshot, error) {
	var row SnapshotRow
	err := s.db.WithContext(ctx).Where("position_key = ?", string(key)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Save upserts snap, enforcing expectedOptLockVersion. A first-time insert
// requires expectedOptLockVersion == 0.
func (s *SnapshotStore) Save(ctx context.Context, snap *domain.Snapshot, expectedOptLockVersion int64) error {
	row, err := toSnapshotRow(snap)
	if err != nil {
		return err
	}
	row.OptLockVersion = expectedOptLockVersion + 1
	row.LastUpdatedAt = time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedOptLockVersion == 0 {
			var count int64
			if err := tx.Model(&SnapshotRow{}).Where("position_key = ?", row.PositionKey).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return persistence.ErrVersionConflict
			}
			return tx.Create(&row).Error
		}
		// Select("*") forces every column to be written, including ones
		// holding their Go zero value (e.g. a cleared ProvisionalTradeID) —
		// plain Updates(&row) silently skips zero-value fields.
		result := tx.Model(&SnapshotRow{}).
			Where("position_key = ? AND opt_lock_version = ?", row.PositionKey, expectedOptLockVersion).
			Select("*").
			Updates(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return persistence.ErrVersionConflict
		}
		return nil
	})
}

// UPIStore is a GORM-backed persistence.UPIStore.
type UPIStore struct {
	db *gorm.DB
}

func NewUPIStore(db *gorm.DB) *UPIStore { return &UPIStore{db: db} }

func (s *UPIStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&UPIRow{})
}

func (s *UPIStore) AppendGeneration(ctx context.Context, rec domain.UPIRecord) error {
	row := toUPIRow(rec)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *UPIStore) TerminateCurrent(ctx context.Context, key domain.PositionKey, terminatedAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&UPIRow{}).
		Where("position_key = ? AND terminated_at IS NULL", string(key)).
		Update("terminated_at", terminatedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("persistence/postgres: no active UPI generation for " + string(key))
	}
	return nil
}

func (s *UPIStore) History(ctx context.Context, key domain.PositionKey) ([]domain.UPIRecord, error) {
	var rows []UPIRow
	err := s.db.WithContext(ctx).Where("position_key = ?", string(key)).Order("generation asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	recs := make([]domain.UPIRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toDomain())
	}
	return recs, nil
}
