// Package postgres implements idempotency.Store against the
// idempotency_store table (spec.md §6) using GORM, mirroring the teacher's
// preference for a single well-typed persistence client over hand-rolled
// SQL strings.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Row is the GORM model for idempotency_store.
type Row struct {
	TradeID      string `gorm:"primaryKey;column:trade_id"`
	PositionKey  string `gorm:"column:position_key;index"`
	EventVersion int64  `gorm:"column:event_version"`
	ProcessedAt  time.Time
}

func (Row) TableName() string { return "idempotency_store" }

// Store is a GORM-backed idempotency.Store.
type Store struct {
	db *gorm.DB
}

// New wraps db. Migrate must be called once to create the backing table.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the idempotency_store table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Row{})
}

func (s *Store) IsProcessed(ctx context.Context, tradeID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Row{}).Where("trade_id = ?", tradeID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Mark inserts a row keyed on trade_id. A unique-constraint violation on a
// concurrent duplicate insert is treated as alreadyProcessed=true rather
// than surfaced as an error (spec.md §4.2).
func (s *Store) Mark(ctx context.Context, tradeID string, positionKey domain.PositionKey, eventVersion int64) (bool, error) {
	row := Row{
		TradeID:      tradeID,
		PositionKey:  string(positionKey),
		EventVersion: eventVersion,
		ProcessedAt:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return false, nil
	}
	if isUniqueViolation(err) {
		return true, nil
	}
	return false, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Without gorm.Config.TranslateError the driver's error comes through
	// untranslated; 23505 is Postgres's unique_violation code.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
