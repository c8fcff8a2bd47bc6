// Package postgres implements EventStore, SnapshotStore, and UPIStore
// against Postgres using GORM, grounded on the sibling example
// ChoSanghyuk-blackholedex's internal/db/transaction_recorder.go
// (GORM model + AutoMigrate + TableName() pattern), retargeted from MySQL
// to Postgres per the pack's majority Postgres/pgx usage.
package postgres

import (
	"encoding/json"
	"time"

	"github.com/chidi150c/posengine/internal/domain"
)

// EventRow is the GORM model for event_store (spec.md §6).
type EventRow struct {
	PositionKey   string    `gorm:"primaryKey;column:position_key;index:idx_event_replay,priority:1"`
	EventVersion  int64     `gorm:"primaryKey;column:event_version;index:idx_event_replay,priority:3"`
	EventType     string    `gorm:"column:event_type"`
	EffectiveDate time.Time `gorm:"index:idx_event_replay,priority:2"`
	OccurredAt    time.Time
	PayloadJSON   string `gorm:"column:payload_json"`
	MetaLotsJSON  string `gorm:"column:meta_lots_json"`
	CorrelationID string
	CausationID   string
	ContractID    string
	UserID        string
}

func (EventRow) TableName() string { return "event_store" }

func toEventRow(ev domain.Event) (EventRow, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return EventRow{}, err
	}
	meta, err := json.Marshal(ev.MetaLots)
	if err != nil {
		return EventRow{}, err
	}
	return EventRow{
		PositionKey:   string(ev.PositionKey),
		EventVersion:  ev.Version,
		EventType:     string(ev.Type),
		EffectiveDate: ev.EffectiveDate,
		OccurredAt:    ev.OccurredAt,
		PayloadJSON:   string(payload),
		MetaLotsJSON:  string(meta),
		CorrelationID: ev.CorrelationID,
		CausationID:   ev.CausationID,
		ContractID:    ev.ContractID,
		UserID:        ev.UserID,
	}, nil
}

func (r EventRow) toDomain() (domain.Event, error) {
	var payload domain.Trade
	if err := json.Unmarshal([]byte(r.PayloadJSON), &payload); err != nil {
		return domain.Event{}, err
	}
	var meta domain.AllocationResult
	if err := json.Unmarshal([]byte(r.MetaLotsJSON), &meta); err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		PositionKey:   domain.PositionKey(r.PositionKey),
		Version:       r.EventVersion,
		Type:          domain.EventType(r.EventType),
		EffectiveDate: r.EffectiveDate,
		OccurredAt:    r.OccurredAt,
		Payload:       payload,
		MetaLots:      meta,
		CorrelationID: r.CorrelationID,
		CausationID:   r.CausationID,
		ContractID:    r.ContractID,
		UserID:        r.UserID,
	}, nil
}

// SnapshotRow is the GORM model for snapshot_store (spec.md §6).
type SnapshotRow struct {
	PositionKey             string `gorm:"primaryKey;column:position_key"`
	LastVersion             int64
	UPI                     string
	Status                  string
	ReconciliationStatus    string
	ProvisionalTradeID      string
	CompressedLotsJSON      string `gorm:"column:compressed_lots_json"`
	SummaryMetricsJSON      string `gorm:"column:summary_metrics_json"`
	PriceQuantityScheduleJSON string `gorm:"column:price_quantity_schedule_json"`
	OptLockVersion          int64
	LastUpdatedAt           time.Time
	ArchivalFlag            bool
	ArchivedAt              *time.Time
	Account                 string `gorm:"index"`
	Instrument              string `gorm:"index"`
	Currency                string
	Direction               string
	ContractID              string `gorm:"index"`
}

func (SnapshotRow) TableName() string { return "snapshot_store" }

func toSnapshotRow(s *domain.Snapshot) (SnapshotRow, error) {
	lots, err := json.Marshal(s.Lots)
	if err != nil {
		return SnapshotRow{}, err
	}
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return SnapshotRow{}, err
	}
	schedule, err := json.Marshal(s.Schedule)
	if err != nil {
		return SnapshotRow{}, err
	}
	return SnapshotRow{
		PositionKey:               string(s.PositionKey),
		LastVersion:               s.LastVersion,
		UPI:                       s.UPI,
		Status:                    string(s.Status),
		ReconciliationStatus:      string(s.ReconciliationStatus),
		ProvisionalTradeID:        s.ProvisionalTradeID,
		CompressedLotsJSON:        string(lots),
		SummaryMetricsJSON:        string(summary),
		PriceQuantityScheduleJSON: string(schedule),
		OptLockVersion:            s.OptLockVersion,
		LastUpdatedAt:             s.LastUpdatedAt,
		ArchivalFlag:              s.ArchivalFlag,
		ArchivedAt:                s.ArchivedAt,
		Account:                   s.Account,
		Instrument:                s.Instrument,
		Currency:                  s.Currency,
		Direction:                 string(s.Direction),
		ContractID:                s.ContractID,
	}, nil
}

func (r SnapshotRow) toDomain() (*domain.Snapshot, error) {
	var lots domain.CompressedLots
	if err := json.Unmarshal([]byte(r.CompressedLotsJSON), &lots); err != nil {
		return nil, err
	}
	var summary domain.SummaryMetrics
	if err := json.Unmarshal([]byte(r.SummaryMetricsJSON), &summary); err != nil {
		return nil, err
	}
	var schedule domain.Schedule
	if r.PriceQuantityScheduleJSON != "" {
		if err := json.Unmarshal([]byte(r.PriceQuantityScheduleJSON), &schedule); err != nil {
			return nil, err
		}
	}
	return &domain.Snapshot{
		PositionKey:          domain.PositionKey(r.PositionKey),
		LastVersion:          r.LastVersion,
		UPI:                  r.UPI,
		Status:               domain.Status(r.Status),
		ReconciliationStatus: domain.ReconciliationStatus(r.ReconciliationStatus),
		ProvisionalTradeID:   r.ProvisionalTradeID,
		Lots:                 lots,
		Summary:              summary,
		Schedule:             schedule,
		OptLockVersion:       r.OptLockVersion,
		LastUpdatedAt:        r.LastUpdatedAt,
		ArchivalFlag:         r.ArchivalFlag,
		ArchivedAt:           r.ArchivedAt,
		Account:              r.Account,
		Instrument:           r.Instrument,
		Currency:             r.Currency,
		Direction:            domain.Direction(r.Direction),
		ContractID:           r.ContractID,
	}, nil
}

// UPIRow is the GORM model for upi_history (spec.md §6).
type UPIRow struct {
	PositionKey  string `gorm:"primaryKey;column:position_key"`
	Generation   int    `gorm:"primaryKey"`
	UPI          string
	CreatedAt    time.Time
	TerminatedAt *time.Time
}

func (UPIRow) TableName() string { return "upi_history" }

func toUPIRow(rec domain.UPIRecord) UPIRow {
	return UPIRow{
		PositionKey:  string(rec.PositionKey),
		Generation:   rec.Generation,
		UPI:          rec.UPI,
		CreatedAt:    rec.CreatedAt,
		TerminatedAt: rec.TerminatedAt,
	}
}

func (r UPIRow) toDomain() domain.UPIRecord {
	return domain.UPIRecord{
		PositionKey:  domain.PositionKey(r.PositionKey),
		Generation:   r.Generation,
		UPI:          r.UPI,
		CreatedAt:    r.CreatedAt,
		TerminatedAt: r.TerminatedAt,
	}
}
