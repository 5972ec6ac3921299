// exposes a Store interface that is passed to API calls w/ param requirements
package db

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reeflab/reefdb/internal/model"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientProduct = errors.New("not enough available product")
)

type Store interface {
	// products & dosers
	GetProductByID(id int) (model.Product, error)
	RefillProduct(productID int, amount *float64, now time.Time) (model.Product, error)
	GetDoserByID(id int) (model.Doser, error)

	// schedules
	GetScheduleByID(id int) (model.Schedule, error)
	ListActiveSchedules() ([]model.ActiveSchedule, error)
	SetLastScheduledTime(scheduleID int, t time.Time) error

	// dose events
	TriggerDose(scheduleID, tankID int, now time.Time) (model.DoseEvent, error)
	LastDoseTime(scheduleID int) (*time.Time, error)
	SetDoseConfirmedAmount(doseID int, amount float64) error

	// missed dose requests
	PendingMissedDoseExists(scheduleID int, missedTime time.Time) (bool, error)
	CreateMissedDoseRequest(scheduleID int, missedTime time.Time, hoursMissed float64) (model.MissedDoseRequest, error)
	ListPendingMissedDoses(tankID *int) ([]model.MissedDoseRequest, error)
	GetMissedDoseRequest(id int) (model.MissedDoseRequest, error)
	ResolveMissedDoseRequest(id int, status model.MissedDoseStatus, decidedBy, notes string, now time.Time) error
	ExpirePendingMissedDoses(cutoff time.Time) (int, error)
	DeleteDecidedMissedDoses(cutoff time.Time) (int, error)

	// audit
	InsertAuditEntry(e model.AuditEntry) error
	ListRecentAuditEntries(limit int) ([]model.AuditEntry, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
// required so linter doesn't complain
var _ Store = (*pgStore)(nil)

func NewStore() Store {
	return &pgStore{db: DB}
}
