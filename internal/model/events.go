package model

import "time"

// DoseEvent records a dose actually administered. Insert-only.
type DoseEvent struct {
	ID              int        `db:"id" json:"id"`
	ScheduleID      int        `db:"schedule_id" json:"schedule_id"`
	TankID          int        `db:"tank_id" json:"tank_id"`
	ProductID       int        `db:"product_id" json:"product_id"`
	Amount          float64    `db:"amount" json:"amount"`
	TriggerTime     time.Time  `db:"trigger_time" json:"trigger_time"`
	ConfirmedAmount *float64   `db:"confirmed_amount" json:"confirmed_amount"`
}

type MissedDoseStatus string

const (
	MissedPending     MissedDoseStatus = "pending"
	MissedApproved    MissedDoseStatus = "approved"
	MissedRejected    MissedDoseStatus = "rejected"
	MissedExpired     MissedDoseStatus = "expired"
	MissedAutoHandled MissedDoseStatus = "auto_handled"
)

// MissedDoseRequest is a pending decision artifact for a dose that was not
// fired on time under a policy requiring review.
type MissedDoseRequest struct {
	ID             int              `db:"id" json:"id"`
	ScheduleID     int              `db:"schedule_id" json:"schedule_id"`
	MissedDoseTime time.Time        `db:"missed_dose_time" json:"missed_dose_time"`
	HoursMissed    float64          `db:"hours_missed" json:"hours_missed"`
	Status         MissedDoseStatus `db:"status" json:"status"`
	DecidedBy      *string          `db:"decided_by" json:"decided_by"`
	DecidedAt      *time.Time       `db:"decided_at" json:"decided_at"`
	Notes          *string          `db:"notes" json:"notes"`
	DetectedAt     time.Time        `db:"detected_at" json:"detected_at"`
}

type AuditEvent string

const (
	AuditQueueRefreshed        AuditEvent = "queue_refreshed"
	AuditDoseScheduled         AuditEvent = "dose_scheduled"
	AuditDoseExecuted          AuditEvent = "dose_executed"
	AuditDoseFailed            AuditEvent = "dose_failed"
	AuditDoseSkipped           AuditEvent = "dose_skipped"
	AuditMissedRequestCreated  AuditEvent = "missed_dose_request_created"
	AuditMissedRequestApproved AuditEvent = "missed_dose_request_approved"
	AuditMissedRequestRejected AuditEvent = "missed_dose_request_rejected"
)

type AuditEntry struct {
	ID         int64      `db:"id" json:"id"`
	Event      AuditEvent `db:"event" json:"event"`
	ScheduleID *int       `db:"schedule_id" json:"schedule_id"`
	TankID     *int       `db:"tank_id" json:"tank_id"`
	Message    string     `db:"message" json:"message"`
	Detail     JSONMap    `db:"detail" json:"detail"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
