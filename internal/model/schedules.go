package model

import "time"

type ScheduleKind string

const (
	KindInterval ScheduleKind = "interval"
	KindDaily    ScheduleKind = "daily"
	KindWeekly   ScheduleKind = "weekly"
	KindCustom   ScheduleKind = "custom"
)

type MissedDosePolicy string

const (
	PolicyAlertOnly      MissedDosePolicy = "alert_only"
	PolicyGracePeriod    MissedDosePolicy = "grace_period"
	PolicyManualApproval MissedDosePolicy = "manual_approval"
)

// Schedule is the configuration for one recurring dose. The scheduler only
// ever writes last_scheduled_time; everything else belongs to the CRUD layer.
type Schedule struct {
	ID               int              `db:"id" json:"id"`
	TankID           int              `db:"tank_id" json:"tank_id"`
	ProductID        int              `db:"product_id" json:"product_id"`
	DoserID          *int             `db:"doser_id" json:"doser_id"`
	Amount           float64          `db:"amount" json:"amount"`
	Kind             ScheduleKind     `db:"schedule_kind" json:"schedule_kind"`
	TriggerInterval  int              `db:"trigger_interval" json:"trigger_interval"`
	TriggerTime      *TimeOfDay       `db:"trigger_time" json:"trigger_time"`
	MinuteOffset     int              `db:"minute_offset" json:"minute_offset"`
	DaysOfWeek       DaySet           `db:"days_of_week" json:"days_of_week"`
	RepeatEveryDays  int              `db:"repeat_every_n_days" json:"repeat_every_n_days"`
	Suspended        bool             `db:"suspended" json:"suspended"`
	Policy           MissedDosePolicy `db:"missed_dose_policy" json:"missed_dose_policy"`
	GracePeriodHours float64          `db:"grace_period_hours" json:"grace_period_hours"`
	LastRefill       *time.Time       `db:"last_refill" json:"last_refill"`
	LastScheduled    *time.Time       `db:"last_scheduled_time" json:"last_scheduled_time"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Interval returns trigger_interval as a duration.
func (s Schedule) Interval() time.Duration {
	return time.Duration(s.TriggerInterval) * time.Second
}

// ActiveSchedule is a schedule joined with the product fields the queue
// manager needs for eligibility checks.
type ActiveSchedule struct {
	Schedule
	ProductName  string  `db:"product_name" json:"product_name"`
	CurrentAvail float64 `db:"current_avail" json:"current_avail"`
}
