package scheduler

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

// SafetyWindow bounds how late a dose may ever be fired past its planned
// time. It sits above every missed-dose policy: the policies govern
// detection and bookkeeping of staleness, never permission to fire late.
const SafetyWindow = 120 * time.Second

// DefaultGracePeriodHours applies when a grace_period schedule has no
// explicit grace window configured.
const DefaultGracePeriodHours = 12

type Action string

const (
	ActionNotDue          Action = "not_due"
	ActionSkip            Action = "skip"
	ActionDoseNow         Action = "dose_now"
	ActionHoldForApproval Action = "hold_for_approval"
)

// Analysis is the outcome of classifying one schedule's gap since its last
// expected dose.
type Analysis struct {
	ScheduleID     int       `json:"schedule_id"`
	MissedDoseTime time.Time `json:"missed_dose_time"`
	HoursMissed    float64   `json:"hours_missed"`
	ShouldDose     bool      `json:"should_dose"`
	Action         Action    `json:"action"`
	Reason         string    `json:"reason"`
	RequestCreated bool      `json:"request_created"`
}

// RequestStore is the slice of the store the policy engine needs to
// deduplicate and create missed-dose requests.
type RequestStore interface {
	PendingMissedDoseExists(scheduleID int, missedTime time.Time) (bool, error)
	CreateMissedDoseRequest(scheduleID int, missedTime time.Time, hoursMissed float64) (model.MissedDoseRequest, error)
}

type PolicyEngine struct {
	store RequestStore
	calc  *Calculator
}

func NewPolicyEngine(store RequestStore, calc *Calculator) *PolicyEngine {
	if calc == nil {
		calc = NewCalculator(nil)
	}
	return &PolicyEngine{store: store, calc: calc}
}

// Analyze classifies the gap between the schedule's expected dose time and
// now. Fixed-time kinds expect their most recent calendar slot; the interval
// kind anchors to the last dose, falling back to the last refill, falling
// back to now-interval ("due immediately").
func (e *PolicyEngine) Analyze(s model.Schedule, lastDose *time.Time, now time.Time) Analysis {
	expected := e.expectedDoseTime(s, lastDose, now)
	a := Analysis{ScheduleID: s.ID, MissedDoseTime: expected}

	if expected.After(now) {
		a.Action = ActionNotDue
		a.Reason = "next dose is in the future"
		return a
	}

	gap := now.Sub(expected)
	a.HoursMissed = gap.Hours()

	if gap == 0 {
		a.Action = ActionDoseNow
		a.ShouldDose = true
		a.Reason = "dose due now"
		return a
	}

	switch s.Policy {
	case model.PolicyGracePeriod:
		hours := s.GracePeriodHours
		if hours <= 0 {
			hours = DefaultGracePeriodHours
		}
		if gap <= time.Duration(hours*float64(time.Hour)) {
			a.Action = ActionDoseNow
			a.ShouldDose = true
			a.Reason = "missed dose within grace period"
		} else {
			a.Action = ActionSkip
			a.Reason = "missed dose beyond grace period"
		}
	case model.PolicyManualApproval:
		a.Action = ActionHoldForApproval
		a.Reason = "missed dose awaiting manual approval"
		exists, err := e.store.PendingMissedDoseExists(s.ID, expected)
		if err != nil {
			log.Error().Err(err).Int("schedule_id", s.ID).Msg("pending request lookup failed")
			return a
		}
		if !exists {
			if _, err := e.store.CreateMissedDoseRequest(s.ID, expected, a.HoursMissed); err != nil {
				log.Error().Err(err).Int("schedule_id", s.ID).Msg("could not create missed dose request")
			} else {
				a.RequestCreated = true
			}
		}
	default: // alert_only
		a.Action = ActionSkip
		a.Reason = "missed dose skipped, alerting only"
	}
	return a
}

func (e *PolicyEngine) expectedDoseTime(s model.Schedule, lastDose *time.Time, now time.Time) time.Time {
	switch s.Kind {
	case model.KindDaily, model.KindWeekly, model.KindCustom:
		due := e.calc.LastDue(s, lastDose, now)
		// a dose at or after the slot satisfied it; a schedule with neither
		// a dose nor a refill before the slot has nothing to have missed
		if lastDose != nil {
			if lastDose.Before(due) {
				return due
			}
			return e.calc.NextDue(s, lastDose, now)
		}
		if s.LastRefill != nil && s.LastRefill.Before(due) {
			return due
		}
		return e.calc.NextDue(s, lastDose, now)
	default:
		anchor := now.Add(-s.Interval())
		if lastDose != nil {
			anchor = lastDose.In(now.Location())
		} else if s.LastRefill != nil {
			anchor = s.LastRefill.In(now.Location())
		}
		return anchor.Add(s.Interval())
	}
}
