package scheduler

import (
	"fmt"

	"github.com/reeflab/reefdb/internal/model"
)

const (
	secondsPerDay  = 86400
	secondsPerWeek = 7 * secondsPerDay
	maxRepeatDays  = 365
)

// Conflict is one validation problem found in a schedule configuration.
type Conflict struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult carries either the accepted (possibly corrected)
// configuration or the conflicts that could not be resolved.
type ValidationResult struct {
	Schedule  model.Schedule `json:"schedule"`
	Conflicts []Conflict     `json:"conflicts,omitempty"`
	Fixed     bool           `json:"fixed"`
}

func (r ValidationResult) Valid() bool { return len(r.Conflicts) == 0 }

// ValidateSchedule checks that the timing configuration is meaningful for
// exactly one schedule kind. On conflict it attempts a single auto-fix pass
// (reclassifying the kind or recomputing the derived interval) and
// re-validates once; anything still conflicting is reported, never silently
// accepted.
func ValidateSchedule(s model.Schedule) ValidationResult {
	conflicts := checkSchedule(s)
	if len(conflicts) == 0 {
		return ValidationResult{Schedule: s}
	}

	fixed, changed := autoFix(s)
	if changed {
		if remaining := checkSchedule(fixed); len(remaining) == 0 {
			return ValidationResult{Schedule: fixed, Fixed: true}
		}
	}
	return ValidationResult{Schedule: s, Conflicts: conflicts}
}

func checkSchedule(s model.Schedule) []Conflict {
	var conflicts []Conflict
	add := func(field, format string, args ...any) {
		conflicts = append(conflicts, Conflict{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if s.Amount <= 0 {
		add("amount", "dose amount must be positive")
	}

	switch s.Kind {
	case model.KindInterval:
		if s.TriggerInterval <= 0 {
			add("trigger_interval", "interval schedules require a positive interval")
		}
		if s.TriggerInterval > secondsPerDay {
			add("trigger_interval", "intervals above 24h should use the custom kind")
		}
		if s.TriggerTime != nil {
			add("trigger_time", "interval schedules cannot carry a fixed time of day")
		}
		if s.RepeatEveryDays != 0 {
			add("repeat_every_n_days", "interval schedules cannot carry a day repeat")
		}
	case model.KindDaily:
		if s.TriggerTime == nil {
			add("trigger_time", "daily schedules require a fixed time of day")
		}
		if s.TriggerInterval <= 0 || secondsPerDay%s.TriggerInterval != 0 {
			add("trigger_interval", "daily interval %ds does not divide 24h", s.TriggerInterval)
		}
		if s.RepeatEveryDays != 0 {
			add("repeat_every_n_days", "daily schedules cannot carry a day repeat")
		}
	case model.KindWeekly:
		if s.TriggerTime == nil {
			add("trigger_time", "weekly schedules require a fixed time of day")
		}
		if len(s.DaysOfWeek) == 0 && s.TriggerInterval != secondsPerWeek {
			add("days_of_week", "weekly schedules require a day set or a 7-day interval")
		}
	case model.KindCustom:
		if s.TriggerTime == nil {
			add("trigger_time", "custom schedules require a fixed time of day")
		}
		if s.RepeatEveryDays < 1 || s.RepeatEveryDays > maxRepeatDays {
			add("repeat_every_n_days", "day repeat must be between 1 and %d", maxRepeatDays)
		} else if s.TriggerInterval != s.RepeatEveryDays*secondsPerDay {
			add("trigger_interval", "interval %ds does not match %d-day repeat",
				s.TriggerInterval, s.RepeatEveryDays)
		}
	default:
		add("schedule_kind", "unknown schedule kind %q", s.Kind)
	}
	return conflicts
}

// autoFix applies the documented reclassification corrections. It returns the
// corrected schedule and whether anything changed.
func autoFix(s model.Schedule) (model.Schedule, bool) {
	changed := false
	switch s.Kind {
	case model.KindInterval:
		// an interval schedule that carries a fixed time is really a daily one
		if s.TriggerTime != nil {
			s.Kind = model.KindDaily
			s.TriggerInterval = secondsPerDay
			s.RepeatEveryDays = 0
			changed = true
		}
	case model.KindDaily:
		if s.TriggerInterval <= 0 || secondsPerDay%s.TriggerInterval != 0 {
			s.TriggerInterval = secondsPerDay
			changed = true
		}
		if s.RepeatEveryDays != 0 {
			s.RepeatEveryDays = 0
			changed = true
		}
	case model.KindWeekly:
		if len(s.DaysOfWeek) == 0 && s.TriggerInterval != secondsPerWeek {
			s.TriggerInterval = secondsPerWeek
			changed = true
		}
	case model.KindCustom:
		if s.RepeatEveryDays >= 1 && s.RepeatEveryDays <= maxRepeatDays &&
			s.TriggerInterval != s.RepeatEveryDays*secondsPerDay {
			s.TriggerInterval = s.RepeatEveryDays * secondsPerDay
			changed = true
		}
	}
	return s, changed
}
