package scheduler

import (
	"time"

	"github.com/reeflab/reefdb/internal/model"
)

// Calculator computes due times for schedules. All arithmetic happens in the
// single configured location; callers must never mix offsets.
type Calculator struct {
	loc *time.Location
}

func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc}
}

// NextDue returns the next planned firing time for the schedule.
//
// The result is strictly after now for every schedule with history. A
// schedule with neither a dose event nor a refill anchors to now-interval,
// which makes it due immediately: that is the only case where NextDue
// returns now itself.
func (c *Calculator) NextDue(s model.Schedule, lastDose *time.Time, now time.Time) time.Time {
	now = now.In(c.loc)

	switch s.Kind {
	case model.KindInterval:
		if lastDose == nil && s.LastRefill == nil {
			return now
		}
		return c.nextOnGrid(s, now)
	case model.KindDaily, model.KindWeekly:
		return c.nextFixedTime(s, lastDose, now)
	case model.KindCustom:
		return c.nextCustom(s, now)
	default:
		return c.nextOnGrid(s, now)
	}
}

// LastDue returns the most recent planned firing time at or before now,
// used for overdue analysis and audit detail.
func (c *Calculator) LastDue(s model.Schedule, lastDose *time.Time, now time.Time) time.Time {
	now = now.In(c.loc)

	if s.Kind == model.KindWeekly && len(s.DaysOfWeek) > 0 {
		tod := triggerTimeOrMidnight(s)
		for d := 0; d <= 14; d++ {
			day := now.AddDate(0, 0, -d)
			cand := tod.On(day)
			if s.DaysOfWeek.Contains(cand.Weekday()) && !cand.After(now) {
				return cand
			}
		}
	}

	next := c.NextDue(s, lastDose, now)
	switch s.Kind {
	case model.KindCustom:
		return next.AddDate(0, 0, -s.RepeatEveryDays)
	case model.KindWeekly:
		return next.AddDate(0, 0, -7)
	default:
		return next.Add(-s.Interval())
	}
}

// nextOnGrid handles the interval kind: a fixed grid of firing slots anchored
// to the top of the hour (intervals up to 1h) or to midnight (up to 24h),
// offset by the schedule's minute of hour and advanced until strictly after
// now. Intervals above 24h step from the last anchor instead.
func (c *Calculator) nextOnGrid(s model.Schedule, now time.Time) time.Time {
	iv := s.Interval()
	if iv <= 0 {
		iv = 24 * time.Hour
	}
	offset := time.Duration(s.MinuteOffset) * time.Minute

	var t time.Time
	switch {
	case iv <= time.Hour:
		hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, c.loc)
		t = hourStart.Add(offset)
	case iv <= 24*time.Hour:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
		t = dayStart.Add(offset)
	default:
		anchor := now
		if s.LastScheduled != nil {
			anchor = s.LastScheduled.In(c.loc)
		} else if s.LastRefill != nil {
			anchor = s.LastRefill.In(c.loc)
		}
		t = anchor
	}

	// step back to the earliest slot still after now, then forward past now
	for t.After(now) && t.Add(-iv).After(now) {
		t = t.Add(-iv)
	}
	for !t.After(now) {
		t = t.Add(iv)
	}
	return t
}

// nextFixedTime handles daily and weekly kinds: the fixed wall-clock time,
// rolled forward one period at a time until after now. A daily schedule whose
// interval divides 24h fires several times a day on that sub-grid; a weekly
// schedule with a day set fires on the next listed day, and one without a day
// set steps seven days from the weekday of its last execution.
func (c *Calculator) nextFixedTime(s model.Schedule, lastDose *time.Time, now time.Time) time.Time {
	tod := triggerTimeOrMidnight(s)

	if s.Kind == model.KindWeekly && len(s.DaysOfWeek) > 0 {
		for d := 0; d <= 14; d++ {
			day := now.AddDate(0, 0, d)
			cand := tod.On(day)
			if s.DaysOfWeek.Contains(cand.Weekday()) && cand.After(now) {
				return cand
			}
		}
	}

	step := s.Interval()
	anchorDay := now
	if s.Kind == model.KindWeekly {
		if step != time.Duration(secondsPerWeek)*time.Second {
			step = time.Duration(secondsPerWeek) * time.Second
		}
		if lastDose != nil {
			anchorDay = lastDose.In(c.loc)
		} else if s.LastScheduled != nil {
			anchorDay = s.LastScheduled.In(c.loc)
		}
	} else if step <= 0 || 24*time.Hour%step != 0 {
		step = 24 * time.Hour
	}

	t := tod.On(anchorDay)
	for t.After(now) && t.Add(-step).After(now) {
		t = t.Add(-step)
	}
	for !t.After(now) {
		t = t.Add(step)
	}
	return t
}

// nextCustom handles the every-N-days kind, anchored at the fixed time on the
// day of the last execution plus the repeat count. Without history it anchors
// to today (or tomorrow, if today's slot already passed).
func (c *Calculator) nextCustom(s model.Schedule, now time.Time) time.Time {
	tod := triggerTimeOrMidnight(s)
	repeat := s.RepeatEveryDays
	if repeat < 1 {
		repeat = 1
	}

	if s.LastScheduled == nil {
		t := tod.On(now)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}

	t := tod.On(s.LastScheduled.In(c.loc)).AddDate(0, 0, repeat)
	for !t.After(now) {
		t = t.AddDate(0, 0, repeat)
	}
	return t
}

func triggerTimeOrMidnight(s model.Schedule) model.TimeOfDay {
	if s.TriggerTime != nil {
		return *s.TriggerTime
	}
	return model.TimeOfDay{}
}
