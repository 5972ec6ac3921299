package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/metrics"
	"github.com/reeflab/reefdb/internal/model"
)

// refresh is the queue manager pass: it recomputes due times and policy
// decisions for every eligible schedule, rebuilds the queue, and re-arms
// per-dose timers. Idempotent for unchanged inputs. Returns the eligible
// and queued counts for the on-demand audit entry.
func (s *Scheduler) refresh(now time.Time) (int, int) {
	ctx := context.Background()

	schedules, err := s.store.ListActiveSchedules()
	if err != nil {
		log.Error().Err(err).Msg("queue refresh: could not list schedules")
		return 0, 0
	}

	for _, stale := range s.queue.DropPast(now) {
		log.Warn().
			Int("schedule_id", stale.ScheduleID).
			Time("planned", stale.PlannedTime).
			Msg("dropping stale queue entry")
		if s.noteSkip(stale.ScheduleID, stale.PlannedTime) {
			sid, tid := stale.ScheduleID, stale.TankID
			s.sink.Record(ctx, model.AuditEntry{
				Event:      model.AuditDoseSkipped,
				ScheduleID: &sid,
				TankID:     &tid,
				Message:    "stale queue entry dropped",
				Detail: model.JSONMap{
					"planned_time": stale.PlannedTime,
					"reason":       "stale_entry",
				},
			})
		}
	}

	entries := make([]Entry, 0, len(schedules))
	for _, as := range schedules {
		lastDose, err := s.store.LastDoseTime(as.ID)
		if err != nil {
			log.Error().Err(err).Int("schedule_id", as.ID).Msg("queue refresh: last dose lookup failed")
			continue
		}

		analysis := s.policy.Analyze(as.Schedule, lastDose, now)
		planned := time.Time{}

		switch analysis.Action {
		case ActionDoseNow:
			// queued at the original missed time: the executor's safety
			// window applies to the planned time, so a stale grace dose can
			// classify as dose_now yet never fire
			planned = analysis.MissedDoseTime
		case ActionSkip:
			log.Info().
				Int("schedule_id", as.ID).
				Float64("hours_missed", analysis.HoursMissed).
				Str("reason", analysis.Reason).
				Msg("missed dose skipped")
			if s.noteSkip(as.ID, analysis.MissedDoseTime) {
				sid, tid := as.ID, as.TankID
				s.sink.Record(ctx, model.AuditEntry{
					Event:      model.AuditDoseSkipped,
					ScheduleID: &sid,
					TankID:     &tid,
					Message:    analysis.Reason,
					Detail: model.JSONMap{
						"missed_dose_time": analysis.MissedDoseTime,
						"hours_missed":     analysis.HoursMissed,
						"policy":           string(as.Policy),
					},
				})
			}
			planned = s.calc.NextDue(as.Schedule, lastDose, now)
		case ActionHoldForApproval:
			if analysis.RequestCreated {
				sid, tid := as.ID, as.TankID
				s.sink.Record(ctx, model.AuditEntry{
					Event:      model.AuditMissedRequestCreated,
					ScheduleID: &sid,
					TankID:     &tid,
					Message:    analysis.Reason,
					Detail: model.JSONMap{
						"missed_dose_time": analysis.MissedDoseTime,
						"hours_missed":     analysis.HoursMissed,
					},
				})
			}
			planned = s.calc.NextDue(as.Schedule, lastDose, now)
		default: // not due
			planned = s.calc.NextDue(as.Schedule, lastDose, now)
		}

		entries = append(entries, Entry{
			ScheduleID:   as.ID,
			TankID:       as.TankID,
			ProductID:    as.ProductID,
			ProductName:  as.ProductName,
			Amount:       as.Amount,
			CurrentAvail: as.CurrentAvail,
			PlannedTime:  planned,
		})
	}

	s.queue.Rebuild(entries)
	queued := s.queue.Snapshot()
	metrics.QueueSize.Set(float64(len(queued)))

	s.armJobs(ctx, queued, now)

	s.mu.Lock()
	s.lastRefresh = now
	s.mu.Unlock()

	log.Debug().
		Int("eligible", len(schedules)).
		Int("queued", len(queued)).
		Msg("dose queue refreshed")
	return len(schedules), len(queued)
}

// armJobs reconciles the per-schedule timers against the queue snapshot:
// replace-by-id, so a superseded job is stopped before its fresher
// replacement is armed, never left to run concurrently with it. Each newly
// armed (schedule, planned time) pair is audited once; an unchanged job
// surviving a refresh is not re-audited.
func (s *Scheduler) armJobs(ctx context.Context, queued []Entry, now time.Time) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	want := make(map[int]Entry, len(queued))
	for _, e := range queued {
		want[e.ScheduleID] = e
	}

	for id, j := range s.jobs {
		if e, ok := want[id]; !ok || !e.PlannedTime.Equal(j.planned) {
			j.timer.Stop()
			delete(s.jobs, id)
		}
	}

	var armed []Entry
	for id, e := range want {
		if _, ok := s.jobs[id]; ok {
			continue
		}
		e := e
		wait := e.PlannedTime.Sub(now)
		if wait < 0 {
			wait = 0
		}
		s.jobs[id] = &doseJob{
			planned: e.PlannedTime,
			timer:   time.AfterFunc(wait, func() { s.runJob(e) }),
		}
		armed = append(armed, e)
	}
	s.mu.Unlock()

	for _, e := range armed {
		sid, tid := e.ScheduleID, e.TankID
		s.sink.Record(ctx, model.AuditEntry{
			Event:      model.AuditDoseScheduled,
			ScheduleID: &sid,
			TankID:     &tid,
			Message:    "dose scheduled",
			Detail: model.JSONMap{
				"planned_time": e.PlannedTime,
				"product":      e.ProductName,
				"amount":       e.Amount,
			},
		})
	}
}

// runJob hands a fired timer to the worker pool.
func (s *Scheduler) runJob(e Entry) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if j, ok := s.jobs[e.ScheduleID]; ok && j.planned.Equal(e.PlannedTime) {
		delete(s.jobs, e.ScheduleID)
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.executeDose(context.Background(), e)
}

// noteSkip deduplicates skip audits: one entry per (schedule, missed time),
// not one per refresh tick.
func (s *Scheduler) noteSkip(scheduleID int, missed time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.skipNoted[scheduleID]; ok && t.Equal(missed) {
		return false
	}
	s.skipNoted[scheduleID] = missed
	return true
}
