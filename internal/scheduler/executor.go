package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/metrics"
	"github.com/reeflab/reefdb/internal/model"
)

// executeDose fires one queued entry. Every step is independently fallible;
// none of them may take the failure back into the control loop.
func (s *Scheduler) executeDose(ctx context.Context, e Entry) {
	now := s.now()

	sched, err := s.store.GetScheduleByID(e.ScheduleID)
	if err != nil {
		log.Info().Err(err).Int("schedule_id", e.ScheduleID).Msg("dropping dose, schedule no longer exists")
		s.auditSkip(ctx, e, now, "schedule no longer exists", "missing_schedule")
		metrics.DosesSkipped.WithLabelValues("missing_schedule").Inc()
		return
	}
	if sched.Suspended {
		log.Info().Int("schedule_id", sched.ID).Msg("dropping dose, schedule suspended")
		s.auditSkip(ctx, e, now, "schedule suspended", "suspended")
		metrics.DosesSkipped.WithLabelValues("suspended").Inc()
		return
	}

	product, err := s.store.GetProductByID(sched.ProductID)
	if err != nil {
		log.Error().Err(err).Int("product_id", sched.ProductID).Msg("dropping dose, product lookup failed")
		s.auditSkip(ctx, e, now, "product lookup failed", "product_error")
		metrics.DosesSkipped.WithLabelValues("product_error").Inc()
		return
	}
	if product.CurrentAvail < sched.Amount {
		log.Info().
			Int("schedule_id", sched.ID).
			Float64("available", product.CurrentAvail).
			Float64("amount", sched.Amount).
			Msg("dropping dose, not enough product left")
		s.auditSkip(ctx, e, now, "insufficient product available", "insufficient_product")
		metrics.DosesSkipped.WithLabelValues("insufficient_product").Inc()
		return
	}

	// the safety window is measured against the original planned time, not
	// against when this worker happened to be invoked
	late := now.Sub(e.PlannedTime)
	metrics.DoseLateness.Observe(late.Seconds())
	if late > SafetyWindow {
		log.Error().
			Int("schedule_id", sched.ID).
			Time("planned", e.PlannedTime).
			Time("now", now).
			Dur("late", late).
			Msg("dose beyond safety window, aborting")
		if s.noteSkip(sched.ID, e.PlannedTime) {
			sid, tid := sched.ID, sched.TankID
			s.sink.Record(ctx, model.AuditEntry{
				Event:      model.AuditDoseSkipped,
				ScheduleID: &sid,
				TankID:     &tid,
				Message:    "dose aborted, beyond safety window",
				Detail: model.JSONMap{
					"planned_time":     e.PlannedTime,
					"actual_time":      now,
					"lateness_seconds": late.Seconds(),
					"hours_missed":     late.Hours(),
					"reason":           "safety_window",
				},
			})
		}
		s.alerts.DoseError(ctx, sched.ID, product.Name,
			fmt.Sprintf("dose aborted: %.0fs past its planned time, safety window is %s", late.Seconds(), SafetyWindow))
		metrics.DosesSkipped.WithLabelValues("safety_window").Inc()
		return
	}

	tctx, cancel := context.WithTimeout(ctx, s.triggerTimeout)
	result, err := s.trigger.TriggerDose(tctx, sched.ID, sched.TankID)
	cancel()
	if err != nil {
		// never retried: the physical effect of a failed trigger is unknown
		log.Error().Err(err).Int("schedule_id", sched.ID).Msg("dose trigger failed")
		sid, tid := sched.ID, sched.TankID
		s.sink.Record(ctx, model.AuditEntry{
			Event:      model.AuditDoseFailed,
			ScheduleID: &sid,
			TankID:     &tid,
			Message:    "dose trigger failed",
			Detail: model.JSONMap{
				"planned_time": e.PlannedTime,
				"error":        err.Error(),
			},
		})
		s.alerts.DoseError(ctx, sched.ID, product.Name, fmt.Sprintf("dose trigger failed: %v", err))
		metrics.DosesFailed.Inc()
		return
	}

	detail := model.JSONMap{
		"dose_id":          result.DoseID,
		"amount":           result.Amount,
		"planned_time":     e.PlannedTime,
		"actual_time":      now,
		"lateness_seconds": late.Seconds(),
	}

	if sched.DoserID != nil && s.doser != nil {
		if err := s.confirmDose(ctx, sched, result.DoseID, detail); err != nil {
			sid, tid := sched.ID, sched.TankID
			s.sink.Record(ctx, model.AuditEntry{
				Event:      model.AuditDoseFailed,
				ScheduleID: &sid,
				TankID:     &tid,
				Message:    "doser confirmation failed",
				Detail: model.JSONMap{
					"dose_id": result.DoseID,
					"error":   err.Error(),
				},
			})
			s.alerts.DoseError(ctx, sched.ID, product.Name, fmt.Sprintf("doser confirmation failed: %v", err))
			metrics.DosesFailed.Inc()
			return
		}
	}

	if err := s.store.SetLastScheduledTime(sched.ID, now); err != nil {
		log.Error().Err(err).Int("schedule_id", sched.ID).Msg("could not update last scheduled time")
	}

	sid, tid := sched.ID, sched.TankID
	s.sink.Record(ctx, model.AuditEntry{
		Event:      model.AuditDoseExecuted,
		ScheduleID: &sid,
		TankID:     &tid,
		Message:    fmt.Sprintf("dosed %.2f ml of %s", result.Amount, product.Name),
		Detail:     detail,
	})
	metrics.DosesExecuted.Inc()
	log.Info().
		Int("schedule_id", sched.ID).
		Int("dose_id", result.DoseID).
		Float64("amount", result.Amount).
		Msg("dose executed")

	s.requestRefresh()
}

// confirmDose runs the bounded hardware handshake and records the confirmed
// amount on the dose event. The dose itself already happened: a confirmation
// failure means the physical outcome is unknown, which is alerted and never
// retried.
func (s *Scheduler) confirmDose(ctx context.Context, sched model.Schedule, doseID int, detail model.JSONMap) error {
	doser, err := s.store.GetDoserByID(*sched.DoserID)
	if err != nil {
		return fmt.Errorf("doser %d lookup: %w", *sched.DoserID, err)
	}

	cctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()
	conf, err := s.doser.RequestDose(cctx, doser, sched.Amount, sched.ID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("doser %d confirmation timed out after %s", doser.ID, s.confirmTimeout)
		}
		return err
	}

	if err := s.store.SetDoseConfirmedAmount(doseID, conf.ActualAmount); err != nil {
		log.Error().Err(err).Int("dose_id", doseID).Msg("could not record confirmed amount")
	}
	detail["confirmed_amount"] = conf.ActualAmount
	return nil
}

func (s *Scheduler) auditSkip(ctx context.Context, e Entry, now time.Time, message, reason string) {
	if !s.noteSkip(e.ScheduleID, e.PlannedTime) {
		return
	}
	sid, tid := e.ScheduleID, e.TankID
	s.sink.Record(ctx, model.AuditEntry{
		Event:      model.AuditDoseSkipped,
		ScheduleID: &sid,
		TankID:     &tid,
		Message:    message,
		Detail: model.JSONMap{
			"planned_time": e.PlannedTime,
			"actual_time":  now,
			"reason":       reason,
		},
	})
}
