package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/dosing"
	"github.com/reeflab/reefdb/internal/model"
)

var ErrRequestNotPending = errors.New("missed dose request is not pending")

// A pending request older than the expiry age is moot: the safety window
// closed long ago and the next occurrences have already superseded it.
// Decided rows are kept for the retention period, then pruned.
const (
	requestExpiryAge    = 48 * time.Hour
	requestRetentionAge = 30 * 24 * time.Hour
)

// cleanupRequests is the daily housekeeping pass over missed-dose requests:
// stale pending requests expire, old decided rows are pruned.
func (s *Scheduler) cleanupRequests(now time.Time) {
	expired, err := s.store.ExpirePendingMissedDoses(now.Add(-requestExpiryAge))
	if err != nil {
		log.Error().Err(err).Msg("could not expire stale missed dose requests")
	} else if expired > 0 {
		log.Info().Int("expired", expired).Msg("stale missed dose requests expired")
	}

	pruned, err := s.store.DeleteDecidedMissedDoses(now.Add(-requestRetentionAge))
	if err != nil {
		log.Error().Err(err).Msg("could not prune old missed dose requests")
	} else if pruned > 0 {
		log.Info().Int("pruned", pruned).Msg("old missed dose requests pruned")
	}
}

// ApproveMissedDose resolves a pending request and synthesizes the dose
// through the same trigger path the automatic executor uses. The approved
// dose is intentionally late, so the safety window does not apply here: a
// human signed off on the staleness.
func (s *Scheduler) ApproveMissedDose(ctx context.Context, requestID int, decidedBy, notes string) (dosing.TriggerResult, error) {
	req, err := s.store.GetMissedDoseRequest(requestID)
	if err != nil {
		return dosing.TriggerResult{}, err
	}
	if req.Status != model.MissedPending {
		return dosing.TriggerResult{}, fmt.Errorf("request %d: %w", requestID, ErrRequestNotPending)
	}

	sched, err := s.store.GetScheduleByID(req.ScheduleID)
	if err != nil {
		return dosing.TriggerResult{}, fmt.Errorf("schedule %d: %w", req.ScheduleID, err)
	}

	tctx, cancel := context.WithTimeout(ctx, s.triggerTimeout)
	result, err := s.trigger.TriggerDose(tctx, sched.ID, sched.TankID)
	cancel()
	if err != nil {
		log.Error().Err(err).Int("request_id", requestID).Msg("approved dose trigger failed")
		sid, tid := sched.ID, sched.TankID
		s.sink.Record(ctx, model.AuditEntry{
			Event:      model.AuditDoseFailed,
			ScheduleID: &sid,
			TankID:     &tid,
			Message:    "approved missed dose could not be triggered",
			Detail: model.JSONMap{
				"request_id": requestID,
				"error":      err.Error(),
			},
		})
		return dosing.TriggerResult{}, err
	}

	now := s.now()
	if err := s.store.ResolveMissedDoseRequest(requestID, model.MissedApproved, decidedBy, notes, now); err != nil {
		log.Error().Err(err).Int("request_id", requestID).Msg("could not mark request approved")
	}
	if err := s.store.SetLastScheduledTime(sched.ID, now); err != nil {
		log.Error().Err(err).Int("schedule_id", sched.ID).Msg("could not update last scheduled time")
	}

	sid, tid := sched.ID, sched.TankID
	s.sink.Record(ctx, model.AuditEntry{
		Event:      model.AuditMissedRequestApproved,
		ScheduleID: &sid,
		TankID:     &tid,
		Message:    fmt.Sprintf("missed dose approved by %s", decidedBy),
		Detail: model.JSONMap{
			"request_id":       requestID,
			"dose_id":          result.DoseID,
			"missed_dose_time": req.MissedDoseTime,
			"hours_missed":     req.HoursMissed,
			"notes":            notes,
		},
	})

	s.requestRefresh()
	return result, nil
}

// RejectMissedDose resolves a pending request without dosing.
func (s *Scheduler) RejectMissedDose(ctx context.Context, requestID int, decidedBy, notes string) error {
	req, err := s.store.GetMissedDoseRequest(requestID)
	if err != nil {
		return err
	}
	if req.Status != model.MissedPending {
		return fmt.Errorf("request %d: %w", requestID, ErrRequestNotPending)
	}

	if err := s.store.ResolveMissedDoseRequest(requestID, model.MissedRejected, decidedBy, notes, s.now()); err != nil {
		return err
	}

	sid := req.ScheduleID
	s.sink.Record(ctx, model.AuditEntry{
		Event:      model.AuditMissedRequestRejected,
		ScheduleID: &sid,
		Message:    fmt.Sprintf("missed dose rejected by %s", decidedBy),
		Detail: model.JSONMap{
			"request_id":       requestID,
			"missed_dose_time": req.MissedDoseTime,
			"hours_missed":     req.HoursMissed,
			"notes":            notes,
		},
	})
	return nil
}
