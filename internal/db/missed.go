package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

const missedColumns = `id, schedule_id, missed_dose_time, hours_missed, status,
	decided_by, decided_at, notes, detected_at`

// PendingMissedDoseExists is the lookup-before-insert dedup guard: at most
// one pending request per (schedule, missed_dose_time).
func (st *pgStore) PendingMissedDoseExists(scheduleID int, missedTime time.Time) (bool, error) {
	var n int
	err := st.db.Get(&n, `
	SELECT count(*) FROM missed_dose_requests
	 WHERE schedule_id = $1 AND missed_dose_time = $2 AND status = 'pending';`,
		scheduleID, missedTime)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("PendingMissedDoseExists failed")
		return false, err
	}
	return n > 0, nil
}

func (st *pgStore) CreateMissedDoseRequest(scheduleID int, missedTime time.Time, hoursMissed float64) (model.MissedDoseRequest, error) {
	var r model.MissedDoseRequest
	err := st.db.Get(&r, `
	INSERT INTO missed_dose_requests (schedule_id, missed_dose_time, hours_missed, status, detected_at)
	VALUES ($1, $2, $3, 'pending', now())
	RETURNING `+missedColumns+`;`, scheduleID, missedTime, hoursMissed)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("CreateMissedDoseRequest failed")
		return model.MissedDoseRequest{}, err
	}
	return r, nil
}

func (st *pgStore) ListPendingMissedDoses(tankID *int) ([]model.MissedDoseRequest, error) {
	var out []model.MissedDoseRequest
	var err error
	if tankID != nil {
		err = st.db.Select(&out, `
		SELECT r.id, r.schedule_id, r.missed_dose_time, r.hours_missed, r.status,
		       r.decided_by, r.decided_at, r.notes, r.detected_at
		  FROM missed_dose_requests r
		  JOIN d_schedules s ON s.id = r.schedule_id
		 WHERE r.status = 'pending' AND s.tank_id = $1
		 ORDER BY r.missed_dose_time;`, *tankID)
	} else {
		err = st.db.Select(&out, `
		SELECT `+missedColumns+`
		  FROM missed_dose_requests
		 WHERE status = 'pending'
		 ORDER BY missed_dose_time;`)
	}
	if err != nil {
		log.Error().Err(err).Msg("ListPendingMissedDoses failed")
		return nil, err
	}
	return out, nil
}

func (st *pgStore) GetMissedDoseRequest(id int) (model.MissedDoseRequest, error) {
	var r model.MissedDoseRequest
	err := st.db.Get(&r, `
	SELECT `+missedColumns+` FROM missed_dose_requests WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MissedDoseRequest{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("request_id", id).Msg("GetMissedDoseRequest failed")
		return model.MissedDoseRequest{}, err
	}
	return r, nil
}

func (st *pgStore) ResolveMissedDoseRequest(id int, status model.MissedDoseStatus, decidedBy, notes string, now time.Time) error {
	res, err := st.db.Exec(`
	UPDATE missed_dose_requests
	   SET status = $2, decided_by = $3, notes = $4, decided_at = $5
	 WHERE id = $1 AND status = 'pending';`, id, status, decidedBy, notes, now)
	if err != nil {
		log.Error().Err(err).Int("request_id", id).Msg("ResolveMissedDoseRequest failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpirePendingMissedDoses marks pending requests detected before the cutoff
// as expired and returns how many were affected.
func (st *pgStore) ExpirePendingMissedDoses(cutoff time.Time) (int, error) {
	res, err := st.db.Exec(`
	UPDATE missed_dose_requests
	   SET status = 'expired', decided_at = now()
	 WHERE status = 'pending' AND detected_at < $1;`, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("ExpirePendingMissedDoses failed")
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteDecidedMissedDoses prunes non-pending requests decided before the
// cutoff and returns how many rows were removed.
func (st *pgStore) DeleteDecidedMissedDoses(cutoff time.Time) (int, error) {
	res, err := st.db.Exec(`
	DELETE FROM missed_dose_requests
	 WHERE status <> 'pending' AND coalesce(decided_at, detected_at) < $1;`, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("DeleteDecidedMissedDoses failed")
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
