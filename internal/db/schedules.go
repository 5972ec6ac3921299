package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

// last_refill lives on products (the refill endpoint is its only writer);
// schedule reads denormalize it in so the calculator gets its anchor chain.
const scheduleColumns = `
	s.id, s.tank_id, s.product_id, s.doser_id, s.amount, s.schedule_kind,
	s.trigger_interval, s.trigger_time, s.minute_offset, s.days_of_week,
	s.repeat_every_n_days, s.suspended, s.missed_dose_policy,
	s.grace_period_hours, p.last_refill AS last_refill,
	s.last_scheduled_time, s.created_at, s.updated_at`

func (st *pgStore) GetScheduleByID(id int) (model.Schedule, error) {
	var s model.Schedule
	err := st.db.Get(&s, `
	SELECT `+scheduleColumns+`
	  FROM d_schedules s
	  JOIN products p ON p.id = s.product_id
	 WHERE s.id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("GetScheduleByID failed")
		return model.Schedule{}, err
	}
	return s, nil
}

// ListActiveSchedules returns every schedule eligible for queueing: not
// suspended and with enough product left for one dose.
func (st *pgStore) ListActiveSchedules() ([]model.ActiveSchedule, error) {
	var out []model.ActiveSchedule
	err := st.db.Select(&out, `
	SELECT `+scheduleColumns+`,
	       p.name AS product_name, p.current_avail
	  FROM d_schedules s
	  JOIN products p ON p.id = s.product_id
	 WHERE NOT s.suspended
	   AND p.current_avail >= s.amount
	 ORDER BY s.id;`)
	if err != nil {
		log.Error().Err(err).Msg("ListActiveSchedules failed")
		return nil, err
	}
	return out, nil
}

func (st *pgStore) SetLastScheduledTime(scheduleID int, t time.Time) error {
	_, err := st.db.Exec(`
	UPDATE d_schedules
	   SET last_scheduled_time = $2, updated_at = now()
	 WHERE id = $1;`, scheduleID, t)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("SetLastScheduledTime failed")
	}
	return err
}
