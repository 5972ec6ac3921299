package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

// TriggerDose decrements product availability and inserts the dose event in
// one transaction, so there is never a dose without its matching decrement.
func (st *pgStore) TriggerDose(scheduleID, tankID int, now time.Time) (model.DoseEvent, error) {
	tx, err := st.db.Beginx()
	if err != nil {
		return model.DoseEvent{}, fmt.Errorf("begin dose transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		ProductID    int     `db:"product_id"`
		Amount       float64 `db:"amount"`
		CurrentAvail float64 `db:"current_avail"`
	}
	err = tx.Get(&row, `
	SELECT s.product_id, s.amount, p.current_avail
	  FROM d_schedules s
	  JOIN products p ON p.id = s.product_id
	 WHERE s.id = $1 AND s.tank_id = $2
	   FOR UPDATE OF p;`, scheduleID, tankID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DoseEvent{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("TriggerDose lookup failed")
		return model.DoseEvent{}, err
	}
	if row.CurrentAvail < row.Amount {
		return model.DoseEvent{}, ErrInsufficientProduct
	}

	if _, err := tx.Exec(`
	UPDATE products
	   SET current_avail = current_avail - $1, updated_at = now()
	 WHERE id = $2;`, row.Amount, row.ProductID); err != nil {
		log.Error().Err(err).Int("product_id", row.ProductID).Msg("TriggerDose decrement failed")
		return model.DoseEvent{}, err
	}

	var ev model.DoseEvent
	if err := tx.Get(&ev, `
	INSERT INTO dose_events (schedule_id, tank_id, product_id, amount, trigger_time)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, schedule_id, tank_id, product_id, amount, trigger_time, confirmed_amount;`,
		scheduleID, tankID, row.ProductID, row.Amount, now); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("TriggerDose insert failed")
		return model.DoseEvent{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.DoseEvent{}, fmt.Errorf("commit dose transaction: %w", err)
	}
	return ev, nil
}

func (st *pgStore) LastDoseTime(scheduleID int) (*time.Time, error) {
	var t sql.NullTime
	err := st.db.Get(&t, `SELECT max(trigger_time) FROM dose_events WHERE schedule_id = $1;`, scheduleID)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("LastDoseTime failed")
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (st *pgStore) SetDoseConfirmedAmount(doseID int, amount float64) error {
	_, err := st.db.Exec(`UPDATE dose_events SET confirmed_amount = $2 WHERE id = $1;`, doseID, amount)
	if err != nil {
		log.Error().Err(err).Int("dose_id", doseID).Msg("SetDoseConfirmedAmount failed")
	}
	return err
}
