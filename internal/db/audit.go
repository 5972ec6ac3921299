package db

import (
	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

func (st *pgStore) InsertAuditEntry(e model.AuditEntry) error {
	_, err := st.db.Exec(`
	INSERT INTO dosing_audit (event, schedule_id, tank_id, message, detail, created_at)
	VALUES ($1, $2, $3, $4, $5, $6);`,
		e.Event, e.ScheduleID, e.TankID, e.Message, e.Detail, e.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("event", string(e.Event)).Msg("InsertAuditEntry failed")
	}
	return err
}

func (st *pgStore) ListRecentAuditEntries(limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.AuditEntry
	err := st.db.Select(&out, `
	SELECT id, event, schedule_id, tank_id, message, detail, created_at
	  FROM dosing_audit
	 ORDER BY created_at DESC, id DESC
	 LIMIT $1;`, limit)
	if err != nil {
		log.Error().Err(err).Msg("ListRecentAuditEntries failed")
		return nil, err
	}
	return out, nil
}
