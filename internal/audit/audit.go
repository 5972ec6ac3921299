// Package audit is the append-only event log for the dosing subsystem.
// Writes never fail the dosing action they describe.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

type Sink interface {
	Record(ctx context.Context, e model.AuditEntry)
}

// Store is the slice of the database store the recorder writes through.
type Store interface {
	InsertAuditEntry(e model.AuditEntry) error
}

// Recorder persists audit entries to Postgres, echoes them to the log, and
// optionally mirrors them to InfluxDB.
type Recorder struct {
	store  Store
	mirror *InfluxMirror
}

var _ Sink = (*Recorder)(nil)

func NewRecorder(store Store, mirror *InfluxMirror) *Recorder {
	return &Recorder{store: store, mirror: mirror}
}

func (r *Recorder) Record(ctx context.Context, e model.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	ev := log.Info().Str("event", string(e.Event))
	if e.ScheduleID != nil {
		ev = ev.Int("schedule_id", *e.ScheduleID)
	}
	if e.TankID != nil {
		ev = ev.Int("tank_id", *e.TankID)
	}
	ev.Msg(e.Message)

	if err := r.store.InsertAuditEntry(e); err != nil {
		// the dose already happened; losing the entry is logged, not fatal
		log.Error().Err(err).Str("event", string(e.Event)).Msg("audit write failed")
	}
	r.mirror.Write(e)
}
