package audit

import (
	"encoding/json"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

// InfluxMirror asynchronously mirrors audit entries to InfluxDB for
// dashboards. Postgres stays the primary audit store; a nil mirror is a
// no-op.
type InfluxMirror struct {
	client   influxdb2.Client
	writeAPI influxapi.WriteAPI
}

func NewInfluxMirror(url, token, org, bucket string) *InfluxMirror {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)

	go func() {
		for err := range writeAPI.Errors() {
			log.Error().Err(err).Msg("influx audit write failed")
		}
	}()

	log.Info().Str("url", url).Str("bucket", bucket).Msg("audit mirror enabled")
	return &InfluxMirror{client: client, writeAPI: writeAPI}
}

func (m *InfluxMirror) Write(e model.AuditEntry) {
	if m == nil {
		return
	}

	p := influxdb2.NewPointWithMeasurement("dosing_audit").
		AddTag("event", string(e.Event)).
		AddField("message", e.Message).
		SetTime(e.CreatedAt)
	if e.ScheduleID != nil {
		p.AddTag("schedule_id", strconv.Itoa(*e.ScheduleID))
	}
	if e.TankID != nil {
		p.AddTag("tank_id", strconv.Itoa(*e.TankID))
	}
	if len(e.Detail) > 0 {
		if detail, err := json.Marshal(e.Detail); err == nil {
			p.AddField("detail", string(detail))
		}
	}
	m.writeAPI.WritePoint(p)
}

func (m *InfluxMirror) Close() {
	if m == nil {
		return
	}
	m.writeAPI.Flush()
	m.client.Close()
}
