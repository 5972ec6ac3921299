package test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeflab/reefdb/internal/db"
	"github.com/reeflab/reefdb/internal/model"
)

// TestStoreIntegration exercises the store against a real Postgres database.
// Requires TEST_DATABASE_URL; skipped otherwise.
func TestStoreIntegration(t *testing.T) {
	if err := db.InitTestDB("../migrations"); err != nil {
		t.Skipf("test database not available: %v", err)
	}
	store := db.TestStore
	now := time.Now().UTC().Truncate(time.Second)

	var tankID int
	require.NoError(t, db.DB.QueryRow(
		`INSERT INTO tanks (name) VALUES ('display tank') RETURNING id`).Scan(&tankID))

	var productID int
	require.NoError(t, db.DB.QueryRow(
		`INSERT INTO products (tank_id, name, current_avail, total_volume)
		 VALUES ($1, 'alkalinity', 100, 500) RETURNING id`, tankID).Scan(&productID))

	var scheduleID int
	require.NoError(t, db.DB.QueryRow(
		`INSERT INTO d_schedules (tank_id, product_id, amount, schedule_kind, trigger_interval)
		 VALUES ($1, $2, 10, 'interval', 3600) RETURNING id`, tankID, productID).Scan(&scheduleID))

	t.Run("Product Refill", func(t *testing.T) {
		amount := 50.0
		p, err := store.RefillProduct(productID, &amount, now)
		assert.NoError(t, err)
		assert.Equal(t, 150.0, p.CurrentAvail)
		assert.NotNil(t, p.LastRefill)

		// no amount means fill to total volume
		p, err = store.RefillProduct(productID, nil, now)
		assert.NoError(t, err)
		assert.Equal(t, 500.0, p.CurrentAvail)

		_, err = store.RefillProduct(999999, &amount, now)
		assert.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("Trigger Dose", func(t *testing.T) {
		before, err := store.GetProductByID(productID)
		require.NoError(t, err)

		event, err := store.TriggerDose(scheduleID, tankID, now)
		assert.NoError(t, err)
		assert.Equal(t, scheduleID, event.ScheduleID)
		assert.Equal(t, 10.0, event.Amount)

		after, err := store.GetProductByID(productID)
		require.NoError(t, err)
		assert.Equal(t, before.CurrentAvail-10, after.CurrentAvail)

		last, err := store.LastDoseTime(scheduleID)
		assert.NoError(t, err)
		require.NotNil(t, last)
		assert.WithinDuration(t, now, *last, time.Second)

		assert.NoError(t, store.SetDoseConfirmedAmount(event.ID, 9.8))
	})

	t.Run("Trigger Dose Insufficient Product", func(t *testing.T) {
		var emptyProduct int
		require.NoError(t, db.DB.QueryRow(
			`INSERT INTO products (tank_id, name, current_avail, total_volume)
			 VALUES ($1, 'trace elements', 1, 100) RETURNING id`, tankID).Scan(&emptyProduct))
		var sid int
		require.NoError(t, db.DB.QueryRow(
			`INSERT INTO d_schedules (tank_id, product_id, amount, schedule_kind, trigger_interval)
			 VALUES ($1, $2, 10, 'interval', 3600) RETURNING id`, tankID, emptyProduct).Scan(&sid))

		_, err := store.TriggerDose(sid, tankID, now)
		assert.ErrorIs(t, err, db.ErrInsufficientProduct)
	})

	t.Run("Active Schedules", func(t *testing.T) {
		active, err := store.ListActiveSchedules()
		assert.NoError(t, err)

		found := false
		for _, s := range active {
			if s.ID == scheduleID {
				found = true
				assert.Equal(t, "alkalinity", s.ProductName)
			}
		}
		assert.True(t, found, "schedule with product on hand should be active")

		_, err = db.DB.Exec(`UPDATE d_schedules SET suspended = true WHERE id = $1`, scheduleID)
		require.NoError(t, err)
		active, err = store.ListActiveSchedules()
		assert.NoError(t, err)
		for _, s := range active {
			assert.NotEqual(t, scheduleID, s.ID, "suspended schedule must not be listed")
		}
		_, err = db.DB.Exec(`UPDATE d_schedules SET suspended = false WHERE id = $1`, scheduleID)
		require.NoError(t, err)
	})

	t.Run("Missed Dose Lifecycle", func(t *testing.T) {
		missed := now.Add(-6 * time.Hour)

		req, err := store.CreateMissedDoseRequest(scheduleID, missed, 6)
		assert.NoError(t, err)
		assert.Equal(t, model.MissedPending, req.Status)

		exists, err := store.PendingMissedDoseExists(scheduleID, missed)
		assert.NoError(t, err)
		assert.True(t, exists)

		pending, err := store.ListPendingMissedDoses(&tankID)
		assert.NoError(t, err)
		assert.NotEmpty(t, pending)

		err = store.ResolveMissedDoseRequest(req.ID, model.MissedApproved, "operator", "looked fine", now)
		assert.NoError(t, err)

		resolved, err := store.GetMissedDoseRequest(req.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.MissedApproved, resolved.Status)

		// resolving a decided request is a not-found, the pending row is gone
		err = store.ResolveMissedDoseRequest(req.ID, model.MissedRejected, "operator", "", now)
		assert.ErrorIs(t, err, db.ErrNotFound)

		exists, err = store.PendingMissedDoseExists(scheduleID, missed)
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Missed Dose Housekeeping", func(t *testing.T) {
		var staleID int
		require.NoError(t, db.DB.QueryRow(
			`INSERT INTO missed_dose_requests (schedule_id, missed_dose_time, hours_missed, status, detected_at)
			 VALUES ($1, $2, 72, 'pending', $2) RETURNING id`,
			scheduleID, now.Add(-72*time.Hour)).Scan(&staleID))

		expired, err := store.ExpirePendingMissedDoses(now.Add(-48 * time.Hour))
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, expired, 1)

		r, err := store.GetMissedDoseRequest(staleID)
		assert.NoError(t, err)
		assert.Equal(t, model.MissedExpired, r.Status)
		assert.NotNil(t, r.DecidedAt)

		// a decided row older than the cutoff is pruned
		pruned, err := store.DeleteDecidedMissedDoses(now.Add(time.Hour))
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, pruned, 1)
		_, err = store.GetMissedDoseRequest(staleID)
		assert.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("Audit Log", func(t *testing.T) {
		err := store.InsertAuditEntry(model.AuditEntry{
			Event:      model.AuditDoseExecuted,
			ScheduleID: &scheduleID,
			TankID:     &tankID,
			Message:    "dosed 10.00 ml of alkalinity",
			Detail:     model.JSONMap{"dose_id": 1},
			CreatedAt:  now,
		})
		assert.NoError(t, err)

		entries, err := store.ListRecentAuditEntries(10)
		assert.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, model.AuditDoseExecuted, entries[0].Event)
	})
}
