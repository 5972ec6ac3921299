package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

func (st *pgStore) GetProductByID(id int) (model.Product, error) {
	var p model.Product
	err := st.db.Get(&p, `
	SELECT id, tank_id, name, current_avail, total_volume, last_refill, created_at, updated_at
	  FROM products
	 WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("product_id", id).Msg("GetProductByID failed")
		return model.Product{}, err
	}
	return p, nil
}

// RefillProduct adds amount to the available volume, or fills to total_volume
// when amount is nil, and stamps last_refill.
func (st *pgStore) RefillProduct(productID int, amount *float64, now time.Time) (model.Product, error) {
	tx, err := st.db.Beginx()
	if err != nil {
		return model.Product{}, fmt.Errorf("begin refill transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur struct {
		CurrentAvail float64 `db:"current_avail"`
		TotalVolume  float64 `db:"total_volume"`
	}
	err = tx.Get(&cur, `SELECT current_avail, total_volume FROM products WHERE id = $1 FOR UPDATE;`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("product_id", productID).Msg("RefillProduct lookup failed")
		return model.Product{}, err
	}

	newAvail := cur.TotalVolume
	if amount != nil {
		newAvail = cur.CurrentAvail + *amount
	}

	var p model.Product
	if err := tx.Get(&p, `
	UPDATE products
	   SET current_avail = $2, last_refill = $3, updated_at = now()
	 WHERE id = $1
	RETURNING id, tank_id, name, current_avail, total_volume, last_refill, created_at, updated_at;`,
		productID, newAvail, now); err != nil {
		log.Error().Err(err).Int("product_id", productID).Msg("RefillProduct update failed")
		return model.Product{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Product{}, fmt.Errorf("commit refill transaction: %w", err)
	}
	return p, nil
}

func (st *pgStore) GetDoserByID(id int) (model.Doser, error) {
	var d model.Doser
	err := st.db.Get(&d, `SELECT id, name, transport, endpoint, created_at FROM dosers WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Doser{}, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int("doser_id", id).Msg("GetDoserByID failed")
		return model.Doser{}, err
	}
	return d, nil
}
