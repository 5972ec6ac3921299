package model

import "time"

type Tank struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Product struct {
	ID           int        `db:"id" json:"id"`
	TankID       int        `db:"tank_id" json:"tank_id"`
	Name         string     `db:"name" json:"name"`
	CurrentAvail float64    `db:"current_avail" json:"current_avail"`
	TotalVolume  float64    `db:"total_volume" json:"total_volume"`
	LastRefill   *time.Time `db:"last_refill" json:"last_refill"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	DoserTransportHTTP = "http"
	DoserTransportMQTT = "mqtt"
)

// Doser is a physical dosing pump reachable over HTTP or MQTT. Endpoint is a
// base URL for HTTP dosers and unused for MQTT dosers (topics derive from ID).
type Doser struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Transport string    `db:"transport" json:"transport"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
