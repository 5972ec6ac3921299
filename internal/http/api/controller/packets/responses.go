package packets

import "time"

type TriggerDoseResponse struct {
	Success bool    `json:"success"`
	DoseID  int     `json:"dose_id"`
	Amount  float64 `json:"amount"`
}

type RefillResponse struct {
	Success      bool       `json:"success"`
	CurrentAvail float64    `json:"current_avail"`
	LastRefill   *time.Time `json:"last_refill"`
}

type ApprovalResponse struct {
	Success bool   `json:"success"`
	DoseID  int    `json:"dose_id,omitempty"`
	Message string `json:"message"`
}
