package packets

type TriggerDoseRequest struct {
	ScheduleID int `json:"schedule_id" binding:"required"`
	TankID     int `json:"tank_id" binding:"required"`
}

// Amount nil means "fill to total volume".
type RefillRequest struct {
	ProductID int      `json:"prod_id" binding:"required"`
	Amount    *float64 `json:"amount"`
}

type DecisionRequest struct {
	DecidedBy string `json:"decided_by"`
	Notes     string `json:"notes"`
}
