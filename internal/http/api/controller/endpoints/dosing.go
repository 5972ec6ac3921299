package endpoints

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reeflab/reefdb/internal/db"
	"github.com/reeflab/reefdb/internal/http/api"
	"github.com/reeflab/reefdb/internal/http/api/controller/packets"
)

type DosingController struct {
	store db.Store
}

func NewDosingController(store db.Store) *DosingController {
	return &DosingController{store: store}
}

func DosingModule(store db.Store) api.Module {
	ctl := NewDosingController(store)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/controller/dose", ctl.triggerDose)
		c.POST("/controller/refill", ctl.refillProduct)
	})
}

// triggerDose is the trigger-dose action: availability decrement and dose
// event insert in one transaction. Both the scheduler's executor and manual
// dosing go through it.
func (d *DosingController) triggerDose(ctx *gin.Context) (any, *api.APIError) {
	var request packets.TriggerDoseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	ev, err := d.store.TriggerDose(request.ScheduleID, request.TankID, time.Now())
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "no schedule found for this tank and schedule id"}
	case errors.Is(err, db.ErrInsufficientProduct):
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "not enough available product"}
	case err != nil:
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not record dose"}
	}

	return api.Created{Body: packets.TriggerDoseResponse{
		Success: true,
		DoseID:  ev.ID,
		Amount:  ev.Amount,
	}}, nil
}

func (d *DosingController) refillProduct(ctx *gin.Context) (any, *api.APIError) {
	var request packets.RefillRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	p, err := d.store.RefillProduct(request.ProductID, request.Amount, time.Now())
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "product not found"}
	case err != nil:
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not refill product"}
	}

	return packets.RefillResponse{
		Success:      true,
		CurrentAvail: p.CurrentAvail,
		LastRefill:   p.LastRefill,
	}, nil
}
