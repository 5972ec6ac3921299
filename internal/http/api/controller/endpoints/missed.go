package endpoints

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reeflab/reefdb/internal/db"
	"github.com/reeflab/reefdb/internal/http/api"
	"github.com/reeflab/reefdb/internal/http/api/controller/packets"
	"github.com/reeflab/reefdb/internal/scheduler"
)

type MissedDoseController struct {
	store db.Store
	sched *scheduler.Scheduler
}

func NewMissedDoseController(store db.Store, sched *scheduler.Scheduler) *MissedDoseController {
	return &MissedDoseController{store: store, sched: sched}
}

func MissedDoseModule(store db.Store, sched *scheduler.Scheduler) api.Module {
	ctl := NewMissedDoseController(store, sched)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/controller/missed-doses", ctl.listPending)
		c.POST("/controller/missed-doses/:id/approve", ctl.approve)
		c.POST("/controller/missed-doses/:id/reject", ctl.reject)
	})
}

func (m *MissedDoseController) listPending(ctx *gin.Context) (any, *api.APIError) {
	var tankID *int
	if raw := ctx.Query("tank_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid tank id"}
		}
		tankID = &id
	}

	pending, err := m.store.ListPendingMissedDoses(tankID)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list pending requests"}
	}
	return gin.H{"pending_requests": pending, "count": len(pending)}, nil
}

func (m *MissedDoseController) approve(ctx *gin.Context) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid request id"}
	}

	var request packets.DecisionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && err.Error() != "EOF" {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if request.DecidedBy == "" {
		request.DecidedBy = "operator"
	}

	result, err := m.sched.ApproveMissedDose(ctx, id, request.DecidedBy, request.Notes)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "request not found"}
	case errors.Is(err, scheduler.ErrRequestNotPending):
		return nil, &api.APIError{Code: http.StatusConflict, Message: "request is no longer pending"}
	case err != nil:
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not approve missed dose"}
	}

	return packets.ApprovalResponse{
		Success: true,
		DoseID:  result.DoseID,
		Message: "missed dose approved and dosed",
	}, nil
}

func (m *MissedDoseController) reject(ctx *gin.Context) (any, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid request id"}
	}

	var request packets.DecisionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && err.Error() != "EOF" {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if request.DecidedBy == "" {
		request.DecidedBy = "operator"
	}

	err = m.sched.RejectMissedDose(ctx, id, request.DecidedBy, request.Notes)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, &api.APIError{Code: http.StatusNotFound, Message: "request not found"}
	case errors.Is(err, scheduler.ErrRequestNotPending):
		return nil, &api.APIError{Code: http.StatusConflict, Message: "request is no longer pending"}
	case err != nil:
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not reject missed dose"}
	}

	return packets.ApprovalResponse{Success: true, Message: "missed dose rejected"}, nil
}
