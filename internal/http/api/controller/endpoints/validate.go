package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reeflab/reefdb/internal/http/api"
	"github.com/reeflab/reefdb/internal/model"
	"github.com/reeflab/reefdb/internal/scheduler"
)

// ValidationModule exposes the schedule validator to the CRUD layer so
// conflicting configurations are rejected before they are persisted.
func ValidationModule() api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/controller/schedules/validate", validateSchedule)
	})
}

func validateSchedule(ctx *gin.Context) (any, *api.APIError) {
	var s model.Schedule
	if err := ctx.ShouldBindJSON(&s); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	return scheduler.ValidateSchedule(s), nil
}
