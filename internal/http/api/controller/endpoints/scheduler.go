package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reeflab/reefdb/internal/http/api"
	"github.com/reeflab/reefdb/internal/scheduler"
)

type SchedulerController struct {
	sched *scheduler.Scheduler
}

func NewSchedulerController(sched *scheduler.Scheduler) *SchedulerController {
	return &SchedulerController{sched: sched}
}

func SchedulerModule(sched *scheduler.Scheduler) api.Module {
	ctl := NewSchedulerController(sched)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/controller/scheduler/status", ctl.status)
		c.POST("/controller/scheduler/start", ctl.start)
		c.POST("/controller/scheduler/stop", ctl.stop)
		c.POST("/controller/scheduler/restart", ctl.restart)
		c.POST("/controller/scheduler/refresh", ctl.refresh)
	})
}

func (s *SchedulerController) status(ctx *gin.Context) (any, *api.APIError) {
	return s.sched.Status(), nil
}

func (s *SchedulerController) start(ctx *gin.Context) (any, *api.APIError) {
	if err := s.sched.Start(); err != nil {
		return nil, &api.APIError{Code: http.StatusConflict, Message: err.Error()}
	}
	return gin.H{"message": "scheduler started"}, nil
}

func (s *SchedulerController) stop(ctx *gin.Context) (any, *api.APIError) {
	s.sched.Stop()
	return gin.H{"message": "scheduler stopped"}, nil
}

func (s *SchedulerController) restart(ctx *gin.Context) (any, *api.APIError) {
	if err := s.sched.Restart(); err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: err.Error()}
	}
	return gin.H{"message": "scheduler restarted"}, nil
}

func (s *SchedulerController) refresh(ctx *gin.Context) (any, *api.APIError) {
	s.sched.ForceRefresh()
	status := s.sched.Status()
	return gin.H{"message": "queue refreshed", "queue_size": status.QueueSize}, nil
}
