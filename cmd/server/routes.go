package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/reeflab/reefdb/internal/alerts"
	"github.com/reeflab/reefdb/internal/db"
	"github.com/reeflab/reefdb/internal/http/api"
	"github.com/reeflab/reefdb/internal/http/api/controller/endpoints"
	"github.com/reeflab/reefdb/internal/metrics"
	"github.com/reeflab/reefdb/internal/scheduler"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, store db.Store, sched *scheduler.Scheduler, alertPub *alerts.Publisher) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
	},
		endpoints.DosingModule(store),
		endpoints.SchedulerModule(sched),
		endpoints.MissedDoseModule(store, sched),
		endpoints.ValidationModule(),
		endpoints.AuditModule(store),
		endpoints.AlertsModule(alertPub),
	)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
}
