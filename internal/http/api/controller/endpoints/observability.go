package endpoints

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reeflab/reefdb/internal/alerts"
	"github.com/reeflab/reefdb/internal/db"
	"github.com/reeflab/reefdb/internal/http/api"
)

// AuditModule exposes the recent audit trail.
func AuditModule(store db.Store) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/controller/audit", func(ctx *gin.Context) (any, *api.APIError) {
			limit := 50
			if raw := ctx.Query("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 1 || n > 500 {
					return nil, &api.APIError{Code: http.StatusBadRequest, Message: "invalid limit"}
				}
				limit = n
			}
			entries, err := store.ListRecentAuditEntries(limit)
			if err != nil {
				return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to list audit entries"}
			}
			return gin.H{"entries": entries, "count": len(entries)}, nil
		})
	})
}

// AlertsModule exposes the recent alert history kept in redis.
func AlertsModule(pub *alerts.Publisher) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/controller/alerts/recent", func(ctx *gin.Context) (any, *api.APIError) {
			recent, err := pub.Recent(ctx, 50)
			if err != nil {
				return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "failed to read alerts"}
			}
			if recent == nil {
				recent = []alerts.Alert{}
			}
			return gin.H{"alerts": recent, "count": len(recent)}, nil
		})
	})
}
