/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// adminToken guards a route group with X-Admin-Token when one is configured.
func adminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter wires every route; ws may be nil when realtime push is off.
func NewRouter(cfg config.Config, log zerolog.Logger, svc service, ws http.Handler) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc)
	guard := adminToken(cfg.AdminToken)

	r.GET("/healthz", h.Healthz)

	admin := r.Group("/admin", guard)
	admin.GET("/last-run", h.LastRun)
	admin.POST("/run", h.RunNow)

	api := r.Group("/api")
	reports := api.Group("/reports", guard)
	reports.POST("/generate", h.GenerateReport)
	reports.POST("/email", h.EmailReport)
	reports.GET("", h.ListReports)
	reports.GET("/schedule", h.Schedule)
	reports.GET("/:filename", h.DownloadReport)
	reports.DELETE("/:filename", h.DeleteReport)

	api.GET("/metrics/users/:id", h.UserMetrics)
	api.GET("/metrics/projects/:id", h.ProjectMetrics)

	api.POST("/tasks/:id/worklogs", h.LogWork)
	api.POST("/tasks/:id/block", h.BlockTask)
	api.POST("/tasks/:id/unblock", h.UnblockTask)
	api.POST("/tasks/:id/complete", h.CompleteTask)

	// Support both header-authenticated and path-secret webhook endpoints
	r.POST("/telegram/webhook", h.TelegramWebhook)
	r.POST("/telegram/webhook/:secret", h.TelegramWebhook)

	if ws != nil {
		r.GET("/ws", gin.WrapH(ws))
	}
	return r
}
