/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/metrics"
	"github.com/HamedShams/effort-pulse/internal/report"
	"github.com/HamedShams/effort-pulse/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type service interface {
	Period(days int) (time.Time, time.Time)
	GenerateReport(ctx context.Context, start, end time.Time) (*services.GenerateResult, error)
	EmailReport(ctx context.Context, recipients []string, start, end time.Time) (*services.EmailResult, error)
	StartScheduledReport() error
	ScheduleStatus() services.ScheduleStatus
	ListReports() ([]report.Entry, error)
	ReportPath(name string) (string, error)
	DeleteReport(name string) error
	GetLastRun(ctx context.Context) (*domain.JobRun, error)
	UserReport(ctx context.Context, userID string, start, end time.Time) (*metrics.UserReport, error)
	ProjectReport(ctx context.Context, projectID string, start, end time.Time) (*metrics.ProjectReport, error)
	LogWork(ctx context.Context, taskID, userID string, hours float64, note string) (*domain.Task, error)
	BlockTask(ctx context.Context, taskID, blockType, reason string) (*domain.Task, error)
	UnblockTask(ctx context.Context, taskID string) (*domain.Task, error)
	CompleteTask(ctx context.Context, taskID string, validated bool) (*domain.Task, error)
	RunOnDemandReport(ctx context.Context, chatID int64, days int) error
	SendHelp(ctx context.Context, chatID int64) error
	SendStatus(ctx context.Context, chatID int64) error
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc}
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidFilename):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	st := statusOf(err)
	if st >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("p", c.FullPath()).Msg("request failed")
	}
	c.JSON(st, gin.H{"error": err.Error()})
}

// parseTime accepts RFC3339 or a plain YYYY-MM-DD date (UTC midnight).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, domain.Invalid("time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// period resolves start/end, falling back to the last days days.
func (h *Handlers) period(start, end string, days int) (time.Time, time.Time, error) {
	s, e := h.svc.Period(days)
	var err error
	if start != "" {
		if s, err = parseTime(start); err != nil {
			return s, e, err
		}
	}
	if end != "" {
		if e, err = parseTime(end); err != nil {
			return s, e, err
		}
		if len(end) == len("2006-01-02") {
			e = e.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !e.After(s) {
		return s, e, domain.Invalid("end must be after start")
	}
	return s, e, nil
}

func (h *Handlers) queryPeriod(c *gin.Context) (time.Time, time.Time, error) {
	days, _ := strconv.Atoi(c.Query("days"))
	return h.period(c.Query("start"), c.Query("end"), days)
}

type periodBody struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Days       int      `json:"days"`
	Recipients []string `json:"recipients"`
}

func (h *Handlers) bodyPeriod(c *gin.Context) (periodBody, time.Time, time.Time, error) {
	var b periodBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&b); err != nil {
			return b, time.Time{}, time.Time{}, domain.Invalid("body: %v", err)
		}
	}
	s, e, err := h.period(b.Start, b.End, b.Days)
	return b, s, e, err
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.svc.GetLastRun(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lr)
}

func (h *Handlers) RunNow(c *gin.Context) {
	if err := h.svc.StartScheduledReport(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) GenerateReport(c *gin.Context) {
	_, start, end, err := h.bodyPeriod(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.GenerateReport(c.Request.Context(), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) EmailReport(c *gin.Context) {
	b, start, end, err := h.bodyPeriod(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	recipients := b.Recipients
	if len(recipients) == 0 {
		recipients = h.cfg.ReportRecipients
	}
	res, err := h.svc.EmailReport(c.Request.Context(), recipients, start, end)
	if errors.Is(err, domain.ErrAllDeliveriesFailed) && res != nil {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) ListReports(c *gin.Context) {
	list, err := h.svc.ListReports()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": list, "count": len(list)})
}

func (h *Handlers) Schedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ScheduleStatus())
}

func (h *Handlers) DownloadReport(c *gin.Context) {
	name := c.Param("filename")
	path, err := h.svc.ReportPath(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.FileAttachment(path, name)
}

func (h *Handlers) DeleteReport(c *gin.Context) {
	if err := h.svc.DeleteReport(c.Param("filename")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("filename")})
}

func (h *Handlers) UserMetrics(c *gin.Context) {
	start, end, err := h.queryPeriod(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rep, err := h.svc.UserReport(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handlers) ProjectMetrics(c *gin.Context) {
	start, end, err := h.queryPeriod(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rep, err := h.svc.ProjectReport(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handlers) LogWork(c *gin.Context) {
	var req struct {
		UserID string  `json:"userId"`
		Hours  float64 `json:"hours"`
		Note   string  `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Invalid("body: %v", err))
		return
	}
	h.taskResult(c)(h.svc.LogWork(c.Request.Context(), c.Param("id"), req.UserID, req.Hours, req.Note))
}

func (h *Handlers) BlockTask(c *gin.Context) {
	var req struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Invalid("body: %v", err))
		return
	}
	h.taskResult(c)(h.svc.BlockTask(c.Request.Context(), c.Param("id"), req.Type, req.Reason))
}

func (h *Handlers) UnblockTask(c *gin.Context) {
	h.taskResult(c)(h.svc.UnblockTask(c.Request.Context(), c.Param("id")))
}

func (h *Handlers) CompleteTask(c *gin.Context) {
	var req struct {
		Validated bool `json:"validated"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, domain.Invalid("body: %v", err))
			return
		}
	}
	h.taskResult(c)(h.svc.CompleteTask(c.Request.Context(), c.Param("id"), req.Validated))
}

func (h *Handlers) taskResult(c *gin.Context) func(*domain.Task, error) {
	return func(t *domain.Task, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func (h *Handlers) TelegramWebhook(c *gin.Context) {
	headerSecret := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
	pathSecret := c.Param("secret")
	if h.cfg.TelegramWebhookSecret == "" ||
		(headerSecret != h.cfg.TelegramWebhookSecret && pathSecret != h.cfg.TelegramWebhookSecret) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	h.log.Info().Str("ip", c.ClientIP()).Str("ua", c.GetHeader("User-Agent")).Msg("telegram webhook received")

	var upd struct {
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			Text string `json:"text"`
		} `json:"message"`
	}
	if err := c.ShouldBindJSON(&upd); err == nil && upd.Message != nil {
		chatID := upd.Message.Chat.ID
		allowed := len(h.cfg.TelegramChatIDs) == 0
		for _, id := range h.cfg.TelegramChatIDs {
			if id == chatID {
				allowed = true
				break
			}
		}
		if allowed {
			h.dispatchCommand(chatID, strings.TrimSpace(upd.Message.Text))
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) dispatchCommand(chatID int64, text string) {
	var run func(ctx context.Context) error
	switch text {
	case "/report", "/report 7d":
		run = func(ctx context.Context) error { return h.svc.RunOnDemandReport(ctx, chatID, 7) }
	case "/report 30d":
		run = func(ctx context.Context) error { return h.svc.RunOnDemandReport(ctx, chatID, 30) }
	case "/status":
		run = func(ctx context.Context) error { return h.svc.SendStatus(ctx, chatID) }
	case "/start", "/help":
		run = func(ctx context.Context) error { return h.svc.SendHelp(ctx, chatID) }
	default:
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.JobTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			h.log.Warn().Err(err).Int64("chat", chatID).Str("cmd", text).Msg("telegram command failed")
		}
	}()
}
