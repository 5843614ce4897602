package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/telegram"
	"github.com/secondbrainhq/secondbrain/pkg/version"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handlers) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !h.deps.Gateway.Healthy(c.Request.Context()) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"version": version.Full(),
	})
}

type captureRequest struct {
	Text          string         `json:"text" binding:"required"`
	Channel       string         `json:"channel"`
	ChannelID     string         `json:"channel_id"`
	Confirmed     bool           `json:"confirmed"`
	PendingAction map[string]any `json:"pending_action"`
}

func (h *handlers) capture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	chctx := notify.ChannelContext{Channel: req.Channel, ChatID: req.ChannelID}
	if chctx.Channel == "" {
		chctx.Channel = notify.ChannelAPI
	}

	result, err := h.deps.Pipeline.Process(c.Request.Context(), req.Text, chctx, req.Confirmed, req.PendingAction)
	if err != nil {
		h.logger.Error("capture failed", "error", err)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) inboxLogs(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	logs, err := h.deps.Inbox.List(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *handlers) pendingClarifications(c *gin.Context) {
	pending, err := h.deps.HITL.Pending(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clarifications": pending})
}

type clarificationResponse struct {
	Choice    string `json:"choice"`
	Status    string `json:"status"` // approved, rejected; defaults to answered
	Channel   string `json:"channel"`
	ChannelID string `json:"channel_id"`
}

func (h *handlers) respondClarification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	var req clarificationResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	// Approvals and rejections just settle the request; answered choices
	// re-run the original capture against the chosen entity.
	if req.Status == models.RequestApproved || req.Status == models.RequestRejected {
		resolved, err := h.deps.HITL.Respond(c.Request.Context(), id, req.Status, req.Choice)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, resolved)
		return
	}

	chctx := notify.ChannelContext{Channel: req.Channel, ChatID: req.ChannelID}
	if chctx.Channel == "" {
		chctx.Channel = notify.ChannelAPI
	}
	result, err := h.deps.Pipeline.RespondToClarification(c.Request.Context(), id, req.Choice, chctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) listSchedules(c *gin.Context) {
	schedules, err := h.deps.Schedules.ListSchedules(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *handlers) createSchedule(c *gin.Context) {
	var sched models.Schedule
	if err := c.ShouldBindJSON(&sched); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	created, err := h.deps.Schedules.CreateSchedule(c.Request.Context(), &sched)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handlers) updateSchedule(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	var sched models.Schedule
	if err := c.ShouldBindJSON(&sched); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	sched.ID = id
	updated, err := h.deps.Schedules.UpdateSchedule(c.Request.Context(), &sched)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteSchedule(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	if err := h.deps.Schedules.DeleteSchedule(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listJobs(c *gin.Context) {
	jobs, err := h.deps.Schedules.ListJobs(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

type jobUpdate struct {
	Enabled    *bool  `json:"enabled"`
	ScheduleID *int64 `json:"schedule_id"`
}

func (h *handlers) updateJob(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	var req jobUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	job, err := h.deps.Schedules.UpdateJob(c.Request.Context(), id, req.Enabled, req.ScheduleID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handlers) runJob(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}
	job, err := h.deps.Schedules.GetJob(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	receipt, err := h.deps.Runner.RunNow(c.Request.Context(), job.JobName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

func (h *handlers) syncLogs(c *gin.Context) {
	logs, err := h.deps.SyncStore.ListLogs(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *handlers) reportChannels(c *gin.Context) {
	channels, err := h.deps.Reports.ActiveChannels(c.Request.Context(), c.Param("type"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

type recipientRequest struct {
	ChannelType string `json:"channel_type" binding:"required"`
	Recipient   string `json:"recipient" binding:"required"`
}

func (h *handlers) addRecipient(c *gin.Context) {
	var req recipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "channel_type and recipient are required"})
		return
	}
	err := h.deps.Reports.AddRecipient(c.Request.Context(), c.Param("type"), req.ChannelType, req.Recipient)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) removeRecipient(c *gin.Context) {
	var req recipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "channel_type and recipient are required"})
		return
	}
	err := h.deps.Reports.RemoveRecipient(c.Request.Context(), c.Param("type"), req.ChannelType, req.Recipient)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) reloadAgents(c *gin.Context) {
	if h.deps.AgentsReload != nil {
		h.deps.AgentsReload()
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) reloadConfig(c *gin.Context) {
	h.deps.Config.Invalidate()
	h.deps.TgSender.Invalidate()
	c.Status(http.StatusNoContent)
}

// telegramUpdate is the subset of the Bot API update envelope we consume.
type telegramUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

func (h *handlers) telegramWebhook(c *gin.Context) {
	cfg, err := h.deps.TgSender.Config(c.Request.Context())
	if err != nil {
		writeServiceError(c, fmt.Errorf("%w: telegram not configured", services.ErrConfig))
		return
	}
	if cfg.WebhookSecret != "" &&
		c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != cfg.WebhookSecret {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid webhook secret"})
		return
	}

	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid update"})
		return
	}
	if update.Message.Text == "" {
		c.Status(http.StatusOK)
		return
	}

	// Answer the webhook fast; the pipeline may take model-call seconds.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		h.deps.Telegram.Handle(ctx, telegram.Update{
			ChatID: strconv.FormatInt(update.Message.Chat.ID, 10),
			Text:   update.Message.Text,
		})
	}()
	c.Status(http.StatusOK)
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
