package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lysyi3m/rss-scout/app/feed"
	"github.com/lysyi3m/rss-scout/app/monitor"
)

func NewHandler(registry FeedRegistry, mon FeedMonitor, version string) *Handler {
	return &Handler{
		registry: registry,
		monitor:  mon,
		version:  version,
		now:      time.Now,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"monitor":   h.monitor.State(),
		"feeds":     h.registry.Health(),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Stats())
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds := h.registry.GetFeeds()

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeed(c *gin.Context) {
	def, err := h.registry.GetFeed(c.Param("id"))
	if err != nil {
		writeError(c, "get_feed", err)
		return
	}

	c.JSON(http.StatusOK, def)
}

func (h *Handler) APICreateFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	def, err := h.registry.AddFeed(c.Request.Context(), req.definition(id, true))
	if err != nil {
		writeError(c, "add_feed", err)
		return
	}

	c.JSON(http.StatusCreated, def)
}

func (h *Handler) APIUpdateFeed(c *gin.Context) {
	id := c.Param("id")

	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	existing, err := h.registry.GetFeed(id)
	if err != nil {
		writeError(c, "update_feed", err)
		return
	}

	def, err := h.registry.UpdateFeed(c.Request.Context(), req.definition(id, existing.Active))
	if err != nil {
		writeError(c, "update_feed", err)
		return
	}

	c.JSON(http.StatusOK, def)
}

func (h *Handler) APIDeleteFeed(c *gin.Context) {
	if err := h.registry.RemoveFeed(c.Param("id")); err != nil {
		writeError(c, "remove_feed", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) APICheckFeed(c *gin.Context) {
	// A client hanging up must not cancel forwards already under way.
	report, err := h.monitor.CheckFeed(context.WithoutCancel(c.Request.Context()), c.Param("id"), h.now())
	if err != nil {
		writeError(c, "check_feed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIStartMonitor(c *gin.Context) {
	h.monitor.Start()
	c.JSON(http.StatusOK, gin.H{"state": h.monitor.State()})
}

func (h *Handler) APIStopMonitor(c *gin.Context) {
	h.monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"state": h.monitor.State()})
}

func (h *Handler) APITick(c *gin.Context) {
	report := h.monitor.Tick(context.WithoutCancel(c.Request.Context()), h.now())
	if report.Overlapped {
		c.JSON(http.StatusConflict, gin.H{"error": monitor.ErrTickInProgress.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIResetProcessed(c *gin.Context) {
	h.monitor.ClearProcessed()
	c.JSON(http.StatusOK, h.monitor.Stats())
}

func writeError(c *gin.Context, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, feed.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, feed.ErrDuplicate), errors.Is(err, monitor.ErrTickInProgress):
		status = http.StatusConflict
	case errors.Is(err, feed.ErrNotFound):
		status = http.StatusNotFound
	default:
		slog.Error("API request failed", "operation", operation, "error", err)
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
