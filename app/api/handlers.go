package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/pipeline"
)

func NewHandler(p PipelineInterface, store ArticleStoreInterface,
	scheduler SchedulerStatusInterface, sources []feed.Source) *Handler {
	return &Handler{
		pipeline:  p,
		store:     store,
		scheduler: scheduler,
		sources:   sources,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.store.Count(ctx); err == nil {
		health["articles"] = count
	} else {
		slog.Error("Database error", "operation", "count", "error", err)
	}

	if unsent, err := h.store.Unsent(ctx); err == nil {
		health["unsent"] = len(unsent)
	}

	if h.scheduler != nil {
		health["scheduler"] = map[string]interface{}{
			"state":    string(h.scheduler.State()),
			"next_run": h.scheduler.NextRun().Format(time.RFC3339),
		}
	}

	health["sources"] = len(h.sources)

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := make([]map[string]interface{}, 0, len(h.sources))
	for _, src := range h.sources {
		sources = append(sources, map[string]interface{}{
			"name":            src.Name,
			"url":             src.URL,
			"extract_content": src.ExtractContent,
			"timeout":         (time.Duration(src.Timeout) * time.Second).String(),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIRun(c *gin.Context) {
	processed, err := h.pipeline.RunOnce(runContext(c))
	if err != nil {
		h.runError(c, "run", err, gin.H{"processed": processed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (h *Handler) APIDigest(c *gin.Context) {
	report, err := h.pipeline.Digest(runContext(c))
	if err != nil {
		h.runError(c, "digest", err, gin.H{"processed": report.Processed, "delivered": report.Delivered})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIDeliver(c *gin.Context) {
	report, err := h.pipeline.Deliver(runContext(c))
	if err != nil {
		h.runError(c, "deliver", err, gin.H{"delivered": report.Delivered})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APILatestArticles(c *gin.Context) {
	limit := database.DefaultLatestLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	articles, err := h.store.Latest(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "latest", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		response = append(response, toArticleResponse(a))
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": response,
		"total":    len(response),
	})
}

func (h *Handler) runError(c *gin.Context, operation string, err error, body gin.H) {
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": "A pipeline run is already in progress"})
		return
	}

	slog.Error("Pipeline operation failed", "operation", operation, "error", err)
	body["error"] = "Pipeline operation failed"
	body["details"] = err.Error()
	c.JSON(http.StatusInternalServerError, body)
}

// runContext keeps a manual run going when the client disconnects.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
