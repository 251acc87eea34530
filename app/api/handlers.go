package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/content-hub/app/auth"
	"github.com/lysyi3m/content-hub/app/database"
	"github.com/lysyi3m/content-hub/app/feed"
	"github.com/lysyi3m/content-hub/app/importer"
	"github.com/lysyi3m/content-hub/app/tasks"
)

const maxContentLimit = 200

func NewHandler(store ContentStore, authenticator Authenticator, parser feed.ParseClient,
	importers []*importer.Importer, presets PresetSource, notifications NotificationLister,
	scheduler tasks.TaskSchedulerInterface, version, baseURL string) *Handler {
	byKind := make(map[feed.Kind]*importer.Importer, len(importers))
	for _, im := range importers {
		byKind[im.Kind()] = im
	}

	return &Handler{
		store:         store,
		auth:          authenticator,
		parser:        parser,
		importers:     byKind,
		presets:       presets,
		notifications: notifications,
		scheduler:     scheduler,
		version:       version,
		rss:           NewRSSGenerator(baseURL),
		checks:        make(map[string]HealthChecker),
	}
}

// AddHealthCheck includes an optional backend in the health report.
func (h *Handler) AddHealthCheck(name string, checker HealthChecker) {
	h.checks[name] = checker
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.store.CountContent(c.Request.Context()); err == nil {
		health["content"] = count
	} else {
		slog.Error("Database error", "operation", "count_content", "error", err)
		health["status"] = "degraded"
	}

	if h.presets != nil {
		health["loaded_presets"] = h.presets.GetPresetCount()
	}

	imports := make(map[string]string, len(h.importers))
	for kind, im := range h.importers {
		imports[string(kind)] = string(im.Snapshot().Phase)
	}
	health["imports"] = imports

	for name, checker := range h.checks {
		result := checker.Health(c.Request.Context())
		if result["status"] != "healthy" {
			health["status"] = "degraded"
		}
		health[name] = result
	}

	c.JSON(http.StatusOK, health)
}

// ParseFeed is the parse function: fetch one feed and return its items.
func (h *Handler) ParseFeed(c *gin.Context) {
	var req feed.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Debug("Parse request body not decoded", "error", err)
	}

	resp, err := h.parser.Parse(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		var feedErr *feed.Error
		if errors.As(err, &feedErr) {
			status = feedErr.HTTPStatus()
		}
		slog.Error("Error processing feed", "url", req.URL, "status", status, "error", err)
		c.JSON(status, feed.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid login credentials"})
		return
	}
	if err != nil {
		slog.Error("Login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		slog.Error("Logout failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListContent serves the public feed.
func (h *Handler) ListContent(c *gin.Context) {
	filter, ok := contentFilter(c)
	if !ok {
		return
	}

	items, err := h.store.ListContent(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_content", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch content. Please try again later."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  len(items),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// ContentRSS serves the same listing as an RSS 2.0 document.
func (h *Handler) ContentRSS(c *gin.Context) {
	filter, ok := contentFilter(c)
	if !ok {
		return
	}

	items, err := h.store.ListContent(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "content_rss", "error", err)
		c.String(http.StatusInternalServerError, "Failed to fetch content")
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(h.rss.Generate(filter.Type, items)))
}

func contentFilter(c *gin.Context) (database.ContentFilter, bool) {
	contentType := c.DefaultQuery("type", "all")
	switch contentType {
	case "all", feed.ContentTypeVideo, feed.ContentTypeBlog, feed.ContentTypePodcast:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown content type"})
		return database.ContentFilter{}, false
	}

	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit < 1 || limit > maxContentLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return database.ContentFilter{}, false
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return database.ContentFilter{}, false
	}

	return database.ContentFilter{
		Type:   contentType,
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	}, true
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.store.ListContentSources(c.Request.Context(), database.SourceFilter{Type: c.Query("type")})
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) DeleteSource(c *gin.Context) {
	id := c.Param("id")

	err := h.store.DeleteContentSource(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Content source not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "delete_source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Content source deleted", "id", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetImportState(c *gin.Context) {
	im, ok := h.importer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, im.Snapshot())
}

func (h *Handler) AddFeed(c *gin.Context) {
	im, ok := h.importer(c)
	if !ok {
		return
	}
	im.AddFeed()
	c.JSON(http.StatusCreated, im.Snapshot())
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	im, ok := h.importer(c)
	if !ok {
		return
	}
	index, ok := feedIndex(c)
	if !ok {
		return
	}

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := im.UpdateFeed(index, req.Field, req.Value); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, importer.ErrFeedIndex) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, im.Snapshot())
}

func (h *Handler) RemoveFeed(c *gin.Context) {
	im, ok := h.importer(c)
	if !ok {
		return
	}
	index, ok := feedIndex(c)
	if !ok {
		return
	}

	if err := im.RemoveFeed(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, im.Snapshot())
}

// LoadPreset replaces the pending feeds with the configured preset list.
func (h *Handler) LoadPreset(c *gin.Context) {
	im, ok := h.importer(c)
	if !ok {
		return
	}
	if h.presets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No presets configured"})
		return
	}

	entries := h.presets.GetPreset(im.Kind())
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No preset for feed kind"})
		return
	}
	if im.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": importer.ErrImportInProgress.Error()})
		return
	}

	im.SetFeeds(entries)
	c.JSON(http.StatusOK, im.Snapshot())
}

// ParseFeeds queues the pending batch on the task scheduler.
func (h *Handler) ParseFeeds(c *gin.Context) {
	im, ok := h.importer(c)
	if !ok {
		return
	}
	if im.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": importer.ErrImportInProgress.Error()})
		return
	}

	user := auth.UserFromContext(c.Request.Context())
	task := tasks.NewImportFeedsTask(im, user)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue ImportFeedsTask", "kind", im.Kind(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Import could not be queued"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"task_id": task.GetID(),
		"kind":    im.Kind(),
	})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	var notifications []importer.Notification
	if h.notifications != nil {
		notifications = h.notifications.List()
	}
	if notifications == nil {
		notifications = []importer.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *Handler) importer(c *gin.Context) (*importer.Importer, bool) {
	kind, err := feed.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown feed kind"})
		return nil, false
	}
	im, ok := h.importers[kind]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Importer not configured"})
		return nil, false
	}
	return im, true
}

func feedIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed index"})
		return 0, false
	}
	return index, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
