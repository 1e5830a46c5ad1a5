package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jmailbox/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLimitInvalid = "invalid 'limit'; use a positive integer"
	errListLogs     = "failed to load logs"
	errListAlerts   = "failed to load alerts"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// queryList collects a repeatable, comma-separated query parameter.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryLimit(c *gin.Context) (int, bool) {
	qs := c.Query("limit")
	if qs == "" {
		return 0, true
	}
	v, err := strconv.Atoi(qs)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// @Summary      List logs
// @Description  The most recent 'limit' lines are taken first, then filtered by level, device and date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). Newest first. 'levels' counts the last 100 lines.
// @Tags         logs
// @Produce      json
// @Param        from    query   string  false  "Start of range"  example(2025-08-01)
// @Param        to      query   string  false  "End of range. Date-only treated as end of day."  example(2025-08-31)
// @Param        level   query   string  false  "Comma-separated levels"  example(WARNING,ERROR)
// @Param        device  query   string  false  "Comma-separated device ids"
// @Param        limit   query   int     false  "Window size, default 100, max 500"
// @Success      200     {object}  map[string]interface{}  "count, events, levels"
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /api/v1/logs [get]
func (h *Handler) getLogs(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		from time.Time
		to   time.Time
		err  error
	)
	// Parse 'from' (optional)
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	// Parse 'to' (optional). If only a date is provided, make it end-of-day inclusive.
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	limit, ok := queryLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
		return
	}

	filter := service.LogFilter{
		From:    from,
		To:      to,
		Levels:  queryList(c, "level"),
		Devices: queryList(c, "device"),
		Limit:   limit,
	}
	events, err := h.services.EventLog.Logs(ctx, filter)
	if err != nil {
		h.respondServiceError(c, errListLogs, "logs_list_failed", err, "from", from, "to", to, "levels", filter.Levels)
		return
	}
	levels, err := h.services.EventLog.LevelCounts(ctx, service.LevelWindow)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListLogs, "logs_levels_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
		"levels": levels,
	})
}

// @Summary      Alert summary
// @Description  Totals over the whole alert journal plus the most recent alerts, newest first.
// @Tags         logs
// @Produce      json
// @Param        limit  query   int  false  "Number of alerts, default 20"
// @Success      200    {object}  service.AlertSummary
// @Failure      400    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/alerts [get]
func (h *Handler) getAlerts(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
		return
	}
	sum, err := h.services.EventLog.Alerts(c.Request.Context(), service.AlertFilter{Limit: limit})
	if err != nil {
		h.respondServiceError(c, errListAlerts, "alerts_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func parseQueryTime(s string) (time.Time, error) {
	// Try multiple accepted formats, normalizing to UTC.
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
