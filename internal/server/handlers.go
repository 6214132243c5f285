package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/smukkama/env-monitor/internal/aggregation"
	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/protocol"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

// NewMux registers the API routes
func NewMux(deps Deps, logger *slog.Logger) *http.ServeMux {
	h := &handlers{deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("DELETE /api/alerts", h.handleClearAlerts)
	mux.HandleFunc("DELETE /api/alerts/{id}", h.handleDismissAlert)
	mux.HandleFunc("POST /api/alerts/refresh", h.handleRefreshAlerts)
	mux.HandleFunc("GET /api/alerts/active", h.handleActiveBreaches)
	mux.HandleFunc("GET /api/alerts/history", h.handleAlertHistory)

	mux.HandleFunc("GET /api/thresholds", h.handleGetThresholds)
	mux.HandleFunc("PUT /api/thresholds/{metric}", h.handleUpdateThreshold)
	mux.HandleFunc("POST /api/thresholds/{metric}/toggle", h.handleToggleThreshold)

	mux.HandleFunc("GET /api/dashboard", h.handleDashboard)
	mux.HandleFunc("GET /api/statistics", h.handleStatistics)
	mux.HandleFunc("GET /api/refresh", h.handleRefreshStatus)
	mux.HandleFunc("DELETE /api/cache", h.handleClearCache)
	return mux
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"alerts": h.deps.Feed.Len(),
	}
	if last := h.deps.Poller.LastTick(); !last.IsZero() {
		resp["last_evaluation"] = last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var severity protocol.Severity
	if s := r.URL.Query().Get("severity"); s != "" && s != "all" {
		parsed, err := protocol.ParseSeverity(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		severity = parsed
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": h.deps.Feed.List(severity),
		"counts": h.deps.Feed.Counts(),
	})
}

func (h *handlers) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cleared": h.deps.Feed.Clear()})
}

func (h *handlers) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Feed.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleRefreshAlerts(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.Poller.Tick(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch latest readings: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_alerts": len(events),
		"alerts":     h.deps.Feed.List(""),
		"counts":     h.deps.Feed.Counts(),
	})
}

func (h *handlers) handleActiveBreaches(w http.ResponseWriter, r *http.Request) {
	if h.deps.Tracker == nil {
		writeError(w, http.StatusNotFound, "breach tracking is disabled")
		return
	}
	breaches, err := h.deps.Tracker.ActiveBreaches(r.Context())
	if err != nil {
		h.logger.Error("failed to list active breaches", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list active breaches")
		return
	}
	writeJSON(w, http.StatusOK, breaches)
}

func (h *handlers) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "alert history is disabled")
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "'limit' must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	logs, err := h.deps.History.RecentAlertLogs(r.Context(), r.URL.Query().Get("city"), limit)
	if err != nil {
		h.logger.Error("failed to load alert history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load alert history")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *handlers) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Settings.Snapshot())
}

func (h *handlers) handleUpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var upd alerting.ThresholdUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	th, err := h.deps.Settings.Update(r.Context(), protocol.Metric(r.PathValue("metric")), upd)
	h.writeThreshold(w, r, th, err)
}

func (h *handlers) handleToggleThreshold(w http.ResponseWriter, r *http.Request) {
	th, err := h.deps.Settings.Toggle(r.Context(), protocol.Metric(r.PathValue("metric")))
	h.writeThreshold(w, r, th, err)
}

// writeThreshold answers a threshold change. A successful change re-runs the
// last alerts pass so the feed reflects the new bounds straight away.
func (h *handlers) writeThreshold(w http.ResponseWriter, r *http.Request, th alerting.Threshold, err error) {
	switch {
	case errors.Is(err, alerting.ErrUnknownMetric):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error("failed to update threshold", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update threshold")
	default:
		h.deps.Poller.Reevaluate(r.Context())
		writeJSON(w, http.StatusOK, th)
	}
}

func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	force := q.Get("refresh") == "true"

	result, err := h.deps.Loader.Dashboard(r.Context(), force)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"origin":    result.Origin,
		"stale":     result.Stale,
		"dashboard": aggregation.BuildDashboard(result.Readings, q.Get("city")),
	})
}

func (h *handlers) handleStatistics(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Loader.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load statistics: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Loader.Status(r.Context()))
}

func (h *handlers) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.deps.Loader.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
