package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/clearwatch/clearwatch/app"
	"github.com/clearwatch/clearwatch/models"
	"github.com/clearwatch/clearwatch/utils"
	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
	defaultWindowMins  = 10
	maxWindowMins      = 24 * 60
)

// AlertsResponse wraps an event list with its count.
type AlertsResponse struct {
	Count  int            `json:"count"`
	Alerts []models.Event `json:"alerts"`
}

// RecentAlertsHandler handles GET /alerts/recent?limit=N, newest first.
func RecentAlertsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", defaultRecentLimit, 1, maxRecentLimit)
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}

		events, err := deps.Store.Recent(limit)
		if err != nil {
			deps.Logger.Error("failed to read recent alerts", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "failed to read alerts")
			return
		}
		respondJSON(w, http.StatusOK, AlertsResponse{Count: len(events), Alerts: events})
	}
}

// WindowAlertsHandler handles GET /alerts/window?minutes=N&max_lines=M,
// oldest first, the same slice the report worker analyzes.
func WindowAlertsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minutes, err := queryInt(r, "minutes", defaultWindowMins, 1, maxWindowMins)
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		maxLines, err := queryInt(r, "max_lines", deps.Config.Worker.MaxLinesPerWindow, 1, 10000)
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}

		events, err := deps.Store.Window(time.Duration(minutes)*time.Minute, maxLines)
		if err != nil {
			deps.Logger.Error("failed to read alert window", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "failed to read alerts")
			return
		}
		respondJSON(w, http.StatusOK, AlertsResponse{Count: len(events), Alerts: events})
	}
}

// ExplainResponse carries the analyst's triage text for one event.
type ExplainResponse struct {
	Rule     string `json:"rule"`
	Analysis string `json:"analysis"`
}

// ExplainAlertHandler handles POST /alerts/explain. The body is one event
// as returned by the alert endpoints; the analyst produces a triage
// analysis for it.
func ExplainAlertHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.Event
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&event); err != nil {
			_ = utils.WriteBadRequest(w, "invalid event payload", nil)
			return
		}
		if err := utils.ValidateStruct(event); err != nil {
			_ = utils.WriteBadRequest(w, "invalid event", utils.GetValidationFields(err))
			return
		}

		if !deps.Analyst.Available(r.Context()) {
			_ = utils.WriteServiceUnavailable(w, "analyst service is not available")
			return
		}

		analysis, err := deps.Analyst.ExplainEvent(r.Context(), event)
		if err != nil {
			deps.Logger.Error("failed to explain alert",
				zap.String("rule", event.Rule), zap.Error(err))
			_ = utils.WriteInternalServerError(w, "failed to generate analysis")
			return
		}
		respondJSON(w, http.StatusOK, ExplainResponse{Rule: event.Rule, Analysis: analysis})
	}
}

// queryInt parses an optional positive integer query parameter with bounds.
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return 0, errors.New(name + " must be an integer between " +
			strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return value, nil
}
