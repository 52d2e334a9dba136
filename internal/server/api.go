// Package server exposes the web process surface: the alert intake endpoint,
// the history and statistics queries, and the live WebSocket subscription.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/model"
	"github.com/envmonitor/envmonitor/internal/store"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

// Broadcaster pushes an accepted alert to the live subscribers.
type Broadcaster interface {
	Broadcast(alert model.Alert)
	Count() int
}

// API is the HTTP surface of the web process.
type API struct {
	store *store.Store
	hub   Broadcaster
	log   zerolog.Logger
}

// New builds the API over the shared store and the subscriber hub.
func New(st *store.Store, hub Broadcaster) *API {
	return &API{
		store: st,
		hub:   hub,
		log:   logger.WithComponent("api"),
	}
}

// Router assembles the full route table, WebSocket endpoint included.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/alerts/notify", a.notifyAlert)
		r.Get("/alerts/history", a.alertHistory)
		r.Get("/alerts/history/range", a.alertHistoryRange)
		r.Get("/alerts/statistics", a.alertStatistics)

		r.Get("/sensor/latest", a.latestReading)
		r.Get("/sensor/readings", a.recentReadings)
		r.Get("/sensor/readings/range", a.readingsRange)
		r.Get("/sensor/statistics", a.readingStatistics)

		r.Get("/statistics", a.statistics)
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		if h, ok := a.hub.(http.Handler); ok {
			h.ServeHTTP(w, req)
			return
		}
		http.Error(w, "websocket endpoint unavailable", http.StatusNotImplemented)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)

	return r
}

// notifyAlert is the intake boundary: the controller POSTs every raised alert
// here and the hub fans it out. Validation failures are the caller's problem;
// fan-out failures are not (delivery to individual subscribers is best effort).
func (a *API) notifyAlert(w http.ResponseWriter, r *http.Request) {
	var alert model.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		a.badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if !alert.Type.Valid() {
		a.badRequest(w, "invalid alert_type \""+string(alert.Type)+"\", accepted values: "+model.AlertTypeNames())
		return
	}
	if !alert.Severity.Valid() {
		a.badRequest(w, "invalid severity \""+string(alert.Severity)+"\", accepted values: "+model.SeverityNames())
		return
	}

	a.hub.Broadcast(alert)
	a.log.Info().
		Str("alert_type", string(alert.Type)).
		Int("subscribers", a.hub.Count()).
		Msg("alert accepted for broadcast")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     "alert broadcast to connected clients",
		"subscribers": a.hub.Count(),
	})
}

func (a *API) alertHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := a.pagination(w, r)
	if !ok {
		return
	}
	filter, ok := a.alertFilter(w, r)
	if !ok {
		return
	}

	rows, total, err := a.store.RecentAlerts(limit, offset, filter)
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   rows,
		"count":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) alertHistoryRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.dateRange(w, r)
	if !ok {
		return
	}
	filter, ok := a.alertFilter(w, r)
	if !ok {
		return
	}

	rows, total, err := a.store.AlertsByDateRange(start, end, filter)
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"data":       rows,
		"count":      total,
		"start_date": start,
		"end_date":   end,
	})
}

func (a *API) alertStatistics(w http.ResponseWriter, _ *http.Request) {
	st, err := a.store.AlertStatistics()
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": st})
}

func (a *API) latestReading(w http.ResponseWriter, _ *http.Request) {
	rec, err := a.store.LatestReading()
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": rec})
}

func (a *API) recentReadings(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := a.pagination(w, r)
	if !ok {
		return
	}
	rows, err := a.store.RecentReadings(limit, offset)
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) readingsRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.dateRange(w, r)
	if !ok {
		return
	}
	rows, err := a.store.ReadingsByDateRange(start, end)
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"data":       rows,
		"count":      len(rows),
		"start_date": start,
		"end_date":   end,
	})
}

func (a *API) readingStatistics(w http.ResponseWriter, _ *http.Request) {
	st, err := a.store.ReadingStatistics()
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": st})
}

func (a *API) statistics(w http.ResponseWriter, _ *http.Request) {
	st, err := a.store.Statistics()
	if err != nil {
		a.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": st})
}

// pagination reads limit/offset query parameters, applying the defaults and
// bounds. A false return means the response has already been written.
func (a *API) pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			a.badRequest(w, "limit must be an integer between 1 and "+strconv.Itoa(maxPageLimit))
			return 0, 0, false
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.badRequest(w, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// alertFilter validates the optional alert_type/severity query parameters.
func (a *API) alertFilter(w http.ResponseWriter, r *http.Request) (store.AlertFilter, bool) {
	var f store.AlertFilter
	if v := r.URL.Query().Get("alert_type"); v != "" {
		if !model.AlertType(v).Valid() {
			a.badRequest(w, "invalid alert_type \""+v+"\", accepted values: "+model.AlertTypeNames())
			return f, false
		}
		f.Type = v
	}
	if v := r.URL.Query().Get("severity"); v != "" {
		if !model.Severity(v).Valid() {
			a.badRequest(w, "invalid severity \""+v+"\", accepted values: "+model.SeverityNames())
			return f, false
		}
		f.Severity = v
	}
	return f, true
}

// dateRange validates the required start_date/end_date parameters (YYYY-MM-DD).
func (a *API) dateRange(w http.ResponseWriter, r *http.Request) (start, end string, ok bool) {
	start = r.URL.Query().Get("start_date")
	end = r.URL.Query().Get("end_date")

	startT, err := time.Parse("2006-01-02", start)
	if err != nil {
		a.badRequest(w, "start_date must be a valid YYYY-MM-DD date")
		return "", "", false
	}
	endT, err := time.Parse("2006-01-02", end)
	if err != nil {
		a.badRequest(w, "end_date must be a valid YYYY-MM-DD date")
		return "", "", false
	}
	if endT.Before(startT) {
		a.badRequest(w, "end_date must not be before start_date")
		return "", "", false
	}
	return start, end, true
}

func (a *API) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"status": "error",
		"detail": map[string]string{"message": msg},
	})
}

func (a *API) internalError(w http.ResponseWriter, err error) {
	a.log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"status": "error",
		"detail": map[string]string{"message": "internal error"},
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
