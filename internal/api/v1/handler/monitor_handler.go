package handler

import (
	"net/http"
	"time"

	"creatorstudio/internal/api/v1/dto"
	"creatorstudio/internal/service"
	"creatorstudio/internal/velocity"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// MonitorHandler serves competitor channel monitors and their alerts.
type MonitorHandler struct {
	monitors service.MonitorService
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewMonitorHandler(monitors service.MonitorService, validate *validator.Validate, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{monitors: monitors, validate: validate, logger: logger.With().Str("handler", "monitor").Logger(), now: time.Now}
}

// RegisterRoutes mounts monitor routes
func (h *MonitorHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /monitors", authMw(http.HandlerFunc(h.createMonitor)))
	mux.Handle("GET /monitors", authMw(http.HandlerFunc(h.listMonitors)))
	mux.Handle("POST /monitors/classify", authMw(http.HandlerFunc(h.classify)))
	mux.Handle("GET /monitors/{id}", authMw(http.HandlerFunc(h.getMonitor)))
	mux.Handle("DELETE /monitors/{id}", authMw(http.HandlerFunc(h.deleteMonitor)))
	mux.Handle("POST /monitors/{id}/scan", authMw(http.HandlerFunc(h.scanMonitor)))
	mux.Handle("GET /monitors/{id}/alerts", authMw(http.HandlerFunc(h.listAlerts)))
	mux.Handle("GET /monitors/{id}/snapshots", authMw(http.HandlerFunc(h.listSnapshots)))
	mux.Handle("POST /alerts/{id}/read", authMw(http.HandlerFunc(h.markAlertRead)))
}

// createMonitor godoc
// @Summary Watch a channel
// @Description Resolves the channel on YouTube and starts monitoring it. Monitoring the same channel twice returns the existing monitor.
// @Tags monitors
// @Accept json
// @Produce json
// @Param monitor body dto.MonitorCreateRequest true "Channel"
// @Success 201 {object} model.Monitor
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 404 {string} string "channel not found"
// @Router /monitors [post]
func (h *MonitorHandler) createMonitor(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	var req dto.MonitorCreateRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	m, err := h.monitors.Create(r.Context(), userID, req.Channel)
	if err != nil {
		fail(w, h.logger, err, "Failed to create monitor")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, m)
}

// listMonitors godoc
// @Summary List monitors
// @Tags monitors
// @Produce json
// @Success 200 {array} model.Monitor
// @Router /monitors [get]
func (h *MonitorHandler) listMonitors(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	list, err := h.monitors.List(r.Context(), userID)
	if err != nil {
		fail(w, h.logger, err, "Failed to list monitors")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

// getMonitor godoc
// @Summary Get a monitor
// @Tags monitors
// @Produce json
// @Param id path string true "Monitor ID"
// @Success 200 {object} model.Monitor
// @Failure 404 {string} string "not found"
// @Router /monitors/{id} [get]
func (h *MonitorHandler) getMonitor(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	m, err := h.monitors.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		fail(w, h.logger, err, "Failed to get monitor")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, m)
}

// deleteMonitor godoc
// @Summary Stop watching a channel
// @Tags monitors
// @Param id path string true "Monitor ID"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /monitors/{id} [delete]
func (h *MonitorHandler) deleteMonitor(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.monitors.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, h.logger, err, "Failed to delete monitor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scanMonitor godoc
// @Summary Queue a scan
// @Description Queues an immediate scan of the monitored channel.
// @Tags monitors
// @Param id path string true "Monitor ID"
// @Success 202
// @Failure 404 {string} string "not found"
// @Router /monitors/{id}/scan [post]
func (h *MonitorHandler) scanMonitor(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.monitors.RequestScan(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, h.logger, err, "Failed to queue scan")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// listAlerts godoc
// @Summary List alerts of a monitor
// @Tags monitors
// @Produce json
// @Param id path string true "Monitor ID"
// @Param limit query int false "Maximum alerts (default 20, max 100)"
// @Success 200 {array} model.Alert
// @Router /monitors/{id}/alerts [get]
func (h *MonitorHandler) listAlerts(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	limit, _ := pageParams(r)
	alerts, err := h.monitors.Alerts(r.Context(), userID, r.PathValue("id"), limit)
	if err != nil {
		fail(w, h.logger, err, "Failed to list alerts")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, alerts)
}

// listSnapshots godoc
// @Summary List recent video snapshots of a monitor
// @Tags monitors
// @Produce json
// @Param id path string true "Monitor ID"
// @Param limit query int false "Maximum snapshots (default 20, max 100)"
// @Success 200 {array} model.Snapshot
// @Failure 404 {string} string "not found"
// @Router /monitors/{id}/snapshots [get]
func (h *MonitorHandler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	limit, _ := pageParams(r)
	snaps, err := h.monitors.Snapshots(r.Context(), userID, r.PathValue("id"), limit)
	if err != nil {
		fail(w, h.logger, err, "Failed to list snapshots")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snaps)
}

// markAlertRead godoc
// @Summary Mark an alert read
// @Tags monitors
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {string} string "not found"
// @Router /alerts/{id}/read [post]
func (h *MonitorHandler) markAlertRead(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	if err := h.monitors.MarkAlertRead(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, h.logger, err, "Failed to mark alert read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// classify godoc
// @Summary Classify a views-per-hour figure
// @Description Labels a video normal, trending, viral or explosive for a channel of the given size.
// @Tags monitors
// @Accept json
// @Produce json
// @Param request body dto.ClassifyRequest true "VPH, or views with publish time"
// @Success 200 {object} velocity.Classification
// @Failure 400 {string} string "Validation failed"
// @Router /monitors/classify [post]
func (h *MonitorHandler) classify(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == "" {
		return
	}
	var req dto.ClassifyRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	var vph float64
	switch {
	case req.VPH != nil:
		vph = *req.VPH
	case req.PublishedAt != nil:
		vph = velocity.VPH(req.Views, *req.PublishedAt, h.now())
	default:
		http.Error(w, "Validation failed: vph or published_at is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.monitors.Classify(vph, req.SubscriberCount))
}
