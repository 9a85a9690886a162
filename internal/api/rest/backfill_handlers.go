package rest

import (
	"encoding/json"
	"net/http"

	"github.com/fortuna/courtside/internal/backfill"
)

// SweepHandler proxies API calls to the sweep service.
type SweepHandler struct {
	service *backfill.Service
}

// NewSweepHandler wires the REST layer to the sweep service.
func NewSweepHandler(service *backfill.Service) *SweepHandler {
	return &SweepHandler{service: service}
}

type apiSweepRequest struct {
	Type       string   `json:"type"`
	Season     string   `json:"season"`
	SeasonType string   `json:"season_type"`
	DaysBack   int      `json:"days_back"`
	GameID     string   `json:"game_id"`
	GameIDs    []string `json:"game_ids"`
}

// HandleSweepRequest handles POST /api/v1/sweeps
func (h *SweepHandler) HandleSweepRequest(w http.ResponseWriter, r *http.Request) {
	var req apiSweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sweepReq := backfill.Request{
		Type:     backfill.JobType(req.Type),
		Season:   req.Season,
		DaysBack: req.DaysBack,
		GameIDs:  append([]string(nil), req.GameIDs...),
	}
	if req.GameID != "" {
		sweepReq.GameIDs = append(sweepReq.GameIDs, req.GameID)
	}
	if req.SeasonType != "" {
		st, ok := normalizeSeasonType(w, req.SeasonType)
		if !ok {
			return
		}
		sweepReq.SeasonType = st
	}

	job, err := h.service.Enqueue(r.Context(), sweepReq)
	if err != nil {
		respondError(w, errorStatus(err), "Failed to enqueue sweep", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": job,
	})
}

// HandleSweepStatus handles GET /api/v1/sweeps/status
func (h *SweepHandler) HandleSweepStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}
	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []*backfill.Job{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage != "" {
			response["message"] = summary.ActiveJob.StatusMessage
		}
		response["active_job"] = summary.ActiveJob
	}
	if len(summary.History) > 0 {
		response["history"] = summary.History
	}
	return response
}
