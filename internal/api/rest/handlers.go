package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/courtside/internal/backfill"
	"github.com/fortuna/courtside/internal/chart"
	"github.com/fortuna/courtside/internal/config"
	"github.com/fortuna/courtside/internal/reconciliation"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// HealthChecker is a dependency whose health is reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SpotCheckHistory lists archived spot checks.
type SpotCheckHistory interface {
	History(ctx context.Context, gameID string, limit int) ([]*reconciliation.Report, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	scraper *service.Scraper
	history SpotCheckHistory
	trends  *service.TrendService
	health  map[string]HealthChecker
	log     *logrus.Entry
}

// NewHandler creates a new handler. history and health may be nil.
func NewHandler(scraper *service.Scraper, history SpotCheckHistory, health map[string]HealthChecker, log *logrus.Entry) *Handler {
	return &Handler{
		scraper: scraper,
		history: history,
		health:  health,
		log:     log,
	}
}

// HealthCheck reports the service and each configured dependency.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}
	for name, checker := range h.health {
		if err := checker.HealthCheck(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	season, seasonType := h.scraper.Season()
	body := map[string]interface{}{
		"status":       "healthy",
		"service":      "courtside",
		"season":       season,
		"season_type":  seasonType,
		"dependencies": deps,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	respondJSON(w, status, body)
}

// ResolvePlayer handles GET /players/resolve?name=
func (h *Handler) ResolvePlayer(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	m, err := h.scraper.Resolver().ResolvePlayer(name)
	if err != nil {
		respondError(w, errorStatus(err), "No matching player", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// ResolveTeam handles GET /teams/resolve?name=
func (h *Handler) ResolveTeam(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	m, err := h.scraper.Resolver().ResolveTeam(name)
	if err != nil {
		respondError(w, errorStatus(err), "No matching team", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// GetTeams handles GET /teams
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scraper.Resolver().Teams())
}

// GetPlayerGameLog handles GET /players/{playerID}/gamelog
func (h *Handler) GetPlayerGameLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	season, seasonType, ok := seasonParams(w, r)
	if !ok {
		return
	}
	res, err := h.scraper.PlayerGameLogByID(r.Context(), id, season, seasonType, boolParam(r, "save"))
	h.respondGameLog(w, res, err)
}

// GetTeamGameLog handles GET /teams/{teamID}/gamelog
func (h *Handler) GetTeamGameLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "teamID")
	if !ok {
		return
	}
	season, seasonType, ok := seasonParams(w, r)
	if !ok {
		return
	}
	res, err := h.scraper.TeamGameLogByID(r.Context(), id, season, seasonType, boolParam(r, "save"))
	h.respondGameLog(w, res, err)
}

func (h *Handler) respondGameLog(w http.ResponseWriter, res *service.GameLogResult, err error) {
	if err != nil && !errors.Is(err, store.ErrEmptyResult) {
		respondError(w, errorStatus(err), "Failed to fetch game log", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetPlayerTrend handles GET /players/{playerID}/trend?stat=&limit=
func (h *Handler) GetPlayerTrend(w http.ResponseWriter, r *http.Request) {
	h.trend(w, r, "playerID", store.KindPlayerLog)
}

// GetTeamTrend handles GET /teams/{teamID}/trend?stat=&limit=
func (h *Handler) GetTeamTrend(w http.ResponseWriter, r *http.Request) {
	h.trend(w, r, "teamID", store.KindTeamLog)
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request, key string, kind store.DatasetKind) {
	if h.trends == nil {
		respondError(w, http.StatusServiceUnavailable, "Game log archive is not configured", nil)
		return
	}
	id, ok := pathID(w, r, key)
	if !ok {
		return
	}
	stat := r.URL.Query().Get("stat")
	if strings.TrimSpace(stat) == "" {
		stat = store.ColPoints
	}
	limit := 10
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 82 {
		limit = l
	}

	trend, err := h.trends.Trend(r.Context(), kind, id, stat, limit)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			h.log.WithError(err).WithField(key, id).Error("trend query failed")
		}
		respondError(w, errorStatus(err), "Failed to compute trend", err)
		return
	}
	respondJSON(w, http.StatusOK, trend)
}

// GetBoxScore handles GET /games/{gameID}/boxscore
func (h *Handler) GetBoxScore(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	res, err := h.scraper.BoxScore(r.Context(), gameID, boolParam(r, "save"))
	if err != nil && !errors.Is(err, store.ErrEmptyResult) {
		respondError(w, errorStatus(err), "Failed to fetch box score", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetSpotCheck handles GET /games/{gameID}/spotcheck. A failed check is
// still a 200; only a failed fetch is an error.
func (h *Handler) GetSpotCheck(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	report, err := h.scraper.SpotCheck(r.Context(), gameID)
	if err != nil && !errors.Is(err, store.ErrEmptyResult) {
		respondError(w, errorStatus(err), "Failed to fetch box score", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetSpotCheckHistory handles GET /games/{gameID}/spotchecks
func (h *Handler) GetSpotCheckHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Spot check archive is not configured", nil)
		return
	}
	limit := 10
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	reports, err := h.history.History(r.Context(), mux.Vars(r)["gameID"], limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch spot checks", err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// GetCheckerMetrics handles GET /spotchecks/metrics
func (h *Handler) GetCheckerMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scraper.Checker().GetMetrics())
}

// Compare handles GET /compare/{kind}?a=&b=&stat=. It returns the SVG chart,
// or the saved paths when format=json.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := strings.TrimSpace(q.Get("a")), strings.TrimSpace(q.Get("b"))
	stat := strings.TrimSpace(q.Get("stat"))
	if stat == "" {
		stat = "PTS"
	}
	if a == "" || b == "" {
		respondError(w, http.StatusBadRequest, "a and b are required", nil)
		return
	}

	var (
		res *service.CompareResult
		err error
	)
	switch mux.Vars(r)["kind"] {
	case "players":
		res, err = h.scraper.ComparePlayers(r.Context(), a, b, stat)
	case "teams":
		res, err = h.scraper.CompareTeams(r.Context(), a, b, stat)
	default:
		respondError(w, http.StatusNotFound, "kind must be players or teams", nil)
		return
	}
	if err != nil {
		respondError(w, errorStatus(err), "Failed to compare", err)
		return
	}

	if q.Get("format") == "json" {
		respondJSON(w, http.StatusOK, res)
		return
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, res.Comparison); err != nil {
		respondError(w, errorStatus(err), "Failed to render chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrEmptyResult):
		return http.StatusNotFound
	case errors.Is(err, chart.ErrUnknownStat), errors.Is(err, backfill.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[key])
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid "+key, err)
		return 0, false
	}
	return id, true
}

func seasonParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	seasonType := q.Get("season_type")
	if seasonType != "" {
		st, ok := normalizeSeasonType(w, seasonType)
		if !ok {
			return "", "", false
		}
		seasonType = st
	}
	return strings.TrimSpace(q.Get("season")), seasonType, true
}

func normalizeSeasonType(w http.ResponseWriter, s string) (string, bool) {
	st, err := config.NormalizeSeasonType(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid season_type", err)
		return "", false
	}
	return st, true
}

func boolParam(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
