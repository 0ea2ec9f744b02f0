// backend/handlers/density_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/database"
	"github.com/gewnthar/density/backend/models"
)

// DensityHandler serves the read side of the occupancy API. Every data
// route requires an auth_token query parameter that resolves through the
// oauth store; empty results render as empty JSON arrays, never null, so
// clients can tell "nothing there" from a failed query (which is a 500).
type DensityHandler struct {
	store  *database.DensityStore
	oauth  *database.OAuthStore
	logger *zap.Logger
}

func NewDensityHandler(store *database.DensityStore, oauth *database.OAuthStore, logger *zap.Logger) *DensityHandler {
	return &DensityHandler{store: store, oauth: oauth, logger: logger}
}

// RegisterRoutes wires every API route onto mux.
func (h *DensityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("/api/latest", h.requireAuth(h.LatestAll))
	mux.HandleFunc("/api/latest/", h.requireAuth(h.LatestByID))
	mux.HandleFunc("/api/window/", h.requireAuth(h.Window))
	mux.HandleFunc("/api/capacity", h.requireAuth(h.Capacity))
	mux.HandleFunc("/api/buildings", h.requireAuth(h.Buildings))
	mux.HandleFunc("/api/oauth/code", h.IssueCode)
}

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// requireAuth gates a handler behind the auth_token query parameter.
func (h *DensityHandler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("auth_token")
		if token == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing auth_token parameter")
			return
		}

		uni, err := h.oauth.ResolveCode(token)
		if errors.Is(err, database.ErrCodeNotFound) {
			respondWithError(w, http.StatusUnauthorized, "Invalid auth_token")
			return
		}
		if err != nil {
			h.logger.Error("auth token lookup failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to verify auth_token")
			return
		}

		h.logger.Debug("authenticated request",
			zap.String("uni", uni),
			zap.String("path", r.URL.Path))
		next(w, r)
	}
}

// Health reports whether the database is reachable.
// GET /api/health
func (h *DensityHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "database connection error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LatestAll serves the most recent snapshot across all groups.
// GET /api/latest
func (h *DensityHandler) LatestAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	rows, err := h.store.LatestAll()
	if err != nil {
		h.logger.Error("latest query failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query latest data")
		return
	}
	if rows == nil {
		rows = []models.DensityRow{}
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// LatestByID serves the most recent snapshot for one group or building.
// GET /api/latest/group/{id} and GET /api/latest/building/{id}
func (h *DensityHandler) LatestByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	// Expected path: api/latest/{kind}/{id}
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/latest/{group|building}/{id}")
		return
	}
	id, err := strconv.Atoi(pathParts[3])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id: "+pathParts[3])
		return
	}

	var rows []models.DensityRow
	switch pathParts[2] {
	case "group":
		rows, err = h.store.LatestByGroup(id)
	case "building":
		rows, err = h.store.LatestByParent(id)
	default:
		respondWithError(w, http.StatusBadRequest, "Unknown kind: "+pathParts[2])
		return
	}
	if err != nil {
		h.logger.Error("latest query failed", zap.Int("id", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query latest data")
		return
	}
	if rows == nil {
		rows = []models.DensityRow{}
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// Window serves a paginated time window for one group or building, newest
// first, 100 rows per page. With format=csv the page is rendered as CSV.
// GET /api/window/{start}/{end}/group/{id}?offset=N
// GET /api/window/{start}/{end}/building/{id}?offset=N
func (h *DensityHandler) Window(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	// Expected path: api/window/{start}/{end}/{kind}/{id}
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 6 {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/window/{start}/{end}/{group|building}/{id}")
		return
	}

	start, err := parseWindowTime(pathParts[2])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid start time: "+pathParts[2])
		return
	}
	end, err := parseWindowTime(pathParts[3])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid end time: "+pathParts[3])
		return
	}
	id, err := strconv.Atoi(pathParts[5])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id: "+pathParts[5])
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid offset: "+v)
			return
		}
	}

	var rows []models.DensityRow
	switch pathParts[4] {
	case "group":
		rows, err = h.store.WindowByGroup(id, start, end, offset)
	case "building":
		rows, err = h.store.WindowByParent(id, start, end, offset)
	default:
		respondWithError(w, http.StatusBadRequest, "Unknown kind: "+pathParts[4])
		return
	}
	if err != nil {
		h.logger.Error("window query failed", zap.Int("id", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query window data")
		return
	}
	if rows == nil {
		rows = []models.DensityRow{}
	}

	if r.URL.Query().Get("format") == "csv" {
		respondWithCSV(w, h.logger, rows)
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// Capacity serves each group's historical-maximum occupancy.
// GET /api/capacity
func (h *DensityHandler) Capacity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	rows, err := h.store.CapacityPerGroup()
	if err != nil {
		h.logger.Error("capacity query failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query capacities")
		return
	}
	if rows == nil {
		rows = []models.CapacityRow{}
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// Buildings serves the building/group directory from the latest snapshot.
// GET /api/buildings
func (h *DensityHandler) Buildings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	rows, err := h.store.BuildingDirectory()
	if err != nil {
		h.logger.Error("directory query failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to query building directory")
		return
	}
	if rows == nil {
		rows = []models.DirectoryRow{}
	}
	respondWithJSON(w, http.StatusOK, rows)
}

func respondWithCSV(w http.ResponseWriter, logger *zap.Logger, rows []models.DensityRow) {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		logger.Error("csv marshal failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to render CSV")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseWindowTime accepts RFC3339 or the minute-granular 2006-01-02T15:04
// form. Snapshots are stamped at minute granularity, so nothing finer is
// ever needed.
func parseWindowTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", s)
}
