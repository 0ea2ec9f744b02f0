// backend/handlers/oauth_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/models"
)

// IssueCode returns the caller's stable API code, minting one on first
// request. The identity-provider flow that proves ownership of the uni sits
// in front of this endpoint and is not this server's concern.
// POST /api/oauth/code with JSON body {"uni": "abc1234"}
func (h *DensityHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}

	var req models.OAuthCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	if req.UNI == "" {
		respondWithError(w, http.StatusBadRequest, "Missing 'uni' in request body")
		return
	}

	code, err := h.oauth.GetOrCreateCode(req.UNI)
	if err != nil {
		h.logger.Error("code issuance failed", zap.String("uni", req.UNI), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to issue code")
		return
	}

	respondWithJSON(w, http.StatusOK, models.OAuthCodeResponse{UNI: req.UNI, Code: code})
}
