package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/reputation-engine/internal/errors"
)

// handleReferralSweep handles POST /api/admin/referral-sweep.
// Requires "Authorization: Bearer <AdminToken>"; disabled when no token is configured.
func (s *Server) handleReferralSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil || s.config.AdminToken == "" {
		respondServiceError(w, r, apperrors.NewNotFoundError("endpoint", r.URL.Path))
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) != 1 {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid admin token", nil)
		return
	}

	result, err := s.sweeper.Run(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
