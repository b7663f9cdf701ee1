package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/types"
)

type createProfileRequest struct {
	FID          int64  `json:"fid"`
	Address      string `json:"address"`
	ReferralCode string `json:"referralCode"`
}

type proofRequest struct {
	ProofRef string `json:"proofRef"`
}

// dailyCastRequest carries only the hash; engagement is looked up server side
type dailyCastRequest struct {
	Hash string `json:"hash"`
}

type collectibleRequest struct {
	TokenID  string `json:"tokenId"`
	ImageURL string `json:"imageUrl"`
}

func badBody(w http.ResponseWriter, r *http.Request, err error) {
	respondServiceError(w, r, apperrors.NewInvalidInputError("body", err.Error()))
}

// handleCreateProfile handles POST /api/profiles. Existing profiles are returned unchanged.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := parseJSONBody(r, &req); err != nil {
		badBody(w, r, err)
		return
	}

	profile, err := s.profiles.GetOrCreateProfile(r.Context(), req.FID, req.Address, req.ReferralCode)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// handleGetProfile handles GET /api/profiles/{fid}
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}

	profile, err := s.profiles.GetProfile(r.Context(), fid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// handleRecalculateScore handles POST /api/profiles/{fid}/score
func (s *Server) handleRecalculateScore(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}

	profile, err := s.profiles.RecalculateScore(r.Context(), fid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// handleCheckIn handles POST /api/profiles/{fid}/check-in
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}
	var req proofRequest
	if err := parseJSONBody(r, &req); err != nil {
		badBody(w, r, err)
		return
	}

	result, err := s.profiles.CheckIn(r.Context(), fid, req.ProofRef)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleOpenBox handles POST /api/profiles/{fid}/boxes/{tier}
func (s *Server) handleOpenBox(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}
	tier, err := strconv.Atoi(mux.Vars(r)["tier"])
	if err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidTier, "tier must be an integer", map[string]interface{}{
			"tier": mux.Vars(r)["tier"],
		})
		return
	}
	var req proofRequest
	if err := parseJSONBody(r, &req); err != nil {
		badBody(w, r, err)
		return
	}

	result, err := s.profiles.OpenBox(r.Context(), fid, tier, req.ProofRef)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleClaimTask handles POST /api/profiles/{fid}/tasks/{task}
func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}

	result, err := s.profiles.ClaimTask(r.Context(), fid, mux.Vars(r)["task"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleClaimDailyCast handles POST /api/profiles/{fid}/daily-cast
func (s *Server) handleClaimDailyCast(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}
	var req dailyCastRequest
	if err := parseJSONBody(r, &req); err != nil {
		badBody(w, r, err)
		return
	}

	result, err := s.profiles.ClaimDailyCast(r.Context(), fid, req.Hash)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleLinkCollectible handles PUT /api/profiles/{fid}/collectible
func (s *Server) handleLinkCollectible(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}
	var req collectibleRequest
	if err := parseJSONBody(r, &req); err != nil {
		badBody(w, r, err)
		return
	}

	profile, err := s.profiles.LinkCollectible(r.Context(), fid, req.TokenID, req.ImageURL)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
