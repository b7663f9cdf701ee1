package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/reputation-engine/internal/errors"
)

// parseFID reads the {fid} path variable. It returns false after writing a 400.
func parseFID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["fid"]
	fid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fid <= 0 {
		respondServiceError(w, r, apperrors.NewInvalidInputError("fid", "must be a positive integer, got "+strconv.Quote(raw)))
		return 0, false
	}
	return fid, true
}

// invalidateOnRefresh drops the cached stats when the request carries
// ?refresh=true. It returns false after writing an error response.
func (s *Server) invalidateOnRefresh(w http.ResponseWriter, r *http.Request, address string) bool {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if !refresh {
		return true
	}
	if err := s.aggregation.Invalidate(r.Context(), address); err != nil {
		respondServiceError(w, r, err)
		return false
	}
	return true
}

// handleGetActivity handles GET /api/addresses/{address}/activity
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !s.invalidateOnRefresh(w, r, address) {
		return
	}
	summary, err := s.aggregation.FetchActivity(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleGetHoldings handles GET /api/addresses/{address}/holdings
func (s *Server) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !s.invalidateOnRefresh(w, r, address) {
		return
	}
	holdings, err := s.aggregation.FetchHoldings(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, holdings)
}

// handleGetSocialMetrics handles GET /api/social/{fid}
func (s *Server) handleGetSocialMetrics(w http.ResponseWriter, r *http.Request) {
	fid, ok := parseFID(w, r)
	if !ok {
		return
	}

	metrics, err := s.aggregation.FetchSocialMetrics(r.Context(), fid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}
