package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/preventia/preventia-core/internal/compliance"
	"github.com/preventia/preventia-core/internal/errs"
)

type validateRequest struct {
	SourceID int64                    `json:"source_id"`
	Factors  compliance.ScoreFactors `json:"factors"`
}

type validateResponse struct {
	Score float64 `json:"compliance_score"`
	Risk  string  `json:"risk_level"`
}

// handleComplianceValidate serves /compliance/validate by running
// score_source on the caller-supplied factors and returning its score and
// risk level. It does not run evaluate_fetch or any robots.txt check.
func (s *Server) handleComplianceValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	src, err := s.sources.Get(r.Context(), req.SourceID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	score, risk := s.evaluator.ScoreSource(r.Context(), src, req.Factors)
	writeData(w, validateResponse{Score: score, Risk: string(risk)}, nil)
}
