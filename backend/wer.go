package backend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bosley/lyrical/compare"
)

type werResponse struct {
	Success bool `json:"success"`
	compare.Result
}

func (s *Server) handleCalculateWER(w http.ResponseWriter, r *http.Request) {
	var req compare.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Reference text is empty"})
		return
	}

	res := compare.Align(req.Reference, req.Hypothesis)
	s.logger.Debug("Scored comparison",
		"totalWords", res.TotalWords,
		"errorRate", res.ErrorRate)
	writeJSON(w, http.StatusOK, werResponse{Success: true, Result: res})
}
