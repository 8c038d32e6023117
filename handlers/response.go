package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

type errorResponse struct {
	Error string `json:"error"`
}

func sendJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	sendResponse(w, status, data)
}

func sendResponse(w http.ResponseWriter, status int, response []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func sendError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	sendJSON(w, r, status, errorResponse{Error: msg})
}

func sendZipResponse(w http.ResponseWriter, name string, zipData []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	w.WriteHeader(http.StatusOK)
	w.Write(zipData)
}

// truncateReport rounds every geometry the report carries to precision
// decimals.
func truncateReport(report *topology.Report, precision int) {
	for i := range report.Errors {
		te := &report.Errors[i]
		te.Geometry = utils.TruncateGeometry(te.Geometry, precision)
		if te.SuggestedFix != nil && te.SuggestedFix.Gap != nil {
			gap := *te.SuggestedFix.Gap
			gap.Gap = utils.TruncateGeometry(gap.Gap, precision)
			fix := *te.SuggestedFix
			fix.Gap = &gap
			te.SuggestedFix = &fix
		}
	}
	if report.Repaired != nil {
		utils.TruncateFeatures(report.Repaired.Features, precision)
	}
}
