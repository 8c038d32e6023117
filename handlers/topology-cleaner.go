package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

const zipBaseName = "repaired"

// HandleRepair applies fixes to the posted document. When the request
// carries no errors the document is checked first against the request or
// configured rules. With ?format=zip the repaired collection is returned
// as a zip holding repaired.json and a shapefile.
func (s *Server) HandleRepair(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	req, status, err := s.readRequest(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("Rejecting repair request")
		sendError(w, r, status, err.Error())
		return
	}

	doc, opts, err := s.parse(req)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	engine := s.engine(r)

	var errs []topology.TopologyError
	if req.Errors != nil {
		errs = *req.Errors
	} else {
		checkOpts := opts
		checkOpts.FixAutomatically = false
		report, err := engine.Check(doc, s.rules(req), checkOpts)
		if errors.Is(err, topology.ErrInvalidInput) {
			sendJSON(w, r, http.StatusUnprocessableEntity, report)
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Check before repair failed")
			sendError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		errs = report.Errors
	}

	result, err := engine.Repair(doc, errs, opts)
	switch {
	case errors.Is(err, topology.ErrInvalidInput):
		sendError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("Repair failed")
		sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	utils.TruncateFeatures(result.RepairedData.Features, s.cfg.Precision)

	if r.URL.Query().Get("format") != "zip" {
		sendJSON(w, r, http.StatusOK, result)
		return
	}

	zipData, err := repairedZip(result, *log)
	if errors.Is(err, utils.ErrNoShapes) {
		sendError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to build shapefile zip")
		sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Int("bytes", len(zipData)).Msg("Repair complete. Sending zip response")
	sendZipResponse(w, zipBaseName, zipData)
}

func repairedZip(result *topology.RepairResult, log zerolog.Logger) ([]byte, error) {
	jsonData, err := json.Marshal(result.RepairedData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal repaired data: %w", err)
	}
	return utils.GenerateShapefileZip(zipBaseName, jsonData, result.RepairedData.Features, log)
}
