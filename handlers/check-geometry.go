package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

var errEmptyBody = errors.New("empty request body")

// request is the body of /check and /repair. A JSON body without a
// "document" key is taken as the GeoJSON document itself.
type request struct {
	Document json.RawMessage           `json:"document"`
	Rules    []topology.Rule           `json:"rules"`
	Options  json.RawMessage           `json:"options"`
	Errors   *[]topology.TopologyError `json:"errors"`
}

// HandleCheck validates the posted document and answers with the report.
// A document without a recognised type gets a 422 carrying the report.
func (s *Server) HandleCheck(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	req, status, err := s.readRequest(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("Rejecting check request")
		sendError(w, r, status, err.Error())
		return
	}

	doc, opts, err := s.parse(req)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.engine(r).Check(doc, s.rules(req), opts)
	switch {
	case errors.Is(err, topology.ErrInvalidInput):
		sendJSON(w, r, http.StatusUnprocessableEntity, report)
		return
	case err != nil:
		log.Error().Err(err).Msg("Check failed")
		sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	truncateReport(report, s.cfg.Precision)

	log.Info().
		Int("features", topology.CountFeatures(doc)).
		Bool("valid", report.Valid).
		Int("errors", report.ErrorCount).
		Int("warnings", report.WarningCount).
		Msg("Topology checked")

	sendJSON(w, r, http.StatusOK, report)
}

// readRequest decodes a JSON or multipart body. The returned status is the
// one to answer with when err is set.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (*request, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)

	if utils.IsMultipart(r) {
		return readMultipart(r)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, fmt.Errorf("reading request body: %w", err)
	}
	if len(body) == 0 {
		return nil, http.StatusBadRequest, errEmptyBody
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("malformed JSON: %w", err)
	}

	req := &request{}
	if _, ok := keys["document"]; !ok {
		req.Document = body
		return req, http.StatusOK, nil
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("malformed request: %w", err)
	}
	return req, http.StatusOK, nil
}

func readMultipart(r *http.Request) (*request, int, error) {
	form, err := utils.ReadMultiPartForm(r, "file")
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	req := &request{Document: form.File}
	if form.Properties.Options != "" {
		req.Options = json.RawMessage(form.Properties.Options)
	}
	if form.Properties.Rules != "" {
		if err := json.Unmarshal([]byte(form.Properties.Rules), &req.Rules); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("malformed rules field: %w", err)
		}
	}
	if form.Properties.Errors != "" {
		var errs []topology.TopologyError
		if err := json.Unmarshal([]byte(form.Properties.Errors), &errs); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("malformed errors field: %w", err)
		}
		req.Errors = &errs
	}
	return req, http.StatusOK, nil
}

// parse decodes the document and applies the request options over the
// configured ones. A missing document stays nil and is rejected by the
// engine as invalid input.
func (s *Server) parse(req *request) (*geo.Document, topology.Options, error) {
	opts := s.cfg.Options
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return nil, opts, fmt.Errorf("malformed options: %w", err)
		}
	}

	if len(req.Document) == 0 {
		return nil, opts, nil
	}
	doc, err := geo.ParseDocument(req.Document)
	if err != nil {
		return nil, opts, err
	}
	return doc, opts, nil
}

func (s *Server) rules(req *request) []topology.Rule {
	if req.Rules == nil {
		return s.cfg.Rules
	}
	return req.Rules
}
