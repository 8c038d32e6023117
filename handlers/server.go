// Package handlers serves the topology engine over HTTP.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bsaid97/go-topology-engine/config"
	"github.com/bsaid97/go-topology-engine/topology"
)

type Server struct {
	kernel topology.Kernel
	cfg    *config.Config
	log    zerolog.Logger
}

func NewServer(kernel topology.Kernel, cfg *config.Config, log zerolog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{kernel: kernel, cfg: cfg, log: log}
}

// Routes returns the server's handler wrapped in the request logging and
// panic recovery middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("POST /check", s.HandleCheck)
	mux.HandleFunc("POST /repair", s.HandleRepair)

	return RequestLogger(s.log, Recoverer(mux))
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// engine builds a per request engine logging through the request logger.
func (s *Server) engine(r *http.Request) *topology.Engine {
	return topology.New(s.kernel, topology.WithLogger(*zerolog.Ctx(r.Context())))
}
