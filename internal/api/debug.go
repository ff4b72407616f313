package api

import (
	"net/http"

	"github.com/arl/statsviz"
	"github.com/rs/zerolog/log"
)

func (s *Server) mountDebug() {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		log.Warn().Err(err).Msg("statsviz unavailable")
		return
	}
	s.router.Mount("/debug/statsviz", mux)
	log.Info().Msg("runtime charts at /debug/statsviz/")
}
