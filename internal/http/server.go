// README: HTTP server; owns the gin engine and the dependencies its handlers need.
package http

import (
	"ridesim/internal/config"
	"ridesim/internal/infra"
	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/fleet"
	"ridesim/internal/modules/route"
)

type ServerDeps struct {
	Fleet    *fleet.Registry
	Routes   *route.Generator
	Dispatch *dispatch.Service
	// Verifier may be nil, which disables authentication and the user endpoints.
	Verifier     infra.TokenVerifier
	HTTP         config.HTTPConfig
	NearbyRadius float64
}

type Server struct {
	fleet        *fleet.Registry
	routes       *route.Generator
	dispatch     *dispatch.Service
	verifier     infra.TokenVerifier
	cfg          config.HTTPConfig
	nearbyRadius float64
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		fleet:        deps.Fleet,
		routes:       deps.Routes,
		dispatch:     deps.Dispatch,
		verifier:     deps.Verifier,
		cfg:          deps.HTTP,
		nearbyRadius: deps.NearbyRadius,
	}
}
