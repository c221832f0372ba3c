package httpapi

import (
	"net/http"

	"climate-server/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           withMiddleware(mux),
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
	}
}
