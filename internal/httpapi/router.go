// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Logger  *slog.Logger
	Service AccountService
	Metrics MetricsRecorder
	Stage   string
}

// NewRouter creates the API router with all routes and middleware configured.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	handler := NewHandler(cfg.Service, cfg.Metrics, cfg.Logger, cfg.Stage)
	auth := Auth(cfg.Service, cfg.Metrics, cfg.Logger)

	r := mux.NewRouter()
	r.Use(Recovery(cfg.Logger))
	r.Use(Logging(cfg.Logger))

	r.HandleFunc("/healthz", handler.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/auth/exchange", handler.Exchange).Methods(http.MethodPost)

	me := r.PathPrefix("/me").Subrouter()
	me.Use(auth)
	me.HandleFunc("", handler.Me).Methods(http.MethodGet)
	me.HandleFunc("/username", handler.UpdateUsername).Methods(http.MethodPatch)

	return r
}
