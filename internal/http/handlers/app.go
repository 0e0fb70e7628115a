// Package handlers implements the thin HTTP facade over the orchestrator
// boundary operations. It is a caller of the core: it submits, polls, and
// streams, and persists nothing beyond the optional task ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"mediagen/internal/orchestrator"
	"mediagen/internal/provider"
	"mediagen/internal/store"
)

// App bundles the dependencies the handlers share. Store may be nil; the
// facade then serves without a ledger.
type App struct {
	Service *orchestrator.Service
	Store   *store.Store
	Logger  zerolog.Logger
}

func NewApp(service *orchestrator.Service, st *store.Store, logger zerolog.Logger) *App {
	return &App{Service: service, Store: st, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// submissionError maps the error taxonomy onto HTTP responses:
// configuration errors are the caller's fault, rejections carry the
// provider's reason, transport failures surface as a bad gateway.
func (a *App) submissionError(w http.ResponseWriter, err error) {
	var cfgErr *provider.ConfigError
	if errors.As(err, &cfgErr) {
		a.error(w, http.StatusBadRequest, "configuration_error", cfgErr.Error())
		return
	}
	var rejErr *provider.RejectedError
	if errors.As(err, &rejErr) {
		a.error(w, http.StatusUnprocessableEntity, "submission_rejected", rejErr.Error())
		return
	}
	var transErr *provider.TransportError
	if errors.As(err, &transErr) {
		a.error(w, http.StatusBadGateway, "transport_error", transErr.Error())
		return
	}
	a.error(w, http.StatusInternalServerError, "internal", err.Error())
}
