package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediagen/internal/provider"
	"mediagen/internal/store"
)

type generateRequest struct {
	Provider      string `json:"provider"`
	Prompt        string `json:"prompt"`
	ModelID       string `json:"model_id"`
	MediaType     string `json:"media_type"`
	InputImageURL string `json:"input_image_url,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	AspectRatio   string `json:"aspect_ratio,omitempty"`
}

type generateResponse struct {
	TaskID   string `json:"task_id"`
	Provider string `json:"provider"`
	Handle   string `json:"handle"`
	Mode     string `json:"mode"`
}

// Generate submits one generation request to the chosen provider and
// returns the continuation the caller needs to track it.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Provider == "" || req.ModelID == "" || req.MediaType == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "provider, model_id and media_type are required")
		return
	}

	task, err := a.Service.StartGeneration(r.Context(), req.Provider, provider.Request{
		Prompt:        req.Prompt,
		ModelID:       req.ModelID,
		Media:         provider.MediaType(req.MediaType),
		InputImageURL: req.InputImageURL,
		Resolution:    req.Resolution,
		AspectRatio:   req.AspectRatio,
	})
	if err != nil {
		a.submissionError(w, err)
		return
	}

	mode, err := a.Service.TrackingMode(req.Provider)
	if err != nil {
		a.submissionError(w, err)
		return
	}

	if a.Store != nil {
		rec := store.TaskRecord{
			ID:       task.ID,
			Provider: req.Provider,
			Media:    provider.MediaType(req.MediaType),
			ModelID:  req.ModelID,
			Prompt:   req.Prompt,
			Handle:   task.Handle,
		}
		if err := a.Store.Create(r.Context(), rec); err != nil {
			a.Logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to record task")
		}
	}

	a.json(w, http.StatusAccepted, generateResponse{
		TaskID:   task.ID,
		Provider: req.Provider,
		Handle:   task.Handle,
		Mode:     string(mode),
	})
}

// Status performs one pull-mode status check. The caller drives the polling
// interval; each call here is one stateless provider round-trip.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	handle := r.URL.Query().Get("handle")
	if providerID == "" || handle == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "provider and handle are required")
		return
	}
	update, err := a.Service.CheckStatus(r.Context(), providerID, handle)
	if err != nil {
		a.submissionError(w, err)
		return
	}
	a.json(w, http.StatusOK, update)
}

// Task returns one ledger row, if the ledger is enabled.
func (a *App) Task(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		a.error(w, http.StatusNotFound, "not_found", "task ledger disabled")
		return
	}
	taskID := chi.URLParam(r, "id")
	rec, err := a.Store.Get(r.Context(), taskID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	a.json(w, http.StatusOK, rec)
}
