package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mediagen/internal/provider"
)

// Stream bridges the canonical update channel onto a server-sent event
// stream. It works for both tracking modes: push providers stream their
// socket events, pull providers are polled server-side. The response stays
// open until the task reaches a terminal state or the client disconnects;
// disconnecting cancels tracking without further updates.
func (a *App) Stream(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	taskID := r.URL.Query().Get("task_id")
	handle := r.URL.Query().Get("handle")
	if providerID == "" || handle == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "provider and handle are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	updates, err := a.Service.Track(r.Context(), providerID, provider.Task{ID: taskID, Handle: handle})
	if err != nil {
		a.submissionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for update := range updates {
		payload, err := json.Marshal(update)
		if err != nil {
			a.Logger.Error().Err(err).Str("task_id", taskID).Msg("failed to encode update")
			continue
		}
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
		flusher.Flush()
		if update.Terminal() {
			break
		}
	}
}
