package handlers

import (
	"net/http"

	"mediagen/internal/provider"
)

// Models lists the aggregated catalog of all enabled providers. An optional
// ?media= query narrows it to one media type.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	media := provider.MediaType(r.URL.Query().Get("media"))
	switch media {
	case "", provider.MediaImage, provider.MediaVideo, provider.MediaAudio:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown media type")
		return
	}
	entries := a.Service.ListModels(media)
	if entries == nil {
		entries = []provider.CatalogEntry{}
	}
	a.json(w, http.StatusOK, map[string]any{"models": entries})
}
