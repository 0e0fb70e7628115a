package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mediagen/internal/http/handlers"
	"mediagen/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer, middleware.Logger(app.Logger))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/models", app.Models)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.Generate)
		r.Get("/status", app.Status)
		r.Get("/stream", app.Stream)
		r.Get("/{id}", app.Task)
	})

	return r
}
