package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/micro-nova/campower/internal/auth"
	"github.com/micro-nova/campower/internal/models"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(ctrl Controller, authSvc *auth.Service, bus EventBus, info func() models.Info) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus, info: info}

	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)

		r.Get("/api/info", h.getInfo)

		// Sensors
		r.Get("/api/sensors", h.getSensors)
		r.Get("/api/sensors/{name}", h.getSensor)
		r.Post("/api/sensors/{name}/power", h.setPower)
		r.Post("/api/sensors/{name}/ops/{op}", h.setOp)
		r.Post("/api/sensors/{name}/reattach", h.reattach)

		// SSE
		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}
