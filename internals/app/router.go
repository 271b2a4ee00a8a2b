package app

import (
	middle "upwatch/internals/middleware"
	"upwatch/internals/modules/hub"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func RegisterRoutes(c *Container) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middle.Logger(c.Logger))

	// no Timeout middleware here: the event stream is long-lived and a
	// request deadline would sever every connection

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Mount("/events", hub.Routes(c.hubHandler, c.authMW))
	})

	return r
}
