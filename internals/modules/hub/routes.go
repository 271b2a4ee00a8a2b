package hub

import (
	middle "upwatch/internals/middleware"

	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, authMW *middle.AuthMiddleware) chi.Router {
	r := chi.NewRouter()

	// the stream authenticates itself via the token query parameter
	r.Get("/", h.Stream)

	r.With(authMW.Handle).Get("/status", h.Status)

	return r
}
