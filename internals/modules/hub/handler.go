package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	middle "upwatch/internals/middleware"
	"upwatch/internals/security"
	"upwatch/pkg/apperror"
	"upwatch/pkg/utils"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Handler struct {
	hub      *Hub
	tokenSvc *security.TokenService
	logger   *zerolog.Logger
}

func NewHandler(h *Hub, tokenSvc *security.TokenService, logger *zerolog.Logger) *Handler {
	return &Handler{
		hub:      h,
		tokenSvc: tokenSvc,
		logger:   logger,
	}
}

// Stream is the long-lived event stream. The transport forbids custom
// headers on EventSource, so the bearer credential arrives as a query
// parameter. Auth failures answer with a JSON error body before any
// stream bytes are written.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "missing token query parameter")
		return
	}

	claims, err := h.tokenSvc.ValidateAccessToken(token)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}

	user, err := middle.ResolveUser(claims)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "user is unauthorised")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, reqID, apperror.Internal, "streaming is not supported")
		return
	}

	conn := h.hub.AddConnection(ctx, user.UserID)
	defer h.hub.RemoveConnection(conn)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case evt := <-conn.Events():
			if err := writeEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
		case <-conn.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// writeEvent frames one event as "type: payload" on a single line.
func writeEvent(w http.ResponseWriter, evt Event) error {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil // malformed payload, skip the event
	}
	_, err = fmt.Fprintf(w, "%s: %s\n", evt.Type, data)
	return err
}

// Status reports aggregate connection counts. Authenticated via the
// regular bearer middleware.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	utils.WriteJSON(w, http.StatusOK, reqID, "event hub status", h.hub.Stats())
}
