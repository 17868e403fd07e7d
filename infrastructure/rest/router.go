// Package rest exposes the read side over HTTP: room history, search
// and health, plus the websocket entry point.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/services"
)

// NewRouter wires all HTTP routes. The websocket handler does its own
// authentication so it can reject before upgrading; the JSON routes go
// through the bearer middleware.
func NewRouter(
	log *slog.Logger,
	service services.IChatService,
	verifier contract.TokenVerifier,
	chat http.Handler,
) http.Handler {
	h := &handlers{log: log, service: service}
	auth := bearerMiddleware(verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("GET /chat", chat)
	mux.Handle("GET /rooms/{roomID}/messages", auth(http.HandlerFunc(h.history)))
	mux.Handle("GET /rooms/{roomID}/search", auth(http.HandlerFunc(h.search)))
	return mux
}
