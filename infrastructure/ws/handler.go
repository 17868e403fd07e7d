package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/services"
	"github.com/heaming/zipper-sub001/sink"
)

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	verifier   contract.TokenVerifier
	upgrader   websocket.Upgrader
	sinkBuffer int
}

func NewHandler(log *slog.Logger, service services.IChatService, verifier contract.TokenVerifier, sinkBuffer int) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the app origin; the token is
			// the actual authentication.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sinkBuffer: sinkBuffer,
	}
}

// ServeHTTP authenticates before upgrading, so a bad token gets a plain
// 401 instead of a half-open websocket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	connSink := sink.NewConnSink(connID, h.sinkBuffer)
	h.service.Connected(connID, identity, connSink)

	c := newClient(h.log, conn, connID, identity, h.service, connSink)
	h.log.Info("Connection opened", "connection", connID, "user", identity.UserID)

	go c.writePump()
	c.readPump(r.Context())

	h.service.Disconnected(connID)
	h.log.Info("Connection closed", "connection", connID, "user", identity.UserID)
}

// bearerToken accepts the Authorization header or, for browser
// websocket clients that cannot set headers, a token query parameter.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return r.URL.Query().Get("token")
}
