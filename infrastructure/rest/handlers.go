package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/heaming/zipper-sub001/domain"
	apperrors "github.com/heaming/zipper-sub001/errors"
	"github.com/heaming/zipper-sub001/services"
)

type handlers struct {
	log     *slog.Logger
	service services.IChatService
}

type messageJSON struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	Type      string    `json:"messageType"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type historyJSON struct {
	Messages   []messageJSON `json:"messages"`
	HasMore    bool          `json:"hasMore"`
	NextCursor *string       `json:"nextCursor,omitempty"`
}

type hitJSON struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type searchJSON struct {
	Hits []hitJSON `json:"hits"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(r.PathValue("roomID"))
	before := r.URL.Query().Get("before")
	limit := queryInt(r, "limit")

	page, err := h.service.History(roomID, before, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, historyJSON{
		Messages:   lo.Map(page.Messages, func(m domain.Message, _ int) messageJSON { return toMessageJSON(m) }),
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	})
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(r.PathValue("roomID"))
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit")

	hits, err := h.service.SearchMessages(r.Context(), roomID, query, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := searchJSON{Hits: []hitJSON{}}
	for _, hit := range hits {
		out.Hits = append(out.Hits, hitJSON{
			MessageID: hit.MessageID.String(),
			RoomID:    string(hit.RoomID),
			SenderID:  hit.SenderID,
			Nickname:  hit.Nickname,
			Content:   hit.Content,
			CreatedAt: hit.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requester := "unknown"
	if identity, ok := identityFrom(r.Context()); ok {
		requester = identity.UserID
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotAMember):
		status = http.StatusForbidden
	default:
		h.log.Error("Request failed", "path", r.URL.Path, "user", requester, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func toMessageJSON(m domain.Message) messageJSON {
	return messageJSON{
		ID:        m.ID.String(),
		RoomID:    string(m.RoomID),
		SenderID:  m.SenderID,
		Nickname:  m.Nickname,
		Content:   m.Content,
		Type:      string(m.Type),
		ImageURL:  m.ImageURL,
		Language:  m.Language,
		CreatedAt: m.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
