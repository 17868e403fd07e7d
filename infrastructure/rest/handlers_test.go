package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/heaming/zipper-sub001/auth"
	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
	apperrors "github.com/heaming/zipper-sub001/errors"
	"github.com/heaming/zipper-sub001/search"
	"github.com/heaming/zipper-sub001/services"
)

const testSecret = "rest-secret"

// fakeService serves canned pages so the handlers can be tested
// without the storage stack.
type fakeService struct {
	page services.HistoryPage
	hits []search.Hit
}

func (f *fakeService) Connected(domain.ConnectionID, domain.Identity, contract.EventSink) {}
func (f *fakeService) Join(domain.JoinRoomCommand) error                                  { return nil }
func (f *fakeService) Leave(domain.LeaveRoomCommand)                                      {}
func (f *fakeService) Send(_ context.Context, _ domain.SendMessageCommand) (domain.Message, error) {
	return domain.Message{}, nil
}
func (f *fakeService) TypingStart(domain.TypingStartCommand) error { return nil }
func (f *fakeService) TypingStop(domain.TypingStopCommand) error   { return nil }
func (f *fakeService) Disconnected(domain.ConnectionID)            {}

func (f *fakeService) History(roomID domain.RoomID, before string, limit int) (services.HistoryPage, error) {
	if roomID == "building:404" {
		return services.HistoryPage{}, fmt.Errorf("%w: %s", apperrors.ErrRoomNotFound, roomID)
	}
	if before == "garbage" {
		return services.HistoryPage{}, fmt.Errorf("%w: malformed cursor", apperrors.ErrValidation)
	}
	return f.page, nil
}

func (f *fakeService) SearchMessages(_ context.Context, roomID domain.RoomID, query string, _ int) ([]search.Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", apperrors.ErrValidation)
	}
	if roomID == "building:404" {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRoomNotFound, roomID)
	}
	return f.hits, nil
}

func newTestServer(t *testing.T, service services.IChatService) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	router := NewRouter(log, service, auth.NewVerifier([]byte(testSecret)), http.NotFoundHandler())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, server *httptest.Server, path string, authenticated bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
	require.NoError(t, err)
	if authenticated {
		token, err := auth.Mint([]byte(testSecret), domain.Identity{UserID: "u1", Nickname: "alice"}, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth_NoAuthRequired(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, &fakeService{})

	resp := get(t, server, "/healthz", false)
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestHistory_RequiresAuth(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, &fakeService{})

	resp := get(t, server, "/rooms/building:1/messages", false)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHistory_ReturnsPage(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	service := &fakeService{
		page: services.HistoryPage{
			Messages: []domain.Message{{
				ID: uuid.New(), RoomID: "building:1", SenderID: "u1", Nickname: "alice",
				Content: "hello", Type: domain.MessageTypeText, CreatedAt: at,
			}},
			HasMore:    true,
			NextCursor: lo.ToPtr("0001234:abcd"),
		},
	}
	server := newTestServer(t, service)

	resp := get(t, server, "/rooms/building:1/messages?limit=1", true)
	req.Equal(http.StatusOK, resp.StatusCode)

	var body historyJSON
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Messages, 1)
	req.Equal("hello", body.Messages[0].Content)
	req.True(body.HasMore)
	req.NotNil(body.NextCursor)
}

func TestHistory_ErrorMapping(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, &fakeService{})

	resp := get(t, server, "/rooms/building:404/messages", true)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	resp = get(t, server, "/rooms/building:1/messages?before=garbage", true)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestSearch_ReturnsHits(t *testing.T) {
	req := require.New(t)
	service := &fakeService{
		hits: []search.Hit{{
			MessageID: uuid.New(), RoomID: "building:1", SenderID: "u1",
			Nickname: "alice", Content: "the elevator is broken",
			CreatedAt: time.Now().UTC(),
		}},
	}
	server := newTestServer(t, service)

	resp := get(t, server, "/rooms/building:1/search?q=elevator", true)
	req.Equal(http.StatusOK, resp.StatusCode)

	var body searchJSON
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Len(body.Hits, 1)
	req.Equal("the elevator is broken", body.Hits[0].Content)
}

func TestSearch_EmptyQueryIsBadRequest(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, &fakeService{})

	resp := get(t, server, "/rooms/building:1/search", true)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
