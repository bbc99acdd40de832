// ABOUTME: End-to-end WebSocket tests: dial, authenticate, submit, stream
// ABOUTME: Uses httptest with a real gorilla dialer against the /ws handler

package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainwave/chat-gateway/internal/auth"
	"github.com/brainwave/chat-gateway/internal/room"
	"github.com/brainwave/chat-gateway/internal/stream"
)

const wsTestSecret = "ws-test-secret-key-of-decent-size"

func newWSServer(t *testing.T) (*httptest.Server, *testEnv) {
	t.Helper()
	env := newTestEnv(t, 100)

	verifier := auth.NewJWTVerifier([]byte(wsTestSecret))
	handler := NewWSHandler(env.service, env.rooms, verifier, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, env
}

func dialWS(t *testing.T, srv *httptest.Server, identity auth.Identity) *websocket.Conn {
	t.Helper()
	verifier := auth.NewJWTVerifier([]byte(wsTestSecret))
	token, err := verifier.Generate(identity, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func sendEnvelope(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Envelope{Event: event, Data: raw}))
}

// readUntil reads events until one with the given name arrives
func readUntil(t *testing.T, ws *websocket.Conn, event string) room.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = ws.SetReadDeadline(time.Now().Add(time.Second))
		var ev room.Event
		if err := ws.ReadJSON(&ev); err != nil {
			continue
		}
		if ev.Name == event {
			return ev
		}
	}
	t.Fatalf("timed out waiting for %q", event)
	return room.Event{}
}

func TestWS_RejectsMissingToken(t *testing.T) {
	srv, _ := newWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestWS_RejectsBadToken(t *testing.T) {
	srv, _ := newWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestWS_SubmitStreamsOverSocket(t *testing.T) {
	srv, _ := newWSServer(t)
	ws := dialWS(t, srv, auth.Identity{UserID: "user-1", CompanyID: "acme"})

	sendEnvelope(t, ws, EventInitializeChat, InitializeChatRequest{ChatID: "c1", BrainID: "brain-1"})
	sendEnvelope(t, ws, EventUserQuery, UserQueryRequest{ChatID: "c1", Question: "hello?"})

	echo := readUntil(t, ws, EventUserQuery)
	data, err := json.Marshal(echo.Data)
	require.NoError(t, err)
	var got UserQueryEcho
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "c1", got.ChatID)
	assert.Equal(t, "PLAIN", got.ProviderCode)

	stop := readUntil(t, ws, stream.EventStopStreaming)
	stopData, err := json.Marshal(stop.Data)
	require.NoError(t, err)
	var payload struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(stopData, &payload))
	assert.Equal(t, "Hello!", payload.Answer)
}

func TestWS_ErrorReplyForUnknownChat(t *testing.T) {
	srv, _ := newWSServer(t)
	ws := dialWS(t, srv, auth.Identity{UserID: "user-1", CompanyID: "acme"})

	sendEnvelope(t, ws, EventUserQuery, UserQueryRequest{ChatID: "missing", Question: "hi"})

	ev := readUntil(t, ws, EventError)
	data, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var reply ErrorReply
	require.NoError(t, json.Unmarshal(data, &reply))
	assert.Equal(t, ErrCodeNotFound, reply.Code)
	assert.Equal(t, EventUserQuery, reply.Event)
}

func TestWS_MessageListRoundTrip(t *testing.T) {
	srv, _ := newWSServer(t)
	ws := dialWS(t, srv, auth.Identity{UserID: "user-1", CompanyID: "acme"})

	sendEnvelope(t, ws, EventInitializeChat, InitializeChatRequest{ChatID: "c1", BrainID: "brain-1"})
	sendEnvelope(t, ws, EventUserQuery, UserQueryRequest{ChatID: "c1", Question: "hello?"})
	readUntil(t, ws, stream.EventStopStreaming)

	sendEnvelope(t, ws, EventMessageList, MessageListRequest{ChatID: "c1", Offset: 0, Limit: 10})

	ev := readUntil(t, ws, EventMessageList)
	data, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var reply MessageListReply
	require.NoError(t, json.Unmarshal(data, &reply))
	require.Len(t, reply.Turns, 1)
	assert.Equal(t, "hello?", reply.Turns[0].Question)
	assert.Equal(t, "Hello!", reply.Turns[0].Answer)

	// The chat remains usable by a second connection of the same company
	ws2 := dialWS(t, srv, auth.Identity{UserID: "user-2", CompanyID: "acme"})
	sendEnvelope(t, ws2, EventJoinChatRoom, JoinRoomRequest{ChatID: "c1"})
	sendEnvelope(t, ws2, EventFetchChatByID, FetchChatRequest{ChatID: "c1"})
	readUntil(t, ws2, EventFetchChatByID)
}

func TestWS_ReconnectRejoinsIdempotently(t *testing.T) {
	srv, env := newWSServer(t)
	ws := dialWS(t, srv, auth.Identity{UserID: "user-1", CompanyID: "acme"})

	sendEnvelope(t, ws, EventInitializeChat, InitializeChatRequest{ChatID: "c1", BrainID: "brain-1"})
	sendEnvelope(t, ws, EventJoinChatRoom, JoinRoomRequest{ChatID: "c1"})
	sendEnvelope(t, ws, EventJoinChatRoom, JoinRoomRequest{ChatID: "c1"})
	sendEnvelope(t, ws, EventFetchChatByID, FetchChatRequest{ChatID: "c1"})
	readUntil(t, ws, EventFetchChatByID)

	// One membership despite duplicate joins (plus the test env's recorder)
	require.Eventually(t, func() bool {
		return env.rooms.MemberCount(room.ChatRoom("c1")) >= 1
	}, time.Second, 5*time.Millisecond)
	count := env.rooms.MemberCount(room.ChatRoom("c1"))

	sendEnvelope(t, ws, EventJoinChatRoom, JoinRoomRequest{ChatID: "c1"})
	sendEnvelope(t, ws, EventFetchChatByID, FetchChatRequest{ChatID: "c1"})
	readUntil(t, ws, EventFetchChatByID)
	assert.Equal(t, count, env.rooms.MemberCount(room.ChatRoom("c1")))
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=abc", nil)
	assert.Equal(t, "abc", extractToken(req))

	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", extractToken(req))

	req = httptest.NewRequest("GET", "/ws", nil)
	assert.Empty(t, extractToken(req))
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Submissions.WithLabelValues("PLAIN").Inc()
	m.CreditRejections.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
