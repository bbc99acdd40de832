// ABOUTME: WebSocket transport: connection upgrade, read/write pumps, dispatch
// ABOUTME: Authenticates via JWT at upgrade and maps envelopes to Service calls

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brainwave/chat-gateway/internal/auth"
	"github.com/brainwave/chat-gateway/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

var errSendQueueFull = errors.New("send queue full")

// wsConn is one authenticated WebSocket connection. It implements room.Conn;
// Send queues without blocking and drops when the queue is full, so one slow
// client can never stall a broadcast.
type wsConn struct {
	id       string
	identity auth.Identity
	ws       *websocket.Conn
	send     chan room.Event
	done     chan struct{}
	logger   *slog.Logger
}

func (c *wsConn) ConnID() string { return c.id }

func (c *wsConn) Send(ev room.Event) error {
	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	default:
		return errSendQueueFull
	}
}

// WSHandler upgrades HTTP requests to WebSocket connections and runs them
type WSHandler struct {
	service  *Service
	rooms    *room.Registry
	verifier auth.TokenVerifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates the /ws endpoint handler
func NewWSHandler(service *Service, rooms *room.Registry, verifier auth.TokenVerifier, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:  service,
		rooms:    rooms,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the product origin; token auth is
			// the access control
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "ws"),
	}
}

// extractToken pulls the JWT from the query string or Authorization header
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// ServeHTTP authenticates and upgrades the connection, then runs its pumps
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &wsConn{
		id:       uuid.NewString(),
		identity: identity,
		ws:       ws,
		send:     make(chan room.Event, sendQueueSize),
		done:     make(chan struct{}),
	}
	conn.logger = h.logger.With("conn_id", conn.id, "user_id", identity.UserID, "company_id", identity.CompanyID)
	conn.logger.Info("connection established")

	go h.writePump(conn)
	h.readPump(conn)
}

// writePump serializes all writes to the socket, including pings
func (h *WSHandler) writePump(conn *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.ws.Close()
	}()

	for {
		select {
		case ev := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteJSON(ev); err != nil {
				conn.logger.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.done:
			return
		}
	}
}

// readPump reads envelopes until the connection drops, then cleans up
func (h *WSHandler) readPump(conn *wsConn) {
	defer func() {
		close(conn.done)
		h.rooms.DropConnection(conn.id)
		_ = conn.ws.Close()
		conn.logger.Info("connection closed")
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Debug("read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.replyError(conn, "", ErrCodeBadRequest, "malformed envelope")
			continue
		}
		h.dispatch(conn, env)
	}
}

// dispatch routes one envelope to its operation. Request-scoped failures go
// back only to this connection.
func (h *WSHandler) dispatch(conn *wsConn, env Envelope) {
	ctx := auth.WithIdentity(context.Background(), conn.identity)
	userID := conn.identity.UserID
	companyID := conn.identity.CompanyID

	switch env.Event {
	case EventJoinChatRoom:
		var req JoinRoomRequest
		if !h.decode(conn, env, &req) {
			return
		}
		h.joinChatRoom(ctx, conn, req.ChatID)

	case EventJoinCompanyRoom:
		// Connections may only join their own company's room
		h.rooms.Join(room.CompanyRoom(companyID), conn)

	case EventInitializeChat:
		var req InitializeChatRequest
		if !h.decode(conn, env, &req) {
			return
		}
		view, err := h.service.InitializeChat(ctx, userID, companyID, req)
		if err != nil {
			h.replyOpError(conn, env.Event, err)
			return
		}
		// The creator joins the chat room immediately
		h.rooms.Join(room.ChatRoom(view.ChatID), conn)

	case EventUserQuery:
		var req UserQueryRequest
		if !h.decode(conn, env, &req) {
			return
		}
		if _, err := h.service.Submit(ctx, userID, companyID, req); err != nil {
			h.replyOpError(conn, env.Event, err)
		}

	case EventOnQueryTyping:
		var req TypingRequest
		if !h.decode(conn, env, &req) {
			return
		}
		h.service.Typing(userID, req)

	case EventThread:
		var req ThreadRequest
		if !h.decode(conn, env, &req) {
			return
		}
		if _, err := h.service.Thread(ctx, userID, req); err != nil {
			h.replyOpError(conn, env.Event, err)
		}

	case EventMessageList:
		var req MessageListRequest
		if !h.decode(conn, env, &req) {
			return
		}
		reply, err := h.service.History(ctx, companyID, req)
		if err != nil {
			h.replyOpError(conn, env.Event, err)
			return
		}
		h.reply(conn, EventMessageList, reply)

	case EventFetchChatByID:
		var req FetchChatRequest
		if !h.decode(conn, env, &req) {
			return
		}
		view, err := h.service.FetchChat(ctx, companyID, req)
		if err != nil {
			h.replyOpError(conn, env.Event, err)
			return
		}
		h.reply(conn, EventFetchChatByID, view)

	case EventArchiveChat:
		var req ArchiveChatRequest
		if !h.decode(conn, env, &req) {
			return
		}
		if err := h.service.Archive(ctx, companyID, req); err != nil {
			h.replyOpError(conn, env.Event, err)
		}

	default:
		h.replyError(conn, env.Event, ErrCodeBadRequest, "unknown event")
	}
}

// joinChatRoom verifies the chat belongs to the caller's company before
// joining. Join failures are non-fatal; the client retries.
func (h *WSHandler) joinChatRoom(ctx context.Context, conn *wsConn, chatID string) {
	_, err := h.service.FetchChat(ctx, conn.identity.CompanyID, FetchChatRequest{ChatID: chatID})
	if err != nil {
		h.replyOpError(conn, EventJoinChatRoom, err)
		return
	}
	h.rooms.Join(room.ChatRoom(chatID), conn)
}

func (h *WSHandler) decode(conn *wsConn, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		h.replyError(conn, env.Event, ErrCodeBadRequest, "malformed payload")
		return false
	}
	return true
}

func (h *WSHandler) reply(conn *wsConn, event string, data any) {
	if err := conn.Send(room.Event{Name: event, Data: data}); err != nil {
		conn.logger.Warn("reply dropped", "event", event, "error", err)
	}
}

func (h *WSHandler) replyOpError(conn *wsConn, sourceEvent string, err error) {
	var op *OpError
	if errors.As(err, &op) {
		h.replyError(conn, sourceEvent, op.Code, op.Detail)
		return
	}
	h.replyError(conn, sourceEvent, ErrCodeInternal, "internal error")
}

func (h *WSHandler) replyError(conn *wsConn, sourceEvent, code, detail string) {
	h.reply(conn, EventError, ErrorReply{Event: sourceEvent, Code: code, Detail: detail})
}
