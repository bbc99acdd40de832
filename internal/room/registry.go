// ABOUTME: Room membership registry for broadcasting events to WebSocket connections
// ABOUTME: Rooms are keyed strings (chat:<id>, company:<id>); joins are idempotent

package room

import (
	"log/slog"
	"sync"
)

// Event is one named payload broadcast to a room
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Conn is a connection that can receive room events. Send must not block;
// implementations queue or drop.
type Conn interface {
	ConnID() string
	Send(ev Event) error
}

// ChatRoom returns the room ID for a single conversation
func ChatRoom(chatID string) string {
	return "chat:" + chatID
}

// CompanyRoom returns the room ID shared by all of a company's connections
func CompanyRoom(companyID string) string {
	return "company:" + companyID
}

// Registry tracks which connections are in which rooms. A connection may be
// in many rooms at once; dropping it removes it from all of them.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
	conns map[string]map[string]struct{} // connID -> room IDs, for DropConnection

	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		conns:  make(map[string]map[string]struct{}),
		logger: logger.With("component", "room"),
	}
}

// Join adds a connection to a room. Joining a room the connection is already
// in is a no-op.
func (r *Registry) Join(roomID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[roomID] = members
	}
	if _, ok := members[conn.ConnID()]; ok {
		return
	}
	members[conn.ConnID()] = conn

	joined, ok := r.conns[conn.ConnID()]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[conn.ConnID()] = joined
	}
	joined[roomID] = struct{}{}

	r.logger.Debug("connection joined room", "room_id", roomID, "conn_id", conn.ConnID())
}

// Leave removes a connection from one room. Unknown rooms or non-members are
// a no-op.
func (r *Registry) Leave(roomID string, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomID, connID)
}

func (r *Registry) leaveLocked(roomID string, connID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := members[connID]; !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	if joined, ok := r.conns[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.conns, connID)
		}
	}
}

// DropConnection removes a connection from every room it joined. Called when
// the underlying socket closes.
func (r *Registry) DropConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		return
	}
	for roomID := range joined {
		r.leaveLocked(roomID, connID)
	}
	r.logger.Debug("connection dropped", "conn_id", connID)
}

// Broadcast sends an event to every current member of a room. Delivery is
// best-effort: a failed Send is logged and skipped, never retried, and does
// not stop delivery to the remaining members.
func (r *Registry) Broadcast(roomID string, ev Event) {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.rooms[roomID]))
	for _, conn := range r.rooms[roomID] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	for _, conn := range members {
		if err := conn.Send(ev); err != nil {
			r.logger.Warn("broadcast delivery failed",
				"room_id", roomID,
				"conn_id", conn.ConnID(),
				"event", ev.Name,
				"error", err)
		}
	}
}

// MemberCount returns the number of connections currently in a room
func (r *Registry) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
