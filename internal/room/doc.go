// Package room provides in-memory pub/sub rooms for WebSocket fan-out.
//
// A room is a named set of connections. The gateway keeps two room families:
//
//   - chat:<id> for events scoped to one conversation (stream chunks,
//     typing notices, thread updates)
//   - company:<id> for events every user of a company should see
//     (chat list changes, credit warnings)
//
// Membership is explicit: connections Join and Leave rooms as the client
// opens and closes conversations, and DropConnection cleans up everything
// when the socket dies. Broadcast is best-effort with no ordering guarantee
// across rooms; per-connection ordering comes from each Conn's own send
// queue.
package room
