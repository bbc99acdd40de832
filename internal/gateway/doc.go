// Package gateway implements the chat-gateway server.
//
// # Architecture
//
// The gateway terminates WebSocket connections at /ws and exposes every
// operation as a JSON envelope {event, data}. Incoming envelopes are
// dispatched to a transport-independent Service; outgoing events fan out
// through room broadcasts (chat:<id> and company:<id> rooms).
//
// # Submission Pipeline
//
// A user_query runs through a fixed pipeline:
//
//  1. Chat lookup and archived check
//  2. Provider routing (pure; validates agent payloads)
//  3. Credit admission (atomic charge; rejection reaches only the submitter)
//  4. Turn persistence (store assigns the sequence number)
//  5. Authoritative user_query echo to the chat room
//  6. Backend dispatch and chunk streaming via the stream coordinator
//
// Routing runs before admission because the charge depends on the routed
// provider code. Nothing is charged for a request that fails routing, and
// nothing is dispatched for one that fails admission.
//
// # Event Catalog
//
// Client to server: join_chat_room, join_company_room, initialize_chat,
// user_query, on_query_typing, thread, message_list, fetch_chat_by_id,
// archive_chat.
//
// Server to client: user_query (echo), disable_query_input,
// start_streaming, stop_streaming, on_query_typing, thread, initialize_chat,
// archive_chat, message_list, fetch_chat_by_id, error.
//
// # HTTP Endpoints
//
//   - /ws: WebSocket endpoint (JWT via token query param or bearer header)
//   - /health: liveness
//   - /health/ready: readiness (store answers queries)
//   - /metrics: Prometheus metrics when enabled
package gateway
