// Package stream coordinates answer streaming between provider backends and
// chat rooms.
//
// A Session walks Dispatched -> Streaming -> Stopped or Errored. The
// coordinator enforces one active session per chat, rebroadcasts every text
// chunk verbatim in arrival order, and guarantees exactly one terminal
// outcome per accepted submission: the assembled answer on success, or a
// fixed error answer when the backend fails, stalls past the watchdog, or
// the context is canceled.
//
// Archiving a chat mid-stream suppresses the session: remaining chunks are
// still buffered and the full answer persisted, but nothing more reaches the
// room.
package stream
