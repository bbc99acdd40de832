// Package provider routes inbound requests to AI backends.
//
// # Routing
//
// Route is a pure function from RouteContext to a Decision. The decision
// order is a designed tie-break, first match wins:
//
//  1. SEARCH          web search toggle is on
//  2. CANVAS          an in-place canvas edit is pending
//  3. AGENT           a pro-agent code is present
//  4. CUSTOM_GPT_DOC  an uploaded document is tagged to a custom GPT
//  5. DOC             any document is uploaded
//  6. PLAIN           default chat completion
//
// The context is passed explicitly with each call; routing state is never
// held in a process global, so concurrent chats cannot race on it.
//
// # Pro-agents
//
// AGENT requests are sub-routed through a dispatch table keyed by AgentCode.
// Each of the five agent kinds builds and validates its own payload shape;
// a missing required field yields InvalidAgentPayloadError before any credit
// is charged or any backend is called.
//
// # Backends
//
// A Backend is an opaque remote completion API. Stream returns a channel of
// chunks that ends with EventDone or EventError. HTTPBackend implements the
// interface over newline-delimited JSON; tests use scripted backends.
package provider
