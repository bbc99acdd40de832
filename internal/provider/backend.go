// ABOUTME: Backend interface for opaque remote completion APIs and their registry
// ABOUTME: Backends stream answer chunks over a channel in arrival order

package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/brainwave/chat-gateway/internal/store"
)

// ErrNoBackend indicates no backend is registered for a provider code
var ErrNoBackend = errors.New("no backend for provider code")

// ChunkEvent indicates the type of stream event
type ChunkEvent int

const (
	// EventText carries one incremental answer fragment
	EventText ChunkEvent = iota
	// EventDone terminates the stream successfully
	EventDone
	// EventError terminates the stream with a provider failure
	EventError
)

// Chunk is one event from a backend stream.
// Text chunks arrive in the order the provider emitted them; they originate
// from a single sequential upstream read loop and are never reordered.
type Chunk struct {
	Event ChunkEvent
	Text  string
	Err   string // set for EventError
}

// Request is the normalized payload sent to a backend
type Request struct {
	ChatID   string
	TurnID   string
	Question string
	Model    string
	Media    []store.Media
	Agent    AgentPayload // set for AGENT requests
	Canvas   *CanvasRange // set for CANVAS requests
}

// Backend is an opaque remote completion API keyed by ProviderCode.
// Stream returns a channel that yields chunks until a terminal EventDone or
// EventError, after which the channel is closed.
type Backend interface {
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// Registry maps provider codes to their backends
type Registry struct {
	mu       sync.RWMutex
	backends map[Code]Backend
}

// NewRegistry creates an empty backend registry
func NewRegistry() *Registry {
	return &Registry{backends: make(map[Code]Backend)}
}

// Register sets the backend for a provider code, replacing any previous one
func (r *Registry) Register(code Code, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[code] = b
}

// Lookup returns the backend for a provider code.
// Returns ErrNoBackend if none is registered.
func (r *Registry) Lookup(code Code) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[code]
	if !ok {
		return nil, ErrNoBackend
	}
	return b, nil
}
