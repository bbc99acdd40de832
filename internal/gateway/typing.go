// ABOUTME: Leading-edge debounce for typing notices, keyed by chat and user
// ABOUTME: The first signal passes immediately; repeats inside the window drop

package gateway

import (
	"sync"
	"time"
)

type typingKey struct {
	chatID string
	userID string
}

type typingDebouncer struct {
	window time.Duration

	mu   sync.Mutex
	last map[typingKey]time.Time
	now  func() time.Time
}

func newTypingDebouncer(window time.Duration) *typingDebouncer {
	if window <= 0 {
		window = time.Second
	}
	return &typingDebouncer{
		window: window,
		last:   make(map[typingKey]time.Time),
		now:    time.Now,
	}
}

// allow reports whether this signal should broadcast. Leading edge: the
// first signal for a (chat, user) pair passes and opens the window.
func (d *typingDebouncer) allow(chatID, userID string) bool {
	key := typingKey{chatID: chatID, userID: userID}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.last[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.last[key] = now

	// Opportunistic cleanup of stale entries
	if len(d.last) > 10_000 {
		for k, t := range d.last {
			if now.Sub(t) >= d.window {
				delete(d.last, k)
			}
		}
	}
	return true
}

// clear forgets the (chat, user) window so the next start signal passes
// immediately. Called when the user stops typing.
func (d *typingDebouncer) clear(chatID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, typingKey{chatID: chatID, userID: userID})
}
