// ABOUTME: Reply-thread aggregation from append-only entries to per-turn badges
// ABOUTME: Question and answer sides of the same turn aggregate independently

package projection

import (
	"slices"
	"sync"

	"github.com/brainwave/chat-gateway/internal/store"
)

type threadKey struct {
	turnID string
	side   string
}

// Aggregator folds append-only reply entries into the badge state shown on
// each turn: a count, the distinct senders, and the latest reply time.
type Aggregator struct {
	mu     sync.Mutex
	badges map[threadKey]*store.ThreadBadge
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{badges: make(map[threadKey]*store.ThreadBadge)}
}

// Add folds one reply entry in and returns the updated badge for its
// (turn, side) pair.
func (a *Aggregator) Add(entry store.ReplyEntry) store.ThreadBadge {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := threadKey{turnID: entry.TurnID, side: entry.Side}
	badge, ok := a.badges[key]
	if !ok {
		badge = &store.ThreadBadge{}
		a.badges[key] = badge
	}

	badge.Count++
	if !slices.Contains(badge.UserIDs, entry.SenderID) {
		badge.UserIDs = append(badge.UserIDs, entry.SenderID)
	}
	if entry.CreatedAt.After(badge.LastTime) {
		badge.LastTime = entry.CreatedAt
	}
	return *badge
}

// Badge returns the current badge for a (turn, side) pair
func (a *Aggregator) Badge(turnID, side string) store.ThreadBadge {
	a.mu.Lock()
	defer a.mu.Unlock()
	if badge, ok := a.badges[threadKey{turnID: turnID, side: side}]; ok {
		return *badge
	}
	return store.ThreadBadge{}
}
