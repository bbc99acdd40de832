// Package projection models the client-visible conversation state as a pure
// event reducer, independent of any transport.
//
// Conversation applies typed events (user queries, stream chunks, stream
// stops, thread bumps, history pages) to an ordered turn list. An optimistic
// local turn merges with its authoritative echo by ID instead of
// duplicating; chunks for a turn that is no longer in flight are dropped
// silently and counted.
//
// Pager drives backward history loading with an in-flight guard and the
// scroll-anchor arithmetic; Aggregator folds append-only reply entries into
// per-turn thread badges.
package projection
