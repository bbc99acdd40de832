// ABOUTME: Backward pagination controller with an in-flight request guard
// ABOUTME: Computes page offsets and the scroll anchor after a prepend

package projection

import "sync"

// FetchFunc loads one backward page of history. It returns the number of
// turns received; a short page marks the history as exhausted.
type FetchFunc func(offset, limit int) (int, error)

// Pager drives "scroll up for older messages" loading. Page 1 is the newest
// window; each LoadOlder fetches the next page back with
// offset = (page-1) * pageSize. Duplicate triggers while a request is in
// flight are no-ops, so a bouncing scroll sensor issues one request.
type Pager struct {
	pageSize int

	mu        sync.Mutex
	page      int
	inFlight  bool
	exhausted bool
}

// NewPager creates a pager. Page 1 is considered already loaded.
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Pager{pageSize: pageSize, page: 1}
}

// LoadOlder fetches the next older page through fetch. Returns false without
// calling fetch when a load is already in flight or history is exhausted.
func (p *Pager) LoadOlder(fetch FetchFunc) (bool, error) {
	p.mu.Lock()
	if p.inFlight || p.exhausted {
		p.mu.Unlock()
		return false, nil
	}
	p.inFlight = true
	page := p.page + 1
	p.mu.Unlock()

	offset := (page - 1) * p.pageSize
	n, err := fetch(offset, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		// Page counter unchanged; the trigger may retry
		return false, err
	}
	p.page = page
	if n < p.pageSize {
		p.exhausted = true
	}
	return true, nil
}

// Exhausted reports whether the full history has been loaded
func (p *Pager) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

// Page returns the last fully loaded page number
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// AnchorScroll returns the scroll correction after prepending older content:
// the viewport moves down by the height the prepend added, keeping the
// previously visible turn fixed on screen.
func AnchorScroll(prevHeight, newHeight int) int {
	return newHeight - prevHeight
}
