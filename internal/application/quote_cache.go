package application

import (
	"sync"
	"time"
)

// quoteCache keeps issued release quotes until they expire. Entries are
// indexed by token and by reservation so a reservation holds at most one
// live quote.
type quoteCache struct {
	mu            sync.RWMutex
	now           func() time.Time
	ttl           time.Duration
	maxEntries    int
	entries       map[string]ReleaseQuote
	byReservation map[int64]string
}

func newQuoteCache(ttl time.Duration, maxEntries int, now func() time.Time) *quoteCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &quoteCache{
		now:           now,
		ttl:           ttl,
		maxEntries:    maxEntries,
		entries:       make(map[string]ReleaseQuote),
		byReservation: make(map[int64]string),
	}
}

// Get returns the quote for token when it is still live.
func (c *quoteCache) Get(token string) (ReleaseQuote, bool) {
	if c == nil || token == "" {
		return ReleaseQuote{}, false
	}
	c.mu.RLock()
	quote, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok {
		return ReleaseQuote{}, false
	}
	if c.now().After(quote.ExpiresAt) {
		c.mu.Lock()
		c.deleteLocked(token)
		c.mu.Unlock()
		return ReleaseQuote{}, false
	}
	return quote, true
}

// Store stamps the quote with its expiry and replaces any earlier quote of the same reservation.
func (c *quoteCache) Store(quote ReleaseQuote) ReleaseQuote {
	if c == nil {
		return quote
	}
	quote.ExpiresAt = c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if previous, ok := c.byReservation[quote.ReservationID]; ok {
		c.deleteLocked(previous)
	}
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[quote.Token] = quote
	c.byReservation[quote.ReservationID] = quote.Token
	return quote
}

// Forget drops the quote of a reservation, if any.
func (c *quoteCache) Forget(reservationID int64) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.byReservation[reservationID]
	if ok {
		c.deleteLocked(token)
	}
	return ok
}

func (c *quoteCache) deleteLocked(token string) {
	quote, ok := c.entries[token]
	if !ok {
		return
	}
	delete(c.entries, token)
	if c.byReservation[quote.ReservationID] == token {
		delete(c.byReservation, quote.ReservationID)
	}
}

func (c *quoteCache) cleanupLocked() {
	now := c.now()
	for token, quote := range c.entries {
		if now.After(quote.ExpiresAt) {
			c.deleteLocked(token)
		}
	}
}

func (c *quoteCache) evictOneLocked() {
	var oldest string
	var oldestAt time.Time
	for token, quote := range c.entries {
		if oldest == "" || quote.ExpiresAt.Before(oldestAt) {
			oldest, oldestAt = token, quote.ExpiresAt
		}
	}
	if oldest != "" {
		c.deleteLocked(oldest)
	}
}
