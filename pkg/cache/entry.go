package cache

import (
	"time"
)

// CacheEntry is a cached raw upstream payload.
type CacheEntry struct {
	// Operation is the operation that produced Data.
	Operation string `json:"operation"`

	// Data is the raw response body, before normalization.
	Data []byte `json:"data"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry builds an entry for data that stays fresh for ttl.
func NewEntry(operation string, data []byte, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Operation: operation,
		Data:      data,
		CachedAt:  now,
		Expires:   now.Add(ttl),
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was stored.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
