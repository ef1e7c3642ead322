package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// credCache caches resolved client contexts by API key. Reads are
// lock-free via sync.Map. Entries past their TTL are served stale while
// exactly one reader wins the refresh slot and revalidates against the
// database in the background.
type credCache struct {
	entries sync.Map // apiKey -> *credEntry
	ttl     time.Duration
}

type credEntry struct {
	client     *ClientContext
	staleAfter time.Time
	refreshing atomic.Bool
}

func newCredCache(ttl time.Duration) *credCache {
	return &credCache{ttl: ttl}
}

// get returns the cached context if present. stale is true only for the
// single caller that should revalidate the entry; concurrent readers of
// the same expired entry keep getting the old context with stale=false.
func (c *credCache) get(apiKey string) (client *ClientContext, hit, stale bool) {
	val, ok := c.entries.Load(apiKey)
	if !ok {
		return nil, false, false
	}
	entry := val.(*credEntry)
	if time.Now().Before(entry.staleAfter) {
		return entry.client, true, false
	}
	return entry.client, true, entry.refreshing.CompareAndSwap(false, true)
}

// put stores a context with a fresh TTL, clearing any refresh claim.
func (c *credCache) put(apiKey string, client *ClientContext) {
	c.entries.Store(apiKey, &credEntry{
		client:     client,
		staleAfter: time.Now().Add(c.ttl),
	})
}

func (c *credCache) drop(apiKey string) {
	c.entries.Delete(apiKey)
}
