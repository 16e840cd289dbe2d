// Package cache provides a generic, thread-safe LRU cache.
//
// courier uses it for the delivery worker's per-batch channel lookups and
// for the in-app sender's per-user broadcasters, where the evict callback
// closes the broadcaster of a user that fell out of the cache.
//
//	c := cache.NewLRUCache[uuid.UUID, channel.Channel](64)
//	c.Put(id, ch)
//	ch, ok := c.Get(id)
package cache
