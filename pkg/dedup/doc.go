// Package dedup drops repeated provider callbacks.
//
// Providers deliver status callbacks at least once, so the same event id
// can arrive several times. Handlers claim the id before acting on it and
// release it when acting failed:
//
//	first, err := store.Claim(ctx, eventID)
//	if err != nil || !first {
//		return
//	}
//	if err := apply(); err != nil {
//		_ = store.Release(ctx, eventID)
//	}
//
// MemoryStore serves a single instance; RedisStore shares keys across
// instances.
package dedup
