// Package redis connects courier to Redis using github.com/redis/go-redis/v9.
// The client backs the cross-instance deduplication store (pkg/dedup) used
// by provider status callbacks.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
