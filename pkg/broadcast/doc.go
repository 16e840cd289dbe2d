// Package broadcast provides a generic in-process publish/subscribe
// primitive. The in-app channel sender keeps one MemoryBroadcaster per user
// so connected clients receive new notifications as they are delivered.
//
//	b := broadcast.NewMemoryBroadcaster[Event](16)
//	sub := b.Subscribe(ctx)
//	go func() {
//		for msg := range sub.Receive() {
//			handle(msg.Data)
//		}
//	}()
//	n, err := b.Broadcast(ctx, broadcast.Message[Event]{Data: ev})
package broadcast
