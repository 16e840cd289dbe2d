// Package api exposes the delivery ledger over HTTP.
//
// Operators use it to inspect pending rows, single deliveries and per
// notification statistics. Providers use it to report asynchronous
// outcomes:
//
//	POST /deliveries/{id}/delivered  {"provider_message_id": "...", "event_id": "..."}
//	POST /deliveries/{id}/failed     {"error_message": "...", "error_code": "...", "should_retry": true}
//	POST /deliveries/{id}/bounced    {"error_message": "...", "error_code": "..."}
//
// Callbacks carrying an event_id are applied at most once per delivery
// while the dedup store remembers the event. When a signing secret is
// configured every callback must carry webhook signature headers.
//
// Optional groups are mounted only when their dependency is configured:
// notification intake (WithDispatcher), channel management (WithChannels),
// the per-user inbox (WithNotifications) and the Server-Sent Events feed
// of in-app notifications (WithStreamer).
//
// Every JSON body uses the same envelope:
//
//	{"data": ..., "meta": {...}, "error": {"code": "...", "message": "..."}}
package api
