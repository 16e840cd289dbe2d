// Package notification models the messages courier delivers and stores them.
//
// A Notification belongs to one user and is created once by the caller. The
// delivery pipeline reads it but never changes it; users can mark it read,
// dismiss it or delete it. Delete is a soft delete that hides the
// notification from every read; Purge removes it and its deliveries.
//
// Two Store implementations are provided: MemoryStore for tests and local
// runs, and PostgresStore on top of pgx.
package notification
