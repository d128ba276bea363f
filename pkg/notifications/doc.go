// Package notifications manages per-user in-app notifications.
//
// # Overview
//
// Notifications are persisted rows owned by a single user, carrying a type
// tag, title, message, and an optional JSON data payload. They move through a
// read/unread lifecycle (read_at is set when read, cleared when unread) and
// live until the owner deletes them.
//
// # Error policy
//
// The service absorbs all store failures: operations return Result-style
// values with Success=false and a message instead of Go errors. Notification
// failures must never break the flows that emit notifications. Mutations are
// ownership-scoped; a mutation that matches zero rows reports
// "Notification not found or access denied" without distinguishing the two
// cases. MarkAllAsRead is the exception: zero affected rows means nothing was
// unread, which is a success.
//
// # Caching
//
// Unread counts are served through UnreadCache, an in-process expirable LRU
// over optional shared Redis. Every mutation invalidates the owner's entry.
package notifications
