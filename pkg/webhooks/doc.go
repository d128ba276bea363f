// Package webhooks fans platform events out to external HTTP endpoints.
//
// Endpoints subscribe to event types (quote.created, ticket.created,
// notification.created and so on) and come from two sources: the admin
// API under /api/v1/webhooks, and a YAML config file that can be
// hot-reloaded while the process runs. Deliveries are signed with
// HMAC-SHA256 when the endpoint has a secret, rate limited per endpoint,
// executed on a bounded worker pool, and retried with exponential backoff.
// Recent delivery outcomes are kept in a bounded in-memory log for the
// admin API's deliveries and stats views.
//
// The Manager also implements the platform's event-publisher contract:
// Publish never returns an error, so emitting an event can never fail the
// operation that produced it.
//
// Slack and Teams helpers format events for chat-ops style consumers.
package webhooks
