// Package email renders and delivers transactional email.
//
// The package splits into three layers:
//
//   - Template functions are pure: given a Quote or Ticket they return a
//     Template{Subject, HTML} with no I/O, clock, or randomness involved.
//     Status-change templates return the zero Template for statuses that
//     intentionally have no client-facing email.
//   - Client talks to the Resend HTTP API. Without an API key it runs in
//     disabled mode and reports not-sent instead of failing, so local and
//     test environments need no provider account.
//   - Dispatcher binds business events to templates and recipients, skips
//     zero-value templates silently, and records send/skip/error metrics.
//
// Errors from the provider propagate to the caller with the response status
// and body attached.
package email
