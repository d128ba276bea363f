package observability

import "runtime/debug"

// RecoverPanic absorbs a panic in a long-lived background goroutine, logging
// the value and stack under the given task label. The webhook retry worker
// defers this so a malformed delivery log cannot take down the whole retry
// loop.
//
// Must be called directly from a defer. The panic is not re-raised.
func RecoverPanic(logger *Logger, task string) {
	if r := recover(); r != nil {
		logger.
			WithField("task", task).
			WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			Error("panic recovered")
	}
}
