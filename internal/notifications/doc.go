// Package notifications publishes launcher events to ntfy.
//
// NewService returns a no-op Service when no topic is configured. Each event
// belongs to a category (backup, daemon or errors) that can be switched off
// in the [notifications] config section; events of a disabled category are
// dropped without an HTTP call.
package notifications
