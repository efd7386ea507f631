// Package logging assembles the launcher's structured slog loggers.
//
// It owns the console and JSON handlers, the fan-out that mirrors launcher
// output into the persistent log file, and the helpers that keep WARN and
// ERROR records carrying an event type, a hint and an impact. It also manages
// the per-start daemon output files and their retention.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
