// Package log defines structured protocol-event logging for the engine.
//
// Events are captured at three layers: transport frames, decoded commands
// and replies, and connectivity state changes. Applications plug in a
// Logger implementation (or the slog adapter) to observe device traffic
// without the engine depending on a concrete logging backend.
//
// Credential secrets never appear in events: command events carry the
// operation, path and target name only, not the full attribute map.
package log
