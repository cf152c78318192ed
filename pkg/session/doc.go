// Package session manages the single authenticated control channel to the
// access device.
//
// The device accepts one clean authenticated channel; concurrent raw
// connections risk interleaved command corruption. The Manager therefore
// caches at most one live Session and hands it to every caller. Acquire is
// fail-fast: it makes one connect+handshake attempt and returns, leaving
// retry pacing to the caller (AcquireWithRetry wraps the standard
// exponential-backoff loop for callers that want it).
//
// A session goes stale when it idles past the configured bound or when a
// command signals a transport-level fault; the next Acquire replaces it.
// Connectivity Up/Down transitions are emitted to the protocol logger and
// to registered listeners.
package session
