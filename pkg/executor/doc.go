// Package executor serializes command execution over the device session.
//
// The device's reply stream is ordered, not correlated: pipelining two
// commands would make reply attribution guesswork. The Executor therefore
// runs a single worker that sends one command, waits for its reply (or
// per-command timeout), and only then dequeues the next. Concurrent
// callers enqueue and are served FIFO by enqueue time.
//
// A caller may abandon its wait (context cancellation); the command it
// already enqueued still executes to completion against the device, so
// the reply stream never desynchronizes.
//
// On timeout the in-flight reply cannot be safely discarded from the
// stream, so the session is invalidated and the caller must reacquire.
package executor
